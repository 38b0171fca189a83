package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/companion/engine/core"
)

// Prefix of every environment variable that overrides the configuration file.
const EnvPrefix = "COMPANION_"

type InteractionConfig struct {
	// Height in pixels of the band at the top of the model region that moves the window.
	DragStripHeight float64 `toml:"drag_strip_height" env:"DRAG_STRIP_HEIGHT"`
	// Share of the pointer position used for the look-at-cursor effect.
	FollowDamping float64 `toml:"follow_damping" env:"FOLLOW_DAMPING"`
	// Probability that a tap on empty space plays TapBody rather than Idle.
	TapBodyChance float64 `toml:"tap_body_chance" env:"TAP_BODY_CHANCE"`
	// Log every routed tap.
	DebugTouch bool `toml:"debug_touch" env:"DEBUG_TOUCH"`
}

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX uint32 `toml:"start_pos_x" env:"START_POS_X"`
	// Window starting position y axis, if applicable.
	StartPosY uint32 `toml:"start_pos_y" env:"START_POS_Y"`
	// Window starting width, if applicable.
	StartWidth uint32 `toml:"start_width" env:"START_WIDTH"`
	// Window starting height, if applicable.
	StartHeight uint32 `toml:"start_height" env:"START_HEIGHT"`
	// The application name used in windowing, if applicable.
	Name        string `toml:"name" env:"NAME"`
	LogLevel    string `toml:"log_level" env:"LOG_LEVEL"`
	AlwaysOnTop bool   `toml:"always_on_top" env:"ALWAYS_ON_TOP"`

	// Directory holding one sub-directory per model.
	ResourcesPath string `toml:"resources_path" env:"RESOURCES_PATH"`
	// Model directory name; the manifest is <ModelName>.model3.json inside it.
	ModelName string `toml:"model_name" env:"MODEL_NAME"`

	// Number of workers fetching model files.
	Workers int `toml:"workers" env:"WORKERS"`
	// Reload the model when a file in its directory changes.
	HotReload           bool `toml:"hot_reload" env:"HOT_RELOAD"`
	HotReloadDebounceMS int  `toml:"hot_reload_debounce_ms" env:"HOT_RELOAD_DEBOUNCE_MS"`

	Interaction InteractionConfig `toml:"interaction" envPrefix:"INTERACTION_"`
}

func DefaultApplicationConfig() *ApplicationConfig {
	return &ApplicationConfig{
		StartPosX:           100,
		StartPosY:           100,
		StartWidth:          400,
		StartHeight:         500,
		Name:                "Companion",
		LogLevel:            "debug",
		AlwaysOnTop:         true,
		ResourcesPath:       "./assets/models/",
		ModelName:           "Haru",
		Workers:             2,
		HotReload:           true,
		HotReloadDebounceMS: 250,
		Interaction: InteractionConfig{
			DragStripHeight: 100,
			FollowDamping:   0.3,
			TapBodyChance:   0.7,
		},
	}
}

var ErrInvalidConfig = errors.New("invalid configuration")

/**
 * @brief Builds the application configuration. Defaults are overridden by the TOML
 * file at path (skipped when path is empty or the file does not exist), then by
 * COMPANION_* environment variables.
 */
func Load(path string) (*ApplicationConfig, error) {
	cfg := DefaultApplicationConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			core.LogDebug("no configuration file at %s, using defaults", path)
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
			}
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ApplicationConfig) Validate() error {
	switch {
	case c.StartWidth == 0 || c.StartHeight == 0:
		return fmt.Errorf("%w: window size %dx%d", ErrInvalidConfig, c.StartWidth, c.StartHeight)
	case c.ModelName == "":
		return fmt.Errorf("%w: model name is empty", ErrInvalidConfig)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, c.Workers)
	case c.HotReloadDebounceMS < 0:
		return fmt.Errorf("%w: negative hot reload debounce", ErrInvalidConfig)
	case c.Interaction.DragStripHeight < 0:
		return fmt.Errorf("%w: negative drag strip height", ErrInvalidConfig)
	case c.Interaction.FollowDamping < 0 || c.Interaction.FollowDamping > 1:
		return fmt.Errorf("%w: follow damping %v outside [0, 1]", ErrInvalidConfig, c.Interaction.FollowDamping)
	case c.Interaction.TapBodyChance < 0 || c.Interaction.TapBodyChance > 1:
		return fmt.Errorf("%w: tap body chance %v outside [0, 1]", ErrInvalidConfig, c.Interaction.TapBodyChance)
	}
	if _, err := core.ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *ApplicationConfig) Level() core.LogLevel {
	level, err := core.ParseLogLevel(c.LogLevel)
	if err != nil {
		return core.DebugLevel
	}
	return level
}

func (c *ApplicationConfig) ModelDir() string {
	return filepath.Join(c.ResourcesPath, c.ModelName)
}

func (c *ApplicationConfig) ManifestFileName() string {
	return c.ModelName + ".model3.json"
}

func (c *ApplicationConfig) HotReloadDebounce() time.Duration {
	return time.Duration(c.HotReloadDebounceMS) * time.Millisecond
}
