/*
Desktop companion: a transparent always-on-top window with an animated
character that follows the cursor and reacts to clicks.
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/companion/engine"
	"github.com/spaghettifunk/companion/engine/config"
	"github.com/spaghettifunk/companion/engine/core"
	"github.com/spaghettifunk/companion/engine/platform"
	"github.com/spaghettifunk/companion/engine/renderer/opengl"
)

const defaultConfigPath = "companion.toml"

func main() {
	configPath := os.Getenv(config.EnvPrefix + "CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		core.LogFatal("failed to load configuration: %s", err)
	}
	core.SetLogLevel(cfg.Level())

	events := core.NewEventBus()
	input := core.NewInput(events)

	p := platform.New(events, input)
	if err := p.Startup(platform.PlatformConfig{
		ApplicationName: cfg.Name,
		X:               cfg.StartPosX,
		Y:               cfg.StartPosY,
		Width:           cfg.StartWidth,
		Height:          cfg.StartHeight,
		AlwaysOnTop:     cfg.AlwaysOnTop,
		Samples:         4,
	}); err != nil {
		core.LogFatal("failed to start the platform: %s", err)
	}

	e, err := engine.New(engine.EngineConfig{
		Application: cfg,
		Backend:     opengl.New(p),
		Events:      events,
		Input:       input,
	})
	if err != nil {
		_ = p.Shutdown()
		core.LogFatal("failed to create the engine: %s", err)
	}

	if !e.Initialize(p) {
		_ = e.Release()
		core.LogFatal("failed to initialize the engine")
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// start shutdown goroutine
	go func() {
		// capture sigterm and other system call here
		<-sigCh
		e.StopRenderLoop()
	}()

	// run engine
	if err := e.StartRenderLoop(); err != nil {
		core.LogError("render loop failed: %s", err)
	}
	if err := e.Release(); err != nil {
		core.LogError("failed to release the engine: %s", err)
	}
}
