package assets

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MotionEntry is one clip of a motion group. Fade times are nil when not declared.
type MotionEntry struct {
	File        string   `json:"File"`
	FadeInTime  *float32 `json:"FadeInTime,omitempty"`
	FadeOutTime *float32 `json:"FadeOutTime,omitempty"`
	Sound       string   `json:"Sound,omitempty"`
}

type MotionGroup struct {
	Name    string
	Entries []MotionEntry
}

// motionGroups keeps the declaration order of the JSON object.
type motionGroups []MotionGroup

func (mg *motionGroups) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("motions: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("motions: expected group name, got %v", tok)
		}
		var entries []MotionEntry
		if err := dec.Decode(&entries); err != nil {
			return fmt.Errorf("motions: group %q: %w", name, err)
		}
		*mg = append(*mg, MotionGroup{Name: name, Entries: entries})
	}
	return nil
}

type ExpressionEntry struct {
	Name string `json:"Name"`
	File string `json:"File"`
}

type ParameterGroup struct {
	Target string   `json:"Target"`
	Name   string   `json:"Name"`
	IDs    []string `json:"Ids"`
}

type HitArea struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

type fileReferences struct {
	Moc         string            `json:"Moc"`
	Textures    []string          `json:"Textures"`
	Physics     string            `json:"Physics"`
	Pose        string            `json:"Pose"`
	UserData    string            `json:"UserData"`
	Expressions []ExpressionEntry `json:"Expressions"`
	Motions     motionGroups      `json:"Motions"`
}

// Manifest is the parsed `*.model3.json` describing every sub-resource of a model.
// It is immutable after parsing.
type Manifest struct {
	Version        int                `json:"Version"`
	FileReferences fileReferences     `json:"FileReferences"`
	Groups         []ParameterGroup   `json:"Groups"`
	HitAreas       []HitArea          `json:"HitAreas"`
	Layout         map[string]float32 `json:"Layout"`
}

const (
	groupEyeBlink = "EyeBlink"
	groupLipSync  = "LipSync"
)

var ErrEmptyManifest = errors.New("manifest is empty")

func ParseManifest(data []byte) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyManifest
	}
	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return m, nil
}

func (m *Manifest) ModelFileName() string { return m.FileReferences.Moc }

func (m *Manifest) TextureCount() int { return len(m.FileReferences.Textures) }

func (m *Manifest) TextureFileName(i int) string { return m.FileReferences.Textures[i] }

func (m *Manifest) ExpressionCount() int { return len(m.FileReferences.Expressions) }

func (m *Manifest) ExpressionName(i int) string { return m.FileReferences.Expressions[i].Name }

func (m *Manifest) ExpressionFileName(i int) string { return m.FileReferences.Expressions[i].File }

func (m *Manifest) PhysicsFileName() string { return m.FileReferences.Physics }

func (m *Manifest) PoseFileName() string { return m.FileReferences.Pose }

func (m *Manifest) UserDataFileName() string { return m.FileReferences.UserData }

func (m *Manifest) MotionGroupCount() int { return len(m.FileReferences.Motions) }

func (m *Manifest) MotionGroupName(i int) string { return m.FileReferences.Motions[i].Name }

func (m *Manifest) group(name string) *MotionGroup {
	for i := range m.FileReferences.Motions {
		if m.FileReferences.Motions[i].Name == name {
			return &m.FileReferences.Motions[i]
		}
	}
	return nil
}

// MotionCount returns the number of clips in a group, 0 for unknown groups.
func (m *Manifest) MotionCount(group string) int {
	g := m.group(group)
	if g == nil {
		return 0
	}
	return len(g.Entries)
}

// TotalMotionCount sums the clips of every group.
func (m *Manifest) TotalMotionCount() int {
	total := 0
	for _, g := range m.FileReferences.Motions {
		total += len(g.Entries)
	}
	return total
}

func (m *Manifest) motion(group string, index int) *MotionEntry {
	g := m.group(group)
	if g == nil || index < 0 || index >= len(g.Entries) {
		return nil
	}
	return &g.Entries[index]
}

func (m *Manifest) MotionFileName(group string, index int) string {
	if e := m.motion(group, index); e != nil {
		return e.File
	}
	return ""
}

// MotionFadeInTime returns the declared fade-in, or -1 when absent.
func (m *Manifest) MotionFadeInTime(group string, index int) float32 {
	if e := m.motion(group, index); e != nil && e.FadeInTime != nil {
		return *e.FadeInTime
	}
	return -1
}

// MotionFadeOutTime returns the declared fade-out, or -1 when absent.
func (m *Manifest) MotionFadeOutTime(group string, index int) float32 {
	if e := m.motion(group, index); e != nil && e.FadeOutTime != nil {
		return *e.FadeOutTime
	}
	return -1
}

func (m *Manifest) parameterGroup(name string) []string {
	for _, g := range m.Groups {
		if g.Name == name {
			return g.IDs
		}
	}
	return nil
}

func (m *Manifest) EyeBlinkParameterIDs() []string { return m.parameterGroup(groupEyeBlink) }

func (m *Manifest) LipSyncParameterIDs() []string { return m.parameterGroup(groupLipSync) }

// LayoutMap returns a copy of the layout descriptor.
func (m *Manifest) LayoutMap() map[string]float32 {
	out := make(map[string]float32, len(m.Layout))
	for k, v := range m.Layout {
		out[k] = v
	}
	return out
}

// Files lists every path the manifest references, relative to the model directory.
func (m *Manifest) Files() []string {
	fr := m.FileReferences
	files := []string{}
	add := func(p string) {
		if p != "" {
			files = append(files, p)
		}
	}
	add(fr.Moc)
	for _, t := range fr.Textures {
		add(t)
	}
	add(fr.Physics)
	add(fr.Pose)
	add(fr.UserData)
	for _, e := range fr.Expressions {
		add(e.File)
	}
	for _, g := range fr.Motions {
		for _, e := range g.Entries {
			add(e.File)
		}
	}
	return files
}
