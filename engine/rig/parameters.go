package rig

import (
	"github.com/spaghettifunk/companion/engine/math"
)

// ParameterDefinition declares one animation channel of a rig.
type ParameterDefinition struct {
	ID      string  `json:"Id"`
	Min     float32 `json:"Min"`
	Max     float32 `json:"Max"`
	Default float32 `json:"Default"`
}

// ParameterBuffer holds the current value of every channel plus one saved snapshot.
// Writes are clamped to the channel range. Unknown ids are ignored.
type ParameterBuffer struct {
	ids      []string
	index    map[string]int
	values   []float32
	minimums []float32
	maximums []float32
	defaults []float32
	saved    []float32
}

func NewParameterBuffer(defs []ParameterDefinition) *ParameterBuffer {
	pb := &ParameterBuffer{
		ids:      make([]string, len(defs)),
		index:    make(map[string]int, len(defs)),
		values:   make([]float32, len(defs)),
		minimums: make([]float32, len(defs)),
		maximums: make([]float32, len(defs)),
		defaults: make([]float32, len(defs)),
		saved:    make([]float32, len(defs)),
	}
	for i, d := range defs {
		pb.ids[i] = d.ID
		pb.index[d.ID] = i
		pb.minimums[i] = d.Min
		pb.maximums[i] = d.Max
		pb.defaults[i] = math.Clamp(d.Default, d.Min, d.Max)
	}
	pb.Reset()
	pb.Save()
	return pb
}

func (pb *ParameterBuffer) Count() int {
	return len(pb.ids)
}

func (pb *ParameterBuffer) ID(i int) string {
	return pb.ids[i]
}

// Index returns the position of id, or -1 when the rig has no such channel.
func (pb *ParameterBuffer) Index(id string) int {
	if i, ok := pb.index[id]; ok {
		return i
	}
	return -1
}

func (pb *ParameterBuffer) Has(id string) bool {
	return pb.Index(id) >= 0
}

func (pb *ParameterBuffer) Value(id string) float32 {
	i := pb.Index(id)
	if i < 0 {
		return 0
	}
	return pb.values[i]
}

func (pb *ParameterBuffer) ValueAt(i int) float32 {
	return pb.values[i]
}

func (pb *ParameterBuffer) Range(id string) (float32, float32) {
	i := pb.Index(id)
	if i < 0 {
		return 0, 0
	}
	return pb.minimums[i], pb.maximums[i]
}

func (pb *ParameterBuffer) Default(id string) float32 {
	i := pb.Index(id)
	if i < 0 {
		return 0
	}
	return pb.defaults[i]
}

// SetValue blends the channel toward value by weight (1 replaces it).
func (pb *ParameterBuffer) SetValue(id string, value, weight float32) bool {
	i := pb.Index(id)
	if i < 0 {
		return false
	}
	pb.SetValueAt(i, value, weight)
	return true
}

func (pb *ParameterBuffer) SetValueAt(i int, value, weight float32) {
	if weight != 1 {
		value = pb.values[i]*(1-weight) + value*weight
	}
	pb.values[i] = math.Clamp(value, pb.minimums[i], pb.maximums[i])
}

func (pb *ParameterBuffer) AddValue(id string, value, weight float32) bool {
	i := pb.Index(id)
	if i < 0 {
		return false
	}
	pb.SetValueAt(i, pb.values[i]+value*weight, 1)
	return true
}

func (pb *ParameterBuffer) MultiplyValue(id string, value, weight float32) bool {
	i := pb.Index(id)
	if i < 0 {
		return false
	}
	pb.SetValueAt(i, pb.values[i]*(1+(value-1)*weight), 1)
	return true
}

// Save stores the current values as the snapshot restored by Load.
func (pb *ParameterBuffer) Save() {
	copy(pb.saved, pb.values)
}

func (pb *ParameterBuffer) Load() {
	copy(pb.values, pb.saved)
}

// Reset sets every channel back to its default.
func (pb *ParameterBuffer) Reset() {
	copy(pb.values, pb.defaults)
}

// Snapshot returns a copy of the current values keyed by id.
func (pb *ParameterBuffer) Snapshot() map[string]float32 {
	out := make(map[string]float32, len(pb.ids))
	for i, id := range pb.ids {
		out[id] = pb.values[i]
	}
	return out
}
