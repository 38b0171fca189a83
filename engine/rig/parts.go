package rig

// PartDefinition declares a part; parts group drawables and carry an opacity.
type PartDefinition struct {
	ID      string  `json:"Id"`
	Opacity float32 `json:"Opacity"`
}

type PartBuffer struct {
	ids       []string
	index     map[string]int
	opacities []float32
}

func NewPartBuffer(defs []PartDefinition) *PartBuffer {
	pb := &PartBuffer{
		ids:       make([]string, len(defs)),
		index:     make(map[string]int, len(defs)),
		opacities: make([]float32, len(defs)),
	}
	for i, d := range defs {
		pb.ids[i] = d.ID
		pb.index[d.ID] = i
		pb.opacities[i] = d.Opacity
	}
	return pb
}

func (pb *PartBuffer) Count() int { return len(pb.ids) }

func (pb *PartBuffer) Index(id string) int {
	if i, ok := pb.index[id]; ok {
		return i
	}
	return -1
}

func (pb *PartBuffer) Opacity(id string) float32 {
	i := pb.Index(id)
	if i < 0 {
		return 1
	}
	return pb.opacities[i]
}

func (pb *PartBuffer) SetOpacity(id string, opacity float32) bool {
	i := pb.Index(id)
	if i < 0 {
		return false
	}
	if opacity < 0 {
		opacity = 0
	} else if opacity > 1 {
		opacity = 1
	}
	pb.opacities[i] = opacity
	return true
}
