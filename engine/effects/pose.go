package effects

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spaghettifunk/companion/engine/rig"
)

const (
	defaultPoseFadeTime = float32(0.5)
	poseEpsilon         = float32(0.001)
	posePhi             = float32(0.5)
	poseBackThreshold   = float32(0.15)
)

type posePart struct {
	id    string
	links []string
}

// Pose keeps exactly one part of each group visible, cross-fading when the
// part's switch parameter changes.
type Pose struct {
	fadeTime float32
	groups   [][]posePart
	ready    bool
}

type poseFile struct {
	Type       string   `json:"Type"`
	FadeInTime *float32 `json:"FadeInTime"`
	Groups     [][]struct {
		ID   string   `json:"Id"`
		Link []string `json:"Link"`
	} `json:"Groups"`
}

var ErrEmptyPose = errors.New("pose data is empty")

func ParsePose(data []byte) (*Pose, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPose
	}
	var f poseFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode pose: %w", err)
	}
	p := &Pose{fadeTime: defaultPoseFadeTime}
	if f.FadeInTime != nil && *f.FadeInTime >= 0 {
		p.fadeTime = *f.FadeInTime
	}
	for _, g := range f.Groups {
		if len(g) == 0 {
			continue
		}
		group := make([]posePart, 0, len(g))
		for _, part := range g {
			group = append(group, posePart{id: part.ID, links: part.Link})
		}
		p.groups = append(p.groups, group)
	}
	return p, nil
}

func (p *Pose) GroupCount() int { return len(p.groups) }

// Reset shows the first part of every group and hides the others.
func (p *Pose) Reset(params *rig.ParameterBuffer, parts *rig.PartBuffer) {
	for _, g := range p.groups {
		for i, part := range g {
			v := float32(0)
			if i == 0 {
				v = 1
			}
			parts.SetOpacity(part.id, v)
			params.SetValue(part.id, v, 1)
		}
	}
	p.ready = true
}

func (p *Pose) Update(params *rig.ParameterBuffer, parts *rig.PartBuffer, dt float32) {
	if !p.ready {
		p.Reset(params, parts)
	}
	if dt < 0 {
		dt = 0
	}
	for _, g := range p.groups {
		p.fade(params, parts, g, dt)
	}
	p.copyLinks(parts)
}

func (p *Pose) fade(params *rig.ParameterBuffer, parts *rig.PartBuffer, group []posePart, dt float32) {
	visible := -1
	opacity := float32(1)

	for i, part := range group {
		if !params.Has(part.id) || params.Value(part.id) <= poseEpsilon {
			continue
		}
		if visible >= 0 {
			break
		}
		visible = i
		if p.fadeTime == 0 {
			opacity = 1
		} else {
			opacity = parts.Opacity(part.id) + dt/p.fadeTime
			if opacity > 1 {
				opacity = 1
			}
		}
	}
	if visible < 0 {
		visible = 0
		opacity = 1
	}

	for i, part := range group {
		if i == visible {
			parts.SetOpacity(part.id, opacity)
			continue
		}
		current := parts.Opacity(part.id)
		var a1 float32
		if opacity < posePhi {
			a1 = opacity*(posePhi-1)/posePhi + 1
		} else {
			a1 = (1 - opacity) * posePhi / (1 - posePhi)
		}
		back := (1 - a1) * (1 - opacity)
		if back > poseBackThreshold {
			a1 = 1 - poseBackThreshold/(1-opacity)
		}
		if current > a1 {
			current = a1
		}
		parts.SetOpacity(part.id, current)
	}
}

func (p *Pose) copyLinks(parts *rig.PartBuffer) {
	for _, g := range p.groups {
		for _, part := range g {
			if len(part.links) == 0 {
				continue
			}
			o := parts.Opacity(part.id)
			for _, link := range part.links {
				parts.SetOpacity(link, o)
			}
		}
	}
}
