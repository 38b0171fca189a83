package motion

import (
	"encoding/json"
	"errors"
	"fmt"
)

type segmentType int

const (
	segmentLinear segmentType = iota
	segmentBezier
	segmentStepped
	segmentInverseStepped
)

type point struct {
	t, v float32
}

type segment struct {
	kind   segmentType
	points []point // first point is shared with the previous segment
}

// curve is one animated target decoded from the flat motion3 segment encoding.
type curve struct {
	target   string
	id       string
	segments []segment
	first    point
}

var ErrBadSegments = errors.New("malformed curve segments")

// decodeSegments turns [t0, v0, type, ...points, type, ...] into segments.
func decodeSegments(raw []float32) (point, []segment, error) {
	if len(raw) < 2 {
		return point{}, nil, ErrBadSegments
	}
	first := point{raw[0], raw[1]}
	prev := first
	segments := []segment{}
	for i := 2; i < len(raw); {
		kind := segmentType(raw[i])
		i++
		n := 1
		if kind == segmentBezier {
			n = 3
		} else if kind < segmentLinear || kind > segmentInverseStepped {
			return point{}, nil, fmt.Errorf("%w: unknown segment type %v", ErrBadSegments, raw[i-1])
		}
		if i+2*n > len(raw) {
			return point{}, nil, ErrBadSegments
		}
		pts := make([]point, 0, n+1)
		pts = append(pts, prev)
		for k := 0; k < n; k++ {
			pts = append(pts, point{raw[i], raw[i+1]})
			i += 2
		}
		segments = append(segments, segment{kind: kind, points: pts})
		prev = pts[len(pts)-1]
	}
	return first, segments, nil
}

func lerp(a, b point, t float32) point {
	return point{a.t + (b.t-a.t)*t, a.v + (b.v-a.v)*t}
}

func (s segment) evaluate(t float32) float32 {
	p := s.points
	switch s.kind {
	case segmentLinear:
		span := p[1].t - p[0].t
		if span <= 0 {
			return p[1].v
		}
		r := (t - p[0].t) / span
		if r < 0 {
			r = 0
		}
		return p[0].v + (p[1].v-p[0].v)*r
	case segmentBezier:
		span := p[3].t - p[0].t
		r := float32(1)
		if span > 0 {
			r = (t - p[0].t) / span
		}
		if r < 0 {
			r = 0
		}
		p01 := lerp(p[0], p[1], r)
		p12 := lerp(p[1], p[2], r)
		p23 := lerp(p[2], p[3], r)
		p012 := lerp(p01, p12, r)
		p123 := lerp(p12, p23, r)
		return lerp(p012, p123, r).v
	case segmentStepped:
		return p[0].v
	case segmentInverseStepped:
		return p[1].v
	}
	return p[len(p)-1].v
}

func (c *curve) valueAt(t float32) float32 {
	if len(c.segments) == 0 || t <= c.first.t {
		return c.first.v
	}
	for _, s := range c.segments {
		end := s.points[len(s.points)-1]
		if t <= end.t {
			return s.evaluate(t)
		}
	}
	last := c.segments[len(c.segments)-1].points
	return last[len(last)-1].v
}

type motionFile struct {
	Version int `json:"Version"`
	Meta    struct {
		Duration    float32  `json:"Duration"`
		Fps         float32  `json:"Fps"`
		Loop        bool     `json:"Loop"`
		FadeInTime  *float32 `json:"FadeInTime"`
		FadeOutTime *float32 `json:"FadeOutTime"`
	} `json:"Meta"`
	Curves []struct {
		Target   string    `json:"Target"`
		ID       string    `json:"Id"`
		Segments []float32 `json:"Segments"`
	} `json:"Curves"`
}

func decodeMotionFile(data []byte) (*motionFile, error) {
	if len(data) == 0 {
		return nil, errors.New("motion data is empty")
	}
	var f motionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode motion: %w", err)
	}
	if f.Meta.Duration < 0 {
		return nil, fmt.Errorf("invalid motion duration %v", f.Meta.Duration)
	}
	return &f, nil
}
