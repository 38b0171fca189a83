package model

import (
	"github.com/spaghettifunk/companion/engine/effects"
	"github.com/spaghettifunk/companion/engine/motion"
)

// Drag gains, in parameter units per unit of drag.
const (
	dragAngleGain = 30
	dragBodyGain  = 10
)

/**
 * @brief Advances the model by dt seconds and commits the pose to the rig.
 * Does nothing until the model finished loading.
 */
func (m *Model) Update(dt float32) {
	if !m.initialized || m.rig == nil {
		return
	}
	params := m.rig.Parameters()
	parts := m.rig.Parts()

	motionUpdated := false

	params.Load()
	if m.arbiter.IsFinished() {
		m.arbiter.StartRandomMotion(motion.GroupIdle, motion.PriorityIdle, nil)
	} else {
		motionUpdated = m.arbiter.Update(params, parts, dt)
	}
	params.Save()

	// blink only when no clip drove the eyes this frame
	if !motionUpdated && m.eyeBlink != nil {
		m.eyeBlink.Update(params, dt)
	}

	if m.expressions != nil {
		m.expressions.Update(params, dt)
	}

	params.AddValue(effects.ParamAngleX, m.dragX*dragAngleGain, 1)
	params.AddValue(effects.ParamAngleY, m.dragY*dragAngleGain, 1)
	params.AddValue(effects.ParamAngleZ, m.dragX*m.dragY*-dragAngleGain, 1)
	params.AddValue(effects.ParamBodyAngleX, m.dragX*dragBodyGain, 1)
	params.AddValue(effects.ParamEyeBallX, m.dragX, 1)
	params.AddValue(effects.ParamEyeBallY, m.dragY, 1)

	if m.breath != nil {
		m.breath.Update(params, dt)
	}
	if m.physics != nil {
		m.physics.Update(params, dt)
	}
	if m.pose != nil {
		m.pose.Update(params, parts, dt)
	}

	m.rig.Update()
}
