//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// packages that don't need a window or a GL context
var corePackages = []string{
	"./engine/assets/...",
	"./engine/config/...",
	"./engine/containers/...",
	"./engine/core/...",
	"./engine/effects/...",
	"./engine/interaction/...",
	"./engine/math/...",
	"./engine/model/...",
	"./engine/motion/...",
	"./engine/rig/...",
	"./engine/systems/...",
}

// Runs every package test.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}

// Runs the tests that work without cgo, e.g. on a headless CI runner.
func (Test) Core() error {
	args := append([]string{"test", "-race"}, corePackages...)
	_, err := executeCmd("go", withArgs(args...), withStream())
	return err
}
