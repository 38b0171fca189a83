//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Builds and starts the companion with the configuration in the working directory.
func (Run) Companion() error {
	mg.Deps(Build.Companion)
	fmt.Println("Run companion...")
	if _, err := executeCmd("bin/companion", withStream()); err != nil {
		return err
	}
	return nil
}
