package core

import (
	"errors"
)

var (
	// ErrModelFileMissing is the FatalLoad condition: the manifest names no rig file.
	ErrModelFileMissing = errors.New("model data does not exist")
	// ErrModelParse is the FatalLoad condition for a rig that could not be fetched or parsed.
	ErrModelParse      = errors.New("failed to parse model data")
	ErrClipLoad        = errors.New("can't start motion")
	ErrContextLost     = errors.New("drawing context lost")
	ErrTextureBind     = errors.New("failed to bind texture")
	ErrNotInitialized  = errors.New("not initialized")
	ErrAlreadyReleased = errors.New("already released")
	ErrUnknown         = errors.New("unknown")
)
