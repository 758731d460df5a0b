package core

import (
	"errors"
)

var (
	ErrNoComputeShader = errors.New("compute pipeline requested without a compute shader")
	ErrNoVertexShader  = errors.New("graphics pipeline requested without a vertex shader")
	ErrTooManyBindings = errors.New("too many active bindings in pipeline layout")
)
