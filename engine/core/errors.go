package core

import (
	"errors"
)

var (
	ErrSwapchainBooting   = errors.New("swapchain resized or recreated, booting")
	ErrZeroCapacity       = errors.New("capacity must be greater than zero")
	ErrAlreadyInitialized = errors.New("system already initialized")
	ErrNotInitialized     = errors.New("system not initialized")
	ErrPoolExhausted      = errors.New("no free slot available")
	ErrParseFailed        = errors.New("failed to parse asset")
	ErrAssetNotFound      = errors.New("asset not found")
	ErrBufferCreate       = errors.New("failed to create buffer")
	ErrUnknown            = errors.New("unknown")
)
