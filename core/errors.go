package core

import "errors"

// Expected, recoverable outcomes (§7: "Out-of-date / suboptimal surface",
// "Device lost"). Callers branch on these with errors.Is.
var (
	ErrSwapchainOutOfDate = errors.New("swapchain out of date")
	ErrSwapchainSuboptimal = errors.New("swapchain suboptimal")
	ErrSwapchainBooting   = errors.New("swapchain resized or recreated, booting")
	ErrDeviceLost         = errors.New("device lost")
	ErrUnknown            = errors.New("unknown")

	// ErrInvalidHandle names the invalid-handle condition. No allocator
	// in this module returns it: the render graph's resource table
	// signals overflow with handle zero (rendergraph.InvalidHandle) and
	// its pass table with an error of its own, so callers check for
	// handle zero rather than for this sentinel.
	ErrInvalidHandle = errors.New("invalid handle")
)
