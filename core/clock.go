package core

import "time"

// Clock mirrors the teacher's engine/core/clock.go: a start time plus an
// elapsed duration refreshed on demand, used to time the logic/render
// loops without pulling in a dedicated timing library.
type Clock struct {
	startTime float64
	elapsed   float64
}

func NewClock() *Clock {
	return &Clock{}
}

// Update refreshes elapsed time. Has no effect on a non-started clock.
func (c *Clock) Update() {
	if c.startTime != 0 {
		c.elapsed = nowSeconds() - c.startTime
	}
}

// Start starts (or restarts) the clock, resetting elapsed time.
func (c *Clock) Start() {
	c.startTime = nowSeconds()
	c.elapsed = 0
}

// Stop stops the clock without resetting elapsed time.
func (c *Clock) Stop() {
	c.startTime = 0
}

func (c *Clock) Elapsed() float64 {
	return c.elapsed
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
