package engine

import "github.com/kiln-engine/kiln/core"

// Run starts the render goroutine and drives the logic loop on the
// calling goroutine, per §4.12: glfw requires window/event polling to
// stay on the thread that called glfw.Init (platform.New does that via
// runtime.LockOSThread in its package init, mirroring the teacher's
// platform.go). logicFn receives the frame delta and the packet slot it
// should populate; Engine takes care of polling platform events, timing,
// publishing, and detecting window-close.
func (e *Engine) Run(logicFn func(dt float64, back *Packet)) error {
	e.setStage(StageRunning)

	clock := core.NewClock()
	clock.Start()
	last := clock.Elapsed()

	renderDone := make(chan struct{})
	go func() {
		defer close(renderDone)
		e.pipeline.RunRender(e.renderFrame)
	}()

	e.pipeline.RunLogic(func(back *Packet) {
		e.platform.PollEvents()

		clock.Update()
		now := clock.Elapsed()
		dt := now - last
		last = now

		logicFn(dt, back)
		e.metrics.Update(dt)

		if e.platform.ShouldClose() {
			e.pipeline.Close()
		}
	})

	<-renderDone
	e.setStage(StageShuttingDown)
	return nil
}
