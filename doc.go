// Package renderhooks attaches capture and sampling logic to a host
// rendering application's per-frame callback loop.
//
// Philosophy: "Never stall the render loop. Capture is cheap, processing
// is elsewhere."
//
// A hook is a named unit of per-frame logic invoked once per rendered
// frame on the render goroutine, with a finished/terminated/active
// lifecycle. Four sampler hooks cover the common capture shapes:
//
//   - Screenshot: single-shot save of the current frame to a fixed path
//   - Sequence: rate-limited numbered frame series written to disk
//   - Grab: rate-limited in-memory frame collection
//   - Portal: rate- and time-limited push of frames to a display callback
//
// The batch pipeline (NewBlockPipeline) is the heavy-capture path: the
// producer side runs on the render goroutine, accumulating frame
// snapshots into reusable fixed-size blocks; a dedicated worker goroutine
// drains completed blocks and returns their storage for reuse. The two
// FIFO hand-off channels between the sides are the only shared state -
// a block is owned by exactly one side at a time.
//
// Hooks attach to the host loop through the loop subpackage:
//
//	reg := loop.NewRegistry()
//	hook, _ := renderhooks.NewGrab(renderhooks.GrabConfig{Period: time.Second, Limit: 10})
//	handle, _ := reg.Attach(hook)
//
//	// host render loop, once per frame:
//	reg.Invoke(host)
//
//	// any goroutine:
//	if hook.State().Ready() {
//	    frames := hook.Frames()
//	    _ = frames
//	}
//	_ = handle
//
// Failure never escapes a hook invocation to the render loop: errors and
// panics are captured, stored on the hook, and surfaced by polling
// State().Terminated() / State().Err(). One hook's failure leaves every
// other attached hook unaffected.
package renderhooks
