package screen

import "time"

// swapper tracks which hardware buffer is drawn next and presents it.
type swapper struct {
	backend Backend
	buffers []*FrameBuffer
	shadow  *FrameBuffer
	active  int

	// observe receives the duration of every retrace wait.
	observe func(time.Duration)
}

// reset binds new buffers. The first buffer is programmed into the hardware
// with the mode, so with two buffers drawing starts in the second one.
func (sw *swapper) reset(buffers []*FrameBuffer, shadow *FrameBuffer) {
	sw.buffers = buffers
	sw.shadow = shadow
	sw.active = len(buffers) - 1
	if sw.active < 0 {
		sw.active = 0
	}
}

// target returns the buffer that is drawn next.
func (sw *swapper) target() *FrameBuffer {
	if len(sw.buffers) == 0 {
		return nil
	}
	return sw.buffers[sw.active]
}

func (sw *swapper) doubleBuffered() bool {
	return len(sw.buffers) == 2
}

func (sw *swapper) waitRetrace() error {
	start := time.Now()
	if err := sw.backend.WaitVerticalRetrace(); err != nil {
		return &BackendError{Op: "wait vertical retrace", Err: err}
	}
	if sw.observe != nil {
		sw.observe(time.Since(start))
	}
	return nil
}

func (sw *swapper) swapVisible() error {
	if err := sw.backend.SwapVisibleBuffer(sw.active); err != nil {
		return &BackendError{Op: "swap visible buffer", Err: err}
	}
	return nil
}

// present shows the buffer that was just drawn and flips to the other one.
// It is a no-op when single buffered.
func (sw *swapper) present(s *Surface) error {
	if !sw.doubleBuffered() {
		return nil
	}

	var steps [2]func() error
	switch sw.backend.RetraceOrder() {
	case WaitThenSwap:
		// Mode registers must only change during the retrace
		steps = [2]func() error{sw.waitRetrace, sw.swapVisible}
	default:
		steps = [2]func() error{sw.swapVisible, sw.waitRetrace}
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	sw.active = 1 - sw.active
	if sw.shadow == nil && s != nil {
		s.Pix = sw.buffers[sw.active].Pix
	}
	return nil
}
