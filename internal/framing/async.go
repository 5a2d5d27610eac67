package framing

import (
	"context"
	"fmt"
)

// Reader is the minimal surface ReadFrameContext needs from a connection.
type Reader interface {
	Read(p []byte) (int, error)
}

// ReadFrameContext reads one frame cooperatively: it returns ctx.Err() if
// ctx is cancelled before a frame completes, without blocking the caller's
// goroutine past that point. The underlying read keeps running in the
// background and is abandoned; callers that need the socket back should
// close it on cancellation so the background goroutine unblocks too.
func ReadFrameContext(ctx context.Context, r Reader) (*Frame, error) {
	type result struct {
		frame *Frame
		err   error
	}

	done := make(chan result, 1)
	go func() {
		f, err := ReadFrame(r)
		done <- result{f, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("framing: read frame: %w", ctx.Err())
	case res := <-done:
		return res.frame, res.err
	}
}
