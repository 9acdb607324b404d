package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/floodfreq/internal/ffa"
)

// WithTimeout bounds every procedure call made through g. A call that does
// not return within d fails with ffa.ErrTimeout even if the underlying
// implementation ignores its context.
func WithTimeout(g Gateway, d time.Duration) Gateway {
	return &timeoutGateway{next: g, timeout: d}
}

// RendererWithTimeout bounds every render call made through r
func RendererWithTimeout(r Renderer, d time.Duration) Renderer {
	return &timeoutRenderer{next: r, timeout: d}
}

type timeoutGateway struct {
	next    Gateway
	timeout time.Duration
}

type invokeResult struct {
	raw json.RawMessage
	err error
}

func (t *timeoutGateway) Invoke(ctx context.Context, proc Procedure, params Params) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan invokeResult, 1)
	go func() {
		raw, err := t.next.Invoke(ctx, proc, params)
		done <- invokeResult{raw: raw, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && ctx.Err() != nil {
			return nil, expired(ctx, string(proc), t.timeout)
		}
		return res.raw, res.err
	case <-ctx.Done():
		return nil, expired(ctx, string(proc), t.timeout)
	}
}

type timeoutRenderer struct {
	next    Renderer
	timeout time.Duration
}

type renderResult struct {
	img string
	err error
}

func (t *timeoutRenderer) Render(ctx context.Context, req PlotRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan renderResult, 1)
	go func() {
		img, err := t.next.Render(ctx, req)
		done <- renderResult{img: img, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && ctx.Err() != nil {
			return "", expired(ctx, "plot_"+string(req.Kind), t.timeout)
		}
		return res.img, res.err
	case <-ctx.Done():
		return "", expired(ctx, "plot_"+string(req.Kind), t.timeout)
	}
}

// expired reports a call whose context ended. Only a passed deadline is a
// timeout; a cancelled caller gets the cancellation back.
func expired(ctx context.Context, name string, d time.Duration) error {
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ctx.Err()
	}
	return ffa.NewProcedureError(name, fmt.Errorf("%w after %s", ffa.ErrTimeout, d))
}
