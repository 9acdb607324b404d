// Package gatewaytest provides a scripted stand-in for the statistics backend.
package gatewaytest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/floodfreq/internal/gateway"
)

// Call records one procedure invocation
type Call struct {
	Procedure gateway.Procedure
	Params    gateway.Params
}

type response struct {
	result any
	err    error
}

// Fake implements gateway.Gateway and gateway.Renderer. Responses are looked
// up in order: Handler, then queued responses for the procedure, then the
// default response for the procedure.
type Fake struct {
	// Handler, when set, answers every call it returns handled=true for
	Handler func(proc gateway.Procedure, params gateway.Params) (result any, handled bool, err error)

	// Delay is slept before answering, ignoring the context
	Delay time.Duration

	// RenderErr makes every Render call fail
	RenderErr error

	// Image, when set, is returned by Render instead of the placeholder
	Image string

	mu       sync.Mutex
	queues   map[gateway.Procedure][]response
	defaults map[gateway.Procedure]response
	calls    []Call
	renders  []gateway.PlotRequest
}

// New returns an empty fake
func New() *Fake {
	return &Fake{
		queues:   make(map[gateway.Procedure][]response),
		defaults: make(map[gateway.Procedure]response),
	}
}

// On sets the default result for proc
func (f *Fake) On(proc gateway.Procedure, result any) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaults[proc] = response{result: result}
	return f
}

// Fail makes every call to proc fail with err
func (f *Fake) Fail(proc gateway.Procedure, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaults[proc] = response{err: err}
	return f
}

// Queue appends results returned by successive calls to proc before the
// default applies
func (f *Fake) Queue(proc gateway.Procedure, results ...any) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range results {
		f.queues[proc] = append(f.queues[proc], response{result: r})
	}
	return f
}

// Invoke answers a procedure call from the script
func (f *Fake) Invoke(_ context.Context, proc gateway.Procedure, params gateway.Params) (json.RawMessage, error) {
	if f.Delay > 0 {
		time.Sleep(f.Delay)
	}

	f.mu.Lock()
	f.calls = append(f.calls, Call{Procedure: proc, Params: params})
	f.mu.Unlock()

	resp, ok := f.next(proc, params)
	if !ok {
		return nil, fmt.Errorf("no scripted response for %s", proc)
	}
	if resp.err != nil {
		return nil, resp.err
	}
	return json.Marshal(resp.result)
}

// next runs the handler unlocked so concurrent calls can overlap in it
func (f *Fake) next(proc gateway.Procedure, params gateway.Params) (response, bool) {
	if f.Handler != nil {
		if result, handled, err := f.Handler(proc, params); handled {
			return response{result: result, err: err}, true
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if q := f.queues[proc]; len(q) > 0 {
		f.queues[proc] = q[1:]
		return q[0], true
	}
	resp, ok := f.defaults[proc]
	return resp, ok
}

// Render returns a placeholder data URI naming the plot kind
func (f *Fake) Render(_ context.Context, req gateway.PlotRequest) (string, error) {
	if f.Delay > 0 {
		time.Sleep(f.Delay)
	}

	f.mu.Lock()
	f.renders = append(f.renders, req)
	f.mu.Unlock()

	if f.RenderErr != nil {
		return "", f.RenderErr
	}
	if f.Image != "" {
		return f.Image, nil
	}
	return "data:image/png;base64," + string(req.Kind), nil
}

// Calls returns every recorded procedure call in order
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Procedures returns the names of the recorded calls in order
func (f *Fake) Procedures() []gateway.Procedure {
	f.mu.Lock()
	defer f.mu.Unlock()
	procs := make([]gateway.Procedure, len(f.calls))
	for i, c := range f.calls {
		procs[i] = c.Procedure
	}
	return procs
}

// Renders returns every recorded plot request in order
func (f *Fake) Renders() []gateway.PlotRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.PlotRequest(nil), f.renders...)
}
