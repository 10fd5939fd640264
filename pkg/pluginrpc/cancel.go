package pluginrpc

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
)

// cancelHandle is the cancellation handle tracked per active request
// (spec §4.5 "concurrent map of active-request-id -> cancellation
// handle"). cancelled is the shared atomic flag a handler polls via
// Context.Cancelled; cancel is the context.CancelFunc that also tears
// down anything downstream awaiting ctx.Done().
type cancelHandle struct {
	cancelled atomic.Bool
	cancel    context.CancelFunc
}

// activeRequests is the concurrent id -> cancelHandle map. Holding its
// lock across an await is forbidden (spec §5); every access here is a
// short map operation, never a wait.
type activeRequests struct {
	mu      sync.Mutex
	handles map[string]*cancelHandle
}

func newActiveRequests() *activeRequests {
	return &activeRequests{handles: make(map[string]*cancelHandle)}
}

func (a *activeRequests) register(id string, h *cancelHandle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handles[id] = h
}

func (a *activeRequests) unregister(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.handles, id)
}

// cancel flips the flag for id and cancels its context, if still
// active. A cancel notification for an unknown or already-completed
// id is a silent no-op (spec §4.5 does not define an error for it).
func (a *activeRequests) cancel(id string) {
	a.mu.Lock()
	h, ok := a.handles[id]
	a.mu.Unlock()
	if !ok {
		return
	}
	h.cancelled.Store(true)
	h.cancel()
}

func idKey(id RequestID) string {
	if len(id) == 0 {
		return ""
	}
	return string(id)
}

type cancelParams struct {
	ID json.RawMessage `json:"id"`
}
