package pluginrpc

import (
	"encoding/json"
	"time"
)

// HandlerFunc implements one RPC method. It returns the value to
// marshal as the result, or an error (ideally an *Error carrying a
// wire code).
type HandlerFunc func(ctx *Context, params json.RawMessage) (any, error)

// PreHookFunc runs before a request is dispatched; returning a non-nil
// error rejects the request without invoking its handler (spec §4.5
// "Continue or Reject(error)"). Hooks never run for initialize,
// shutdown, or $/-prefixed methods, and must not block.
type PreHookFunc func(method, id string, params json.RawMessage) error

// PostHookFunc runs after a request completes.
type PostHookFunc func(method, id string, success bool, errCode int, duration time.Duration)

type registeredHandler struct {
	fn      HandlerFunc
	timeout time.Duration // 0 means use the server default
}

func isBuiltinOrNotifyMethod(method string) bool {
	switch method {
	case "initialize", "shutdown":
		return true
	}
	return len(method) >= 2 && method[:2] == "$/"
}
