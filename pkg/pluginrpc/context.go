package pluginrpc

import "context"

// Context is what a registered handler receives: the request's
// method/id, its cancellation flag, and access to the server's shared
// state (spec §4.5 "Shared state").
type Context struct {
	context.Context
	Method string
	ID     string

	handle *cancelHandle
	server *Server
}

// Cancelled reports whether a $/cancel notification or a timeout has
// flipped this request's flag. Handlers that do meaningful work should
// poll this at every suspension point (spec §5).
func (c *Context) Cancelled() bool {
	if c.handle == nil {
		return false
	}
	return c.handle.cancelled.Load()
}

// State retrieves the server's shared value, attached once via
// Server.SetState. The zero value and false are returned if no state
// was attached, or if c was built outside of a Server (e.g. a
// handler's unit test).
func (c *Context) State() (any, bool) {
	if c.server == nil {
		return nil, false
	}
	return c.server.state, c.server.state != nil
}

// NotifyProgress emits a progress notification (spec §4.5); percent is
// clamped to [0,100]. A no-op on a Context built outside of a Server.
func (c *Context) NotifyProgress(percent *float64, message string) {
	if c.server == nil {
		return
	}
	c.server.notifyProgress(c.ID, percent, message)
}

// NotifyLog emits a log notification (spec §4.5); level is coerced to
// "info" if it is not one of error/warn/info/debug/trace. A no-op on a
// Context built outside of a Server.
func (c *Context) NotifyLog(level, message string) {
	if c.server == nil {
		return
	}
	c.server.notifyLog(level, message)
}
