package pluginrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// InitializeInfo is what the server reports in its initialize
// response (spec §4.5): "{name, version, protocol_version,
// plugin_version, capabilities[], model_extensions?,
// tensor_extensions?, devices?, metadata?}".
type InitializeInfo struct {
	Name             string   `json:"name"`
	Version          string   `json:"version"`
	ProtocolVersion  string   `json:"protocol_version"`
	PluginVersion    string   `json:"plugin_version"`
	Capabilities     []string `json:"capabilities"`
	ModelExtensions  []string `json:"model_extensions,omitempty"`
	TensorExtensions []string `json:"tensor_extensions,omitempty"`
	Devices          []string `json:"devices,omitempty"`
	Metadata         any      `json:"metadata,omitempty"`
}

// Server is a plugin's JSON-RPC runtime: line-delimited request
// dispatch, the handshake/shutdown state machine, cooperative
// cancellation, per-method timeouts, and best-effort notifications
// (spec §4.5).
type Server struct {
	info InitializeInfo
	log  *logrus.Logger

	mu         sync.Mutex
	lifecycle  lifecycle
	handlers   map[string]registeredHandler
	cleanup    func() error
	cleanupRan bool
	state      any

	defaultTimeout time.Duration

	active    *activeRequests
	notifier  *notifier
	preHooks  []PreHookFunc
	postHooks []PostHookFunc

	out *lineOut
}

// New constructs a Server advertising info on a successful initialize.
// defaultTimeout of 0 means handlers never time out unless a
// per-method override is registered.
func New(info InitializeInfo, defaultTimeout time.Duration, out io.Writer, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	lo := &lineOut{w: out}
	s := &Server{
		info:           info,
		log:            log,
		lifecycle:      lifecycleUninit,
		handlers:       make(map[string]registeredHandler),
		defaultTimeout: defaultTimeout,
		active:         newActiveRequests(),
		out:            lo,
	}
	s.notifier = newNotifier(lo, 10, func(err error) {
		s.log.Warnf("pluginrpc: %v", err)
	})
	return s
}

// SetProgressRate reconfigures the notify_progress throttle, in
// notifications per second (spec §4.5, configured via RPC.ProgressRateHz).
func (s *Server) SetProgressRate(perSecond float64) {
	s.notifier = newNotifier(s.out, perSecond, func(err error) {
		s.log.Warnf("pluginrpc: %v", err)
	})
}

// RegisterMethod registers a handler for method. timeout of 0 uses the
// server's default timeout.
func (s *Server) RegisterMethod(method string, fn HandlerFunc, timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = registeredHandler{fn: fn, timeout: timeout}
}

// SetCleanup registers the callback shutdown runs exactly once before
// the server reports EXIT (spec §4.5).
func (s *Server) SetCleanup(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanup = fn
}

// SetState attaches the single Any-typed shared value handlers can
// retrieve via Context.State (spec §4.5 "Shared state").
func (s *Server) SetState(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = v
}

// AddPreHook registers a pre-request hook (spec §4.5). Hooks run in
// registration order; the first rejection wins.
func (s *Server) AddPreHook(h PreHookFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preHooks = append(s.preHooks, h)
}

// AddPostHook registers a post-request hook (spec §4.5).
func (s *Server) AddPostHook(h PostHookFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.postHooks = append(s.postHooks, h)
}

func (s *Server) notifyProgress(id string, percent *float64, message string) {
	s.notifier.progress(id, percent, message)
}

func (s *Server) notifyLog(level, message string) {
	s.notifier.log(level, message)
}

// Run drives the read loop: one line in, one JSON value or array of
// responses out, until in is exhausted or shutdown terminates the
// server (spec §4.5 transport). Requests (and batches) are processed
// one at a time by a single worker, matching "no request parallelism
// within a single process" (spec §5); a standalone $/cancel
// notification is handled by the reader as soon as it arrives instead
// of waiting behind the worker, so it can reach a handler that is
// awaiting on I/O (spec §5 "cancel notification ... can be observed if
// handlers await on I/O").
func (s *Server) Run(ctx context.Context, in io.Reader) error {
	lineCh := make(chan string)
	exitCh := make(chan struct{})
	workerDone := make(chan struct{})
	errCh := make(chan error, 1)
	var exitOnce sync.Once

	go func() {
		defer close(workerDone)
		for line := range lineCh {
			s.mu.Lock()
			exited := s.lifecycle == lifecycleExit
			s.mu.Unlock()
			if exited {
				continue
			}
			s.handleLine(ctx, line)
			s.mu.Lock()
			exited = s.lifecycle == lifecycleExit
			s.mu.Unlock()
			if exited {
				exitOnce.Do(func() { close(exitCh) })
			}
		}
	}()

	go func() {
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if s.tryHandleStandaloneCancel(line) {
				continue
			}
			lineCh <- line
		}
		errCh <- scanner.Err()
		close(lineCh)
	}()

	select {
	case <-exitCh:
		return nil
	case err := <-errCh:
		<-workerDone
		return err
	}
}

// tryHandleStandaloneCancel handles a non-batch $/cancel notification
// immediately, bypassing the worker queue, and reports whether it did.
func (s *Server) tryHandleStandaloneCancel(line string) bool {
	if strings.HasPrefix(line, "[") {
		return false
	}
	var probe struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal([]byte(line), &probe); err != nil || probe.Method != "$/cancel" {
		return false
	}
	s.cancelByParams(probe.Params)
	return true
}

func (s *Server) cancelByParams(params json.RawMessage) {
	var p cancelParams
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	s.active.cancel(string(p.ID))
}

func (s *Server) handleLine(ctx context.Context, line string) {
	if strings.HasPrefix(line, "[") {
		var reqs []Request
		if err := json.Unmarshal([]byte(line), &reqs); err != nil {
			s.writeResponse(newErrorResponse(nil, CodeParseError, "parse error: "+err.Error(), nil))
			return
		}
		responses := make([]*Response, 0, len(reqs))
		for i := range reqs {
			if resp := s.dispatch(ctx, &reqs[i]); resp != nil {
				responses = append(responses, resp)
			}
		}
		if len(responses) > 0 {
			s.writeBatch(responses)
		}
		return
	}

	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		s.writeResponse(newErrorResponse(nil, CodeParseError, "parse error: "+err.Error(), nil))
		return
	}
	if resp := s.dispatch(ctx, &req); resp != nil {
		s.writeResponse(resp)
	}
}

// dispatch processes a single request or notification in order
// (spec §5 "Ordering guarantees") and returns the response to emit, or
// nil for a notification.
func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "$/cancel":
		s.handleCancel(req)
		return nil
	case "$/ping":
		return s.respondOK(req, map[string]string{"status": "ok"})
	case "initialize":
		return s.handleInitialize(req)
	case "shutdown":
		return s.handleShutdown(req)
	}

	s.mu.Lock()
	state := s.lifecycle
	s.mu.Unlock()
	if state != lifecycleReady && !methodsAllowedBeforeInit[req.Method] {
		return s.errorOrNil(req, CodeInvalidRequest, "Server not initialized", nil)
	}

	s.mu.Lock()
	rh, ok := s.handlers[req.Method]
	s.mu.Unlock()
	if !ok {
		return s.errorOrNil(req, CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil)
	}

	if !isBuiltinOrNotifyMethod(req.Method) {
		if err := s.runPreHooks(req); err != nil {
			return s.errorOrNilWire(req, errorToWire(err))
		}
	}

	start := time.Now()
	result, err := s.invoke(ctx, req, rh)
	duration := time.Since(start)

	if !isBuiltinOrNotifyMethod(req.Method) {
		s.runPostHooks(req, err, duration)
	}

	if err != nil {
		wire := errorToWire(err)
		return s.errorOrNilWire(req, wire)
	}
	return s.respondOK(req, result)
}

func (s *Server) runPreHooks(req *Request) error {
	s.mu.Lock()
	hooks := append([]PreHookFunc(nil), s.preHooks...)
	s.mu.Unlock()
	for _, h := range hooks {
		if err := h(req.Method, idKey(req.ID), req.Params); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) runPostHooks(req *Request, err error, duration time.Duration) {
	s.mu.Lock()
	hooks := append([]PostHookFunc(nil), s.postHooks...)
	s.mu.Unlock()
	code := 0
	if err != nil {
		code = errorToWire(err).Code
	}
	for _, h := range hooks {
		h(req.Method, idKey(req.ID), err == nil, code, duration)
	}
}

// invoke runs rh's handler under the request's timeout, propagating
// cancellation cooperatively (spec §4.5 "Timeouts", §5 "Cancellation
// semantics").
func (s *Server) invoke(parent context.Context, req *Request, rh registeredHandler) (any, error) {
	timeout := rh.timeout
	if timeout == 0 {
		timeout = s.defaultTimeout
	}

	hctx, cancel := context.WithCancel(parent)
	var timer *time.Timer
	if timeout > 0 {
		timer = time.AfterFunc(timeout, cancel)
	}

	handle := &cancelHandle{cancel: cancel}
	key := idKey(req.ID)
	if key != "" {
		s.active.register(key, handle)
		defer s.active.unregister(key)
	}
	defer cancel()

	rctx := &Context{Context: hctx, Method: req.Method, ID: key, handle: handle, server: s}
	result, err := rh.fn(rctx, req.Params)

	if timer != nil && !timer.Stop() {
		// The timer fired; report the cancellation-by-timeout form
		// named in spec §4.5 regardless of what the handler returned.
		if hctx.Err() != nil {
			return nil, Cancelled(fmt.Sprintf("Request timed out after %s", timeout))
		}
	}
	return result, err
}

func (s *Server) handleCancel(req *Request) {
	s.cancelByParams(req.Params)
}

func (s *Server) handleInitialize(req *Request) *Response {
	s.mu.Lock()
	already := s.lifecycle != lifecycleUninit
	if !already {
		s.lifecycle = lifecycleReady
	}
	s.mu.Unlock()
	if already {
		return s.errorOrNil(req, CodeInvalidRequest, "already initialized", nil)
	}
	return s.respondOK(req, s.info)
}

func (s *Server) handleShutdown(req *Request) *Response {
	s.mu.Lock()
	s.lifecycle = lifecycleCleanup
	cleanup := s.cleanup
	ran := s.cleanupRan
	if !ran {
		s.cleanupRan = true
	}
	s.mu.Unlock()

	var cleanupErr error
	if cleanup != nil && !ran {
		cleanupErr = cleanup()
	}

	s.mu.Lock()
	s.lifecycle = lifecycleExit
	s.mu.Unlock()

	if cleanupErr != nil {
		return s.errorOrNil(req, CodeInternalError, cleanupErr.Error(), nil)
	}
	return s.respondOK(req, map[string]bool{"ok": true})
}

func (s *Server) respondOK(req *Request, result any) *Response {
	if req.IsNotification() {
		return nil
	}
	resp, err := newResponse(req.ID, result)
	if err != nil {
		return newErrorResponse(req.ID, CodeInternalError, err.Error(), nil)
	}
	return resp
}

func (s *Server) errorOrNil(req *Request, code int, msg string, data any) *Response {
	if req.IsNotification() {
		return nil
	}
	return newErrorResponse(req.ID, code, msg, data)
}

func (s *Server) errorOrNilWire(req *Request, wire *WireError) *Response {
	if req.IsNotification() {
		return nil
	}
	return &Response{JSONRPC: protocolVersion, Error: wire, ID: req.ID}
}

func (s *Server) writeResponse(resp *Response) {
	if resp == nil {
		return
	}
	line, err := json.Marshal(resp)
	if err != nil {
		s.log.Errorf("pluginrpc: marshal response: %v", err)
		return
	}
	if err := s.out.WriteLine(line); err != nil {
		s.log.Warnf("pluginrpc: write response: %v", err)
	}
}

func (s *Server) writeBatch(resps []*Response) {
	line, err := json.Marshal(resps)
	if err != nil {
		s.log.Errorf("pluginrpc: marshal batch: %v", err)
		return
	}
	if err := s.out.WriteLine(line); err != nil {
		s.log.Warnf("pluginrpc: write batch: %v", err)
	}
}

// lineOut serializes writes of complete lines to the underlying
// writer, shared between response output and notify_progress/
// notify_log so the two never interleave mid-line.
type lineOut struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lineOut) WriteLine(line []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(line); err != nil {
		return err
	}
	_, err := l.w.Write([]byte("\n"))
	return err
}
