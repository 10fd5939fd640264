package pluginrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testServer() (*Server, *bytes.Buffer) {
	var out bytes.Buffer
	log := logrus.New()
	log.SetOutput(&bytes.Buffer{})
	info := InitializeInfo{
		Name:            "hodu-plugind",
		Version:         "0.1.0",
		ProtocolVersion: "2.0",
		PluginVersion:   "0.1.0",
		Capabilities:    []string{"format.load_model", "backend.run"},
	}
	return New(info, 0, &out, log), &out
}

func readLines(buf *bytes.Buffer) []string {
	var lines []string
	for _, l := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// TestInitializeHandshake matches spec.md's S5 scenario: the response
// to initialize carries the advertised protocol_version, and an
// unregistered method afterward fails with -32601.
func TestInitializeHandshake(t *testing.T) {
	s, out := testServer()
	in := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"no.such.method","params":{}}` + "\n")
	if err := s.Run(context.Background(), in); err != nil {
		t.Fatalf("Run: %v", err)
	}

	lines := readLines(out)
	if len(lines) != 2 {
		t.Fatalf("expected 2 response lines, got %d: %v", len(lines), lines)
	}

	var initResp Response
	if err := json.Unmarshal([]byte(lines[0]), &initResp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var info InitializeInfo
	if err := json.Unmarshal(initResp.Result, &info); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if info.ProtocolVersion != "2.0" {
		t.Fatalf("protocol_version = %q, want 2.0", info.ProtocolVersion)
	}

	var notFound Response
	if err := json.Unmarshal([]byte(lines[1]), &notFound); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if notFound.Error == nil || notFound.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected -32601, got %+v", notFound.Error)
	}
}

// TestMethodsRejectedBeforeInitialize matches spec §4.5's handshake
// rule: every method but $/cancel, $/ping, shutdown fails before
// initialize with INVALID_REQUEST.
func TestMethodsRejectedBeforeInitialize(t *testing.T) {
	s, out := testServer()
	s.RegisterMethod("format.load_model", func(ctx *Context, params json.RawMessage) (any, error) {
		return map[string]string{"snapshot_path": "/tmp/x"}, nil
	}, 0)

	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"format.load_model","params":{}}` + "\n")
	if err := s.Run(context.Background(), in); err != nil {
		t.Fatalf("Run: %v", err)
	}

	lines := readLines(out)
	var resp Response
	if err := json.Unmarshal([]byte(lines[0]), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != CodeInvalidRequest {
		t.Fatalf("expected INVALID_REQUEST, got %+v", resp.Error)
	}
}

// TestReinitializeFails matches spec §4.5: "Re-initialization fails."
func TestReinitializeFails(t *testing.T) {
	s, out := testServer()
	in := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"initialize","params":{}}` + "\n")
	if err := s.Run(context.Background(), in); err != nil {
		t.Fatalf("Run: %v", err)
	}
	lines := readLines(out)
	var second Response
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if second.Error == nil || second.Error.Code != CodeInvalidRequest {
		t.Fatalf("expected a rejection of the second initialize, got %+v", second.Error)
	}
}

// TestBatchOrdering matches spec §8 property 9: for a batch of N
// requests with no notifications, the response array has length N and
// resp[i].id = req[i].id.
func TestBatchOrdering(t *testing.T) {
	s, out := testServer()
	for i := 0; i < 5; i++ {
		n := i
		s.RegisterMethod(methodName(n), func(ctx *Context, params json.RawMessage) (any, error) {
			return map[string]int{"n": n}, nil
		}, 0)
	}

	var sb strings.Builder
	sb.WriteString(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}` + "\n")
	sb.WriteString("[")
	for i := 0; i < 5; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"jsonrpc":"2.0","id":` + itoa(i) + `,"method":"` + methodName(i) + `","params":{}}`)
	}
	sb.WriteString("]\n")

	if err := s.Run(context.Background(), strings.NewReader(sb.String())); err != nil {
		t.Fatalf("Run: %v", err)
	}

	lines := readLines(out)
	if len(lines) != 2 {
		t.Fatalf("expected 2 output lines (init + batch), got %d", len(lines))
	}
	var batch []Response
	if err := json.Unmarshal([]byte(lines[1]), &batch); err != nil {
		t.Fatalf("unmarshal batch: %v", err)
	}
	if len(batch) != 5 {
		t.Fatalf("expected 5 responses, got %d", len(batch))
	}
	for i, resp := range batch {
		wantID := itoa(i)
		if string(resp.ID) != wantID {
			t.Fatalf("response[%d].id = %s, want %s", i, resp.ID, wantID)
		}
	}
}

func methodName(n int) string { return "m" + itoa(n) }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// TestCancellation matches spec.md's S6 scenario: a long handler is
// cancelled via a $/cancel notification and eventually responds with
// REQUEST_CANCELLED; the cancel notification itself gets no response.
func TestCancellation(t *testing.T) {
	s, out := testServer()
	started := make(chan struct{})
	s.RegisterMethod("long.run", func(ctx *Context, params json.RawMessage) (any, error) {
		close(started)
		for i := 0; i < 1000; i++ {
			if ctx.Cancelled() {
				return nil, Cancelled("observed cancellation")
			}
			time.Sleep(time.Millisecond)
		}
		return "done", nil
	}, 0)

	in, w := io.Pipe()
	go func() {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}` + "\n"))
		w.Write([]byte(`{"jsonrpc":"2.0","id":42,"method":"long.run","params":{}}` + "\n"))
		<-started
		w.Write([]byte(`{"jsonrpc":"2.0","method":"$/cancel","params":{"id":42}}` + "\n"))
		w.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Run(context.Background(), in)
	}()
	wg.Wait()

	lines := readLines(out)
	if len(lines) != 2 {
		t.Fatalf("expected exactly 2 response lines (init + long.run; no response for $/cancel), got %d: %v", len(lines), lines)
	}
	var resp Response
	if err := json.Unmarshal([]byte(lines[1]), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != CodeRequestCancelled {
		t.Fatalf("expected REQUEST_CANCELLED, got %+v", resp.Error)
	}
}

// TestTimeoutCancelsHandler matches spec §4.5's timeout rule.
func TestTimeoutCancelsHandler(t *testing.T) {
	s, out := testServer()
	s.RegisterMethod("slow", func(ctx *Context, params json.RawMessage) (any, error) {
		<-ctx.Done()
		return nil, Cancelled("observed cancellation")
	}, 10*time.Millisecond)

	in := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"slow","params":{}}` + "\n")
	if err := s.Run(context.Background(), in); err != nil {
		t.Fatalf("Run: %v", err)
	}
	lines := readLines(out)
	var resp Response
	if err := json.Unmarshal([]byte(lines[1]), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != CodeRequestCancelled {
		t.Fatalf("expected REQUEST_CANCELLED after timeout, got %+v", resp.Error)
	}
}

// TestShutdownRunsCleanupOnce matches spec §4.5: "runs the registered
// cleanup callback (once) and terminates the process with exit code 0."
func TestShutdownRunsCleanupOnce(t *testing.T) {
	s, _ := testServer()
	calls := 0
	s.SetCleanup(func() error {
		calls++
		return nil
	})

	in := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"shutdown","params":{}}` + "\n" +
			`{"jsonrpc":"2.0","id":3,"method":"$/ping","params":{}}` + "\n")
	if err := s.Run(context.Background(), in); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 {
		t.Fatalf("cleanup called %d times, want 1", calls)
	}
}

// TestPreHookCanReject matches spec §4.5: a pre-hook may Reject(error)
// a request before its handler runs.
func TestPreHookCanReject(t *testing.T) {
	s, out := testServer()
	s.RegisterMethod("format.save_model", func(ctx *Context, params json.RawMessage) (any, error) {
		t.Fatal("handler should not run when a pre-hook rejects")
		return nil, nil
	}, 0)
	s.AddPreHook(func(method, id string, params json.RawMessage) error {
		if method == "format.save_model" {
			return NewError(CodeInvalidParams, "rejected by policy")
		}
		return nil
	})

	in := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"format.save_model","params":{}}` + "\n")
	if err := s.Run(context.Background(), in); err != nil {
		t.Fatalf("Run: %v", err)
	}
	lines := readLines(out)
	var resp Response
	if err := json.Unmarshal([]byte(lines[1]), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == nil {
		t.Fatalf("expected the pre-hook's rejection to surface as an error")
	}
}
