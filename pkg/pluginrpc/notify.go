package pluginrpc

import (
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

var validLogLevels = map[string]bool{
	"error": true, "warn": true, "info": true, "debug": true, "trace": true,
}

type progressParams struct {
	Percent *float64 `json:"percent,omitempty"`
	Message string   `json:"message"`
}

type logParams struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// notifier owns the stdout writer and the rate limiter throttling
// notify_progress emission (spec §4.5 "best-effort" writes, rate per
// config §C7 RPC.ProgressRateHz). Writes never fail the handler; a
// write error is reported to stderr instead (spec §4.5).
type notifier struct {
	mu      sync.Mutex
	out     lineWriter
	limiter *rate.Limiter
	onWriteErr func(error)
}

type lineWriter interface {
	WriteLine(line []byte) error
}

func newNotifier(out lineWriter, ratePerSec float64, onWriteErr func(error)) *notifier {
	if ratePerSec <= 0 {
		ratePerSec = 10
	}
	return &notifier{
		out:        out,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), 1),
		onWriteErr: onWriteErr,
	}
}

func clampPercent(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	if v < 0 {
		v = 0
	} else if v > 100 {
		v = 100
	}
	return &v
}

func coerceLevel(level string) string {
	if validLogLevels[level] {
		return level
	}
	return "info"
}

func (n *notifier) progress(id string, percent *float64, message string) {
	if !n.limiter.Allow() {
		return
	}
	n.emit("$/progress", progressParams{Percent: clampPercent(percent), Message: message})
}

func (n *notifier) log(level, message string) {
	n.emit("$/log", logParams{Level: coerceLevel(level), Message: message})
}

func (n *notifier) emit(method string, params any) {
	raw, err := json.Marshal(params)
	if err != nil {
		n.reportErr(err)
		return
	}
	line, err := json.Marshal(Notification{JSONRPC: protocolVersion, Method: method, Params: raw})
	if err != nil {
		n.reportErr(err)
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.out.WriteLine(line); err != nil {
		n.reportErr(err)
	}
}

func (n *notifier) reportErr(err error) {
	if n.onWriteErr != nil {
		n.onWriteErr(fmt.Errorf("pluginrpc: notification write failed: %w", err))
	}
}
