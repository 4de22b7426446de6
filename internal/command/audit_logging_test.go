package command

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"pkt.systems/chimerax/schema"
	"pkt.systems/pslog"
)

// logSink collects structured log output for inspection.
type logSink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *logSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

// find returns true when any captured line is a debug entry with the
// given message and matching string fields.
func (s *logSink) find(message string, fields map[string]string) bool {
	s.mu.Lock()
	raw := s.buf.String()
	s.mu.Unlock()
line:
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		payload := map[string]any{}
		if err := json.Unmarshal([]byte(line), &payload); err != nil {
			continue
		}
		if pick(payload, "level", "lvl") != "debug" {
			continue
		}
		if pick(payload, "message", "msg") != message {
			continue
		}
		for key, want := range fields {
			if payload[key] != want {
				continue line
			}
		}
		return true
	}
	return false
}

func pick(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := payload[key].(string); ok {
			return value
		}
	}
	return ""
}

func auditTestContext(sink *logSink) context.Context {
	logger := pslog.NewWithOptions(sink, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		VerboseFields: true,
		MinLevel:      pslog.DebugLevel,
	})
	return pslog.ContextWithLogger(context.Background(), logger)
}

func auditTestService() *fakeService {
	return &fakeService{
		renewSessionFn: func(_ context.Context, req schema.RenewSessionRequest) (schema.RenewSessionResponse, error) {
			return schema.RenewSessionResponse{Tab: schema.TabSnapshot{ID: req.TabID}}, nil
		},
		appendOutputFn: func(_ context.Context, _ schema.AppendOutputRequest) (schema.AppendOutputResponse, error) {
			return schema.AppendOutputResponse{}, nil
		},
	}
}

func TestSlashCommandAuditTrail(t *testing.T) {
	wantFields := map[string]string{"command_type": "slash", "command": "/renew"}

	t.Run("enabled by default", func(t *testing.T) {
		sink := &logSink{}
		handler := NewHandler(auditTestService(), HandlerConfig{})
		handled, err := handler.Handle(auditTestContext(sink), "alice", "tab1", "/renew")
		if err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if !handled {
			t.Fatal("slash command should be handled")
		}
		if !sink.find("audit command", wantFields) {
			t.Fatal("audit entry missing for slash command")
		}
	})

	t.Run("disabled by config", func(t *testing.T) {
		sink := &logSink{}
		handler := NewHandler(auditTestService(), HandlerConfig{DisableAuditLogging: true})
		if _, err := handler.Handle(auditTestContext(sink), "alice", "tab1", "/renew"); err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if sink.find("audit command", wantFields) {
			t.Fatal("audit entry written despite DisableAuditLogging")
		}
	})
}
