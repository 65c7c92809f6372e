package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// AuditEventType categorizes audit events.
type AuditEventType string

const (
	AuditEventScore         AuditEventType = "diagram.score"
	AuditEventTrack         AuditEventType = "diagram.track"
	AuditEventRejected      AuditEventType = "diagram.rejected"
	AuditEventStoreDegraded AuditEventType = "store.degraded"
	AuditEventSuggest       AuditEventType = "diagram.suggest"
	AuditEventLLMError      AuditEventType = "llm.error"
	AuditEventWorkflowStart AuditEventType = "workflow.start"
	AuditEventWorkflowEnd   AuditEventType = "workflow.end"
)

// AuditEvent is a single JSON line in the audit log.
type AuditEvent struct {
	Timestamp   time.Time      `json:"timestamp"`
	EventType   AuditEventType `json:"event_type"`
	Identity    string         `json:"identity,omitempty"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	WorkflowID  string         `json:"workflow_id,omitempty"`
	Success     bool           `json:"success"`
	DurationMS  int64          `json:"duration_ms,omitempty"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	ErrorDetail string         `json:"error_detail,omitempty"`
}

// AuditConfig configures the audit logger.
type AuditConfig struct {
	Enabled    bool
	OutputPath string // file path, "stdout" or "stderr"
}

// AuditLogger writes audit events as JSON lines.
type AuditLogger struct {
	mu      sync.Mutex
	writer  io.Writer
	enabled bool
	now     func() time.Time
}

// NewAuditLogger creates an audit logger. A disabled config yields a logger
// that drops every event.
func NewAuditLogger(cfg AuditConfig) (*AuditLogger, error) {
	if !cfg.Enabled {
		return &AuditLogger{}, nil
	}

	var w io.Writer
	switch cfg.OutputPath {
	case "stdout", "":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		w = f
	}
	return NewAuditWriter(w), nil
}

// NewAuditWriter creates an enabled audit logger writing to w.
func NewAuditWriter(w io.Writer) *AuditLogger {
	return &AuditLogger{writer: w, enabled: true, now: time.Now}
}

// Log writes an audit event.
func (l *AuditLogger) Log(event *AuditEvent) error {
	if l == nil || !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	_, err = fmt.Fprintf(l.writer, "%s\n", data)
	return err
}

// LogScore records a scored diagram.
func (l *AuditLogger) LogScore(fingerprint string, total int, duration time.Duration) {
	l.Log(&AuditEvent{
		EventType:   AuditEventScore,
		Fingerprint: fingerprint,
		Success:     true,
		DurationMS:  duration.Milliseconds(),
		Message:     fmt.Sprintf("Scored diagram: total=%d", total),
		Details:     map[string]any{"total": total},
	})
}

// LogRejected records a diagram that failed validation.
func (l *AuditLogger) LogRejected(identity string, err error) {
	l.Log(&AuditEvent{
		EventType:   AuditEventRejected,
		Identity:    identity,
		Success:     false,
		Message:     "Diagram rejected",
		ErrorDetail: err.Error(),
	})
}

// LogTrack records a tracked scoring call.
func (l *AuditLogger) LogTrack(identity, fingerprint, snapshotID string, total int, trendStatus string) {
	l.Log(&AuditEvent{
		EventType:   AuditEventTrack,
		Identity:    identity,
		Fingerprint: fingerprint,
		Success:     true,
		Message:     fmt.Sprintf("Tracked diagram: total=%d trends=%s", total, trendStatus),
		Details: map[string]any{
			"snapshot_id":  snapshotID,
			"total":        total,
			"trend_status": trendStatus,
		},
	})
}

// LogStoreDegraded records a snapshot store failure that degraded trends.
func (l *AuditLogger) LogStoreDegraded(identity, detail string) {
	l.Log(&AuditEvent{
		EventType:   AuditEventStoreDegraded,
		Identity:    identity,
		Success:     false,
		Message:     "Snapshot store unavailable",
		ErrorDetail: detail,
	})
}

// LogSuggest records a suggestion request.
func (l *AuditLogger) LogSuggest(fingerprint string, actions, changes, aiSuggestions int) {
	l.Log(&AuditEvent{
		EventType:   AuditEventSuggest,
		Fingerprint: fingerprint,
		Success:     true,
		Message:     "Generated suggestions",
		Details: map[string]any{
			"immediate_actions": actions,
			"proposed_changes":  changes,
			"ai_suggestions":    aiSuggestions,
		},
	})
}

// LogLLMError records a failed LLM call.
func (l *AuditLogger) LogLLMError(provider, detail string) {
	l.Log(&AuditEvent{
		EventType:   AuditEventLLMError,
		Success:     false,
		Message:     fmt.Sprintf("LLM error from %s", provider),
		ErrorDetail: detail,
	})
}

// LogWorkflowStart records the start of a durable scoring workflow.
func (l *AuditLogger) LogWorkflowStart(workflowID, identity string) {
	l.Log(&AuditEvent{
		EventType:  AuditEventWorkflowStart,
		WorkflowID: workflowID,
		Identity:   identity,
		Success:    true,
		Message:    "Workflow started",
	})
}

// LogWorkflowEnd records the end of a durable scoring workflow.
func (l *AuditLogger) LogWorkflowEnd(workflowID, identity string, success bool, total int) {
	l.Log(&AuditEvent{
		EventType:  AuditEventWorkflowEnd,
		WorkflowID: workflowID,
		Identity:   identity,
		Success:    success,
		Message:    fmt.Sprintf("Workflow completed: total=%d", total),
	})
}

// Close closes the underlying file, if any.
func (l *AuditLogger) Close() error {
	if l == nil {
		return nil
	}
	if c, ok := l.writer.(io.Closer); ok && c != os.Stdout && c != os.Stderr {
		return c.Close()
	}
	return nil
}
