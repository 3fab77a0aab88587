// Package activity records the audit trail of administrative mutations.
package activity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Events recorded in the audit trail.
const (
	EventCreated  = "created"
	EventUpdated  = "updated"
	EventDeleted  = "deleted"
	EventAccessed = "accessed"
	EventExecuted = "executed"
	EventDenied   = "denied"
)

// Channels group entries by administrative area.
const (
	ChannelPosts          = "post_management"
	ChannelPostCategories = "post_category_management"
	ChannelExperiences    = "experience_management"
	ChannelProjects       = "project_management"
	ChannelRoles          = "role_management"
	ChannelDeveloperPanel = "developer_panel"
	ChannelAuthorization  = "authorization"
)

// Actor 是执行操作的主体；CLI 与系统任务使用 ID 为 0 的具名主体。
type Actor struct {
	ID   uint
	Name string
}

// CLI is the actor used by folioctl.
var CLI = Actor{Name: "cli"}

// Entry describes one auditable action.
type Entry struct {
	ID          int64                  `json:"id"`
	Channel     string                 `json:"channel"`
	CauserID    uint                   `json:"causer_id"`
	CauserName  string                 `json:"causer_name"`
	Event       string                 `json:"event"`
	SubjectType string                 `json:"subject_type,omitempty"`
	SubjectID   uint                   `json:"subject_id,omitempty"`
	Description string                 `json:"description"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// NewEntry starts an entry attributed to actor.
func NewEntry(channel string, actor Actor, event, description string) Entry {
	return Entry{
		Channel:     channel,
		CauserID:    actor.ID,
		CauserName:  actor.Name,
		Event:       event,
		Description: description,
	}
}

// On returns a copy of e bound to a subject.
func (e Entry) On(subjectType string, subjectID uint) Entry {
	e.SubjectType = subjectType
	e.SubjectID = subjectID
	return e
}

// With returns a copy of e carrying an extra property.
func (e Entry) With(key string, value interface{}) Entry {
	props := make(map[string]interface{}, len(e.Properties)+1)
	for k, v := range e.Properties {
		props[k] = v
	}
	props[key] = value
	e.Properties = props
	return e
}

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Logger mirrors entries to the structured log on their channel.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a slog-backed recorder.
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

// Record implements Recorder.
func (l *Logger) Record(ctx context.Context, entry Entry) error {
	l.logger.InfoContext(ctx, entry.Description,
		"channel", entry.Channel,
		"event", entry.Event,
		"causer_id", entry.CauserID,
		"causer", entry.CauserName,
		"subject_type", entry.SubjectType,
		"subject_id", entry.SubjectID,
	)
	return nil
}

// Multi fans entries out to several recorders.
type Multi []Recorder

// Record implements Recorder. Every recorder is attempted.
func (m Multi) Record(ctx context.Context, entry Entry) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemoryRecorder keeps entries in memory.
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []Entry
}

// Record implements Recorder.
func (m *MemoryRecorder) Record(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, entry)
	return nil
}

// Entries returns a copy of the recorded entries.
func (m *MemoryRecorder) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// ByChannel returns the recorded entries for channel.
func (m *MemoryRecorder) ByChannel(channel string) []Entry {
	var out []Entry
	for _, entry := range m.Entries() {
		if entry.Channel == channel {
			out = append(out, entry)
		}
	}
	return out
}

// Reset drops every recorded entry.
func (m *MemoryRecorder) Reset() {
	m.mu.Lock()
	m.entries = nil
	m.mu.Unlock()
}
