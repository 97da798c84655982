package scheduler

import (
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// EventKind classifies a placement trace.
type EventKind string

const (
	EventPlaced    EventKind = "placed"
	EventSkipped   EventKind = "skipped"
	EventRemoved   EventKind = "removed"
	EventShortfall EventKind = "shortfall"
	EventConfig    EventKind = "config_error"
)

// Event is one structured placement decision.
type Event struct {
	Phase     string
	Kind      EventKind
	GroupID   string
	SubjectID string
	TeacherID string
	RoomID    string
	Slot      models.SlotKey
	Date      string
	Reason    string
}

// Tracer receives placement decisions.
type Tracer interface {
	Trace(Event)
}

type nopTracer struct{}

func (nopTracer) Trace(Event) {}

// ZapTracer writes events to a zap logger.
type ZapTracer struct {
	logger *zap.Logger
}

// NewZapTracer wraps the logger; nil yields a no-op logger.
func NewZapTracer(logger *zap.Logger) *ZapTracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapTracer{logger: logger.Named("allocator")}
}

// Trace implements Tracer.
func (t *ZapTracer) Trace(e Event) {
	fields := []zap.Field{
		zap.String("phase", e.Phase),
		zap.String("kind", string(e.Kind)),
	}
	if e.GroupID != "" {
		fields = append(fields, zap.String("group_id", e.GroupID))
	}
	if e.SubjectID != "" {
		fields = append(fields, zap.String("subject_id", e.SubjectID))
	}
	if e.TeacherID != "" {
		fields = append(fields, zap.String("teacher_id", e.TeacherID))
	}
	if e.RoomID != "" {
		fields = append(fields, zap.String("classroom_id", e.RoomID))
	}
	if e.Slot.Week > 0 {
		fields = append(fields, zap.String("slot", e.Slot.String()))
	}
	if e.Date != "" {
		fields = append(fields, zap.String("date", e.Date))
	}
	if e.Reason != "" {
		fields = append(fields, zap.String("reason", e.Reason))
	}

	switch e.Kind {
	case EventConfig:
		t.logger.Warn("placement configuration error", fields...)
	case EventShortfall:
		t.logger.Info("placement shortfall", fields...)
	default:
		t.logger.Debug("placement decision", fields...)
	}
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Trace implements Tracer.
func (r *Recorder) Trace(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of recorded events, optionally filtered by kind.
func (r *Recorder) Events(kinds ...EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0, len(r.events))
	for _, e := range r.events {
		if len(kinds) == 0 || containsKind(kinds, e.Kind) {
			out = append(out, e)
		}
	}
	return out
}

func containsKind(kinds []EventKind, k EventKind) bool {
	for _, v := range kinds {
		if v == k {
			return true
		}
	}
	return false
}
