package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

func TestZapTracerLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tracer := NewZapTracer(zap.New(core))

	tracer.Trace(Event{Phase: "setup", Kind: EventConfig, SubjectID: "s1", Reason: "unknown teacher x"})
	tracer.Trace(Event{Phase: "leftover", Kind: EventShortfall, GroupID: groupID, SubjectID: "s1"})
	tracer.Trace(Event{Phase: "combo", Kind: EventPlaced, Slot: models.SlotKey{Week: 1, Weekday: models.Monday, Period: 1}})

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "allocator", entries[0].LoggerName)
	assert.Equal(t, "unknown teacher x", entries[0].ContextMap()["reason"])
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, groupID, entries[1].ContextMap()["group_id"])
	assert.Equal(t, zapcore.DebugLevel, entries[2].Level)
	assert.Equal(t, "1-月-1", entries[2].ContextMap()["slot"])
}

func TestRecorderFiltersByKind(t *testing.T) {
	r := &Recorder{}
	r.Trace(Event{Kind: EventPlaced})
	r.Trace(Event{Kind: EventSkipped})
	r.Trace(Event{Kind: EventPlaced})

	assert.Len(t, r.Events(), 3)
	assert.Len(t, r.Events(EventPlaced), 2)
	assert.Empty(t, r.Events(EventShortfall))
}
