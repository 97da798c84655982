package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "timetable:holidays:2025-09-01:2026-03-31", Key("timetable:", "holidays", "2025-09-01", "2026-03-31"))
	assert.Equal(t, "timetable:abc", Key("timetable", "", "abc"))
	assert.Equal(t, "abc", Key("", "abc"))
}
