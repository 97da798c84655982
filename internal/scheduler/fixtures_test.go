package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

const (
	aprilStart = "2025-04-07"
	aprilEnd   = "2025-04-25"
	groupID    = "機械-1年"
)

// aprilOptions covers three holiday-free weeks starting on a Monday.
func aprilOptions() models.GenerationOptions {
	return models.GenerationOptions{StartDate: aprilStart, EndDate: aprilEnd}
}

func aprilSemester(t *testing.T) Semester {
	t.Helper()
	sem, err := NewSemester(aprilStart, aprilEnd)
	require.NoError(t, err)
	return sem
}

func teacher(id string, mutate ...func(*models.TeacherConstraints)) models.Teacher {
	t := models.Teacher{ID: id, Name: id}
	for _, m := range mutate {
		m(&t.Constraints)
	}
	return t
}

func subject(id, teacherID string, total int) models.Subject {
	return models.Subject{
		ID:           id,
		Name:         id,
		TeacherIDs:   []string{teacherID},
		Department:   "機械",
		Grade:        "1年",
		TotalClasses: total,
		LessonType:   models.LessonNormal,
	}
}

func rooms(ids ...string) []models.Classroom {
	out := make([]models.Classroom, 0, len(ids))
	for i, id := range ids {
		out = append(out, models.Classroom{ID: id, Name: id, Capacity: 40 + i*10})
	}
	return out
}

func basicCatalog() models.Catalog {
	c1 := subject("combo-a", "t3", 3)
	c1.LessonType, c1.ComboSubjectID = models.LessonCombo, "combo-b"
	c2 := subject("combo-b", "t4", 3)
	c2.LessonType, c2.ComboSubjectID = models.LessonCombo, "combo-a"

	return models.Catalog{
		Teachers: []models.Teacher{
			teacher("t1"),
			teacher("t2", func(c *models.TeacherConstraints) { c.NG.Days = []models.Weekday{models.Wednesday} }),
			teacher("t3"),
			teacher("t4"),
		},
		Subjects: []models.Subject{
			subject("s1", "t1", 6),
			subject("s2", "t2", 3),
			c1,
			c2,
		},
		Classrooms: rooms("r1", "r2", "r3"),
	}
}

func entry(id, group, subjectID, teacherID, room string, week int, day models.Weekday, period models.Period, sem Semester) models.ScheduleEntry {
	key := models.SlotKey{Week: week, Weekday: day, Period: period}
	return models.ScheduleEntry{
		ID:          id,
		GroupID:     group,
		TimeSlot:    sem.Slot(key),
		SubjectID:   subjectID,
		TeacherID:   teacherID,
		ClassroomID: room,
		SessionKey:  id,
	}
}
