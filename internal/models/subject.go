package models

import (
	"fmt"
	"strings"
	"unicode"
)

// LessonType classifies how a subject is delivered.
type LessonType string

const (
	LessonNormal LessonType = "通常"
	LessonCombo  LessonType = "コンビ授業"
	LessonJoint  LessonType = "合同"
)

// AllDepartments and AllGrades are wildcards on subjects.
const (
	AllDepartments = "共通"
	AllGrades      = "全学年"
)

// UnmarshalText accepts English aliases.
func (t *LessonType) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", string(LessonNormal), "normal":
		*t = LessonNormal
	case string(LessonCombo), "combo":
		*t = LessonCombo
	case string(LessonJoint), "joint":
		*t = LessonJoint
	default:
		return fmt.Errorf("unknown lesson type %q", string(text))
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (t LessonType) MarshalText() ([]byte, error) {
	return []byte(t), nil
}

// Subject is a course needing a number of sessions over the semester.
type Subject struct {
	ID                    string             `json:"id" validate:"required"`
	Name                  string             `json:"name" validate:"required"`
	TeacherIDs            []string           `json:"teacherIds" validate:"required,min=1"`
	Department            string             `json:"department"`
	Grade                 string             `json:"grade"`
	TotalClasses          int                `json:"totalClasses" validate:"gte=0"`
	LessonType            LessonType         `json:"lessonType"`
	AvailableClassroomIDs []string           `json:"availableClassroomIds"`
	ComboSubjectID        string             `json:"comboSubjectId,omitempty"`
	PlacementFailures     []PlacementFailure `json:"placementFailures,omitempty"`
}

// PlacementFailure explains why sessions of a subject stayed unplaced.
type PlacementFailure struct {
	Reason        string   `json:"reason"`
	UnplacedCount int      `json:"unplacedCount"`
	TotalCount    int      `json:"totalCount"`
	Details       []string `json:"details,omitempty"`
}

// IsCombo reports whether the subject is one half of a combo pair.
func (s Subject) IsCombo() bool {
	return s.LessonType == LessonCombo && s.ComboSubjectID != ""
}

// IsJoint reports whether the subject is taught to several cohorts at once.
func (s Subject) IsJoint() bool {
	return s.LessonType == LessonJoint
}

// AppliesTo reports whether the subject is taught to the group.
func (s Subject) AppliesTo(g StudentGroup) bool {
	deptOK := s.Department == "" || s.Department == AllDepartments || s.Department == g.Department
	gradeOK := s.Grade == "" || s.Grade == AllGrades || s.Grade == g.Grade
	return deptOK && gradeOK
}

// Classroom is a room lessons can be held in.
type Classroom struct {
	ID        string   `json:"id" validate:"required"`
	Name      string   `json:"name"`
	Capacity  int      `json:"capacity,omitempty"`
	Equipment []string `json:"equipment,omitempty"`
}

// StudentGroup is a department and grade cohort.
type StudentGroup struct {
	ID         string `json:"id"`
	Department string `json:"department"`
	Grade      string `json:"grade"`
}

// GroupID derives the canonical group identifier.
func GroupID(department, grade string) string {
	return department + "-" + grade
}

// NewStudentGroup builds a group with its canonical id.
func NewStudentGroup(department, grade string) StudentGroup {
	return StudentGroup{ID: GroupID(department, grade), Department: department, Grade: grade}
}

var romanNumerals = strings.NewReplacer("Ⅰ", "I", "Ⅱ", "II")

// NormalizeSubjectName writes Ⅰ and Ⅱ as I and II and separates a trailing
// I or II from the name: "キャリア実践Ⅱ" becomes "キャリア実践 II". Runs of
// capitals such as AI are left alone.
func NormalizeSubjectName(name string) string {
	runes := []rune(romanNumerals.Replace(name))
	var b strings.Builder
	for i := 0; i < len(runes); i++ {
		if runes[i] == 'I' && i > 0 && needsNumeralSpace(runes, i) {
			b.WriteRune(' ')
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

func needsNumeralSpace(runes []rune, start int) bool {
	prev := runes[start-1]
	if isUpperASCII(prev) || unicode.IsSpace(prev) || prev == '/' {
		return false
	}
	end := start
	for end < len(runes) && runes[end] == 'I' {
		end++
	}
	if end-start > 2 {
		return false
	}
	return end == len(runes) || !isUpperASCII(runes[end])
}

func isUpperASCII(r rune) bool { return r >= 'A' && r <= 'Z' }

// SplitCombinedSubject splits a "数学 I/II" style name into its two subjects.
func SplitCombinedSubject(name string) (string, string, bool) {
	if !strings.Contains(name, "I/II") {
		return "", "", false
	}
	base := strings.Replace(name, " I/II", "", 1)
	base = strings.Replace(base, "I/II", "", 1)
	return base + " I", base + " II", true
}
