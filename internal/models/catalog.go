package models

// Catalog bundles the configuration the generator consumes.
type Catalog struct {
	Teachers   []Teacher   `json:"teachers" validate:"dive"`
	Subjects   []Subject   `json:"subjects" validate:"dive"`
	Classrooms []Classroom `json:"classrooms" validate:"dive"`
}

// NormalizeSubjectNames rewrites subject names in place and returns the
// names that still combine two numbered subjects, such as "数学 I/II".
func (c *Catalog) NormalizeSubjectNames() []string {
	var combined []string
	for i := range c.Subjects {
		c.Subjects[i].Name = NormalizeSubjectName(c.Subjects[i].Name)
		if _, _, ok := SplitCombinedSubject(c.Subjects[i].Name); ok {
			combined = append(combined, c.Subjects[i].Name)
		}
	}
	return combined
}

// TeacherByID looks up a teacher.
func (c Catalog) TeacherByID(id string) (Teacher, bool) {
	for _, t := range c.Teachers {
		if t.ID == id {
			return t, true
		}
	}
	return Teacher{}, false
}

// SubjectByID looks up a subject.
func (c Catalog) SubjectByID(id string) (Subject, bool) {
	for _, s := range c.Subjects {
		if s.ID == id {
			return s, true
		}
	}
	return Subject{}, false
}

// ClassroomByID looks up a classroom.
func (c Catalog) ClassroomByID(id string) (Classroom, bool) {
	for _, r := range c.Classrooms {
		if r.ID == id {
			return r, true
		}
	}
	return Classroom{}, false
}

// Departments lists concrete departments referenced by subjects, in first-seen order.
func (c Catalog) Departments() []string {
	var out []string
	seen := map[string]struct{}{}
	for _, s := range c.Subjects {
		if s.Department == "" || s.Department == AllDepartments {
			continue
		}
		if _, ok := seen[s.Department]; ok {
			continue
		}
		seen[s.Department] = struct{}{}
		out = append(out, s.Department)
	}
	return out
}

// Grades lists concrete grades referenced by subjects, in first-seen order.
func (c Catalog) Grades() []string {
	var out []string
	seen := map[string]struct{}{}
	for _, s := range c.Subjects {
		if s.Grade == "" || s.Grade == AllGrades {
			continue
		}
		if _, ok := seen[s.Grade]; ok {
			continue
		}
		seen[s.Grade] = struct{}{}
		out = append(out, s.Grade)
	}
	return out
}
