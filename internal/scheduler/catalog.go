package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

var catalogValidator = ruleValidator

// LoadCatalog reads a catalog file. Files ending in .json are decoded as JSON,
// anything else as YAML.
func LoadCatalog(path string) (models.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Catalog{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return DecodeCatalog(data)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog. The document is re-encoded as JSON so
// teacher constraints go through the same legacy adapter as API payloads.
func ParseCatalog(data []byte) (models.Catalog, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return models.Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	raw, err := json.Marshal(plainDates(doc))
	if err != nil {
		return models.Catalog{}, fmt.Errorf("re-encode catalog: %w", err)
	}
	return DecodeCatalog(raw)
}

// plainDates turns unquoted YAML dates back into date strings.
func plainDates(v interface{}) interface{} {
	switch node := v.(type) {
	case map[string]interface{}:
		for k, child := range node {
			node[k] = plainDates(child)
		}
	case []interface{}:
		for i, child := range node {
			node[i] = plainDates(child)
		}
	case time.Time:
		return node.Format("2006-01-02")
	}
	return v
}

// DecodeCatalog decodes and validates a JSON catalog. Subject names are
// normalized on the way in.
func DecodeCatalog(data []byte) (models.Catalog, error) {
	var catalog models.Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return models.Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	catalog.NormalizeSubjectNames()
	if err := ValidateCatalog(catalog); err != nil {
		return models.Catalog{}, err
	}
	return catalog, nil
}

// ValidateCatalog checks struct tags and cross references.
func ValidateCatalog(catalog models.Catalog) error {
	if err := catalogValidator.Struct(catalog); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}

	var problems []string
	teachers := make(map[string]struct{}, len(catalog.Teachers))
	for _, t := range catalog.Teachers {
		if _, dup := teachers[t.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate teacher %s", t.ID))
		}
		teachers[t.ID] = struct{}{}
	}
	rooms := make(map[string]struct{}, len(catalog.Classrooms))
	for _, r := range catalog.Classrooms {
		rooms[r.ID] = struct{}{}
	}
	subjects := make(map[string]models.Subject, len(catalog.Subjects))
	for _, s := range catalog.Subjects {
		if _, dup := subjects[s.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate subject %s", s.ID))
		}
		subjects[s.ID] = s
	}

	for _, s := range catalog.Subjects {
		for _, id := range s.TeacherIDs {
			if _, ok := teachers[id]; !ok {
				problems = append(problems, fmt.Sprintf("subject %s: unknown teacher %s", s.ID, id))
			}
		}
		for _, id := range s.AvailableClassroomIDs {
			if _, ok := rooms[id]; !ok {
				problems = append(problems, fmt.Sprintf("subject %s: unknown classroom %s", s.ID, id))
			}
		}
		if s.LessonType == models.LessonCombo {
			partner, ok := subjects[s.ComboSubjectID]
			switch {
			case s.ComboSubjectID == "":
				problems = append(problems, fmt.Sprintf("subject %s: combo without partner", s.ID))
			case !ok:
				problems = append(problems, fmt.Sprintf("subject %s: unknown combo partner %s", s.ID, s.ComboSubjectID))
			case partner.ComboSubjectID != s.ID:
				problems = append(problems, fmt.Sprintf("subject %s: combo partner %s does not point back", s.ID, s.ComboSubjectID))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid catalog: %s", strings.Join(problems, "; "))
	}
	return nil
}
