package holiday

import (
	"fmt"
	"strings"
	"time"
)

// Break is a configured school closure such as a winter recess.
type Break struct {
	From time.Time
	To   time.Time
	Name string
}

// ParseBreaks reads break specs of the form "2025-12-24..2026-01-07" with an
// optional "=name" suffix. A single date is a one-day break.
func ParseBreaks(specs []string) ([]Break, error) {
	breaks := make([]Break, 0, len(specs))
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		name := "休業日"
		if idx := strings.Index(spec, "="); idx >= 0 {
			name = strings.TrimSpace(spec[idx+1:])
			spec = strings.TrimSpace(spec[:idx])
		}
		fromRaw, toRaw := spec, spec
		if idx := strings.Index(spec, ".."); idx >= 0 {
			fromRaw, toRaw = strings.TrimSpace(spec[:idx]), strings.TrimSpace(spec[idx+2:])
		}
		from, to, ok := parseRange(fromRaw, toRaw)
		if !ok {
			return nil, fmt.Errorf("invalid break %q", spec)
		}
		breaks = append(breaks, Break{From: from, To: to, Name: name})
	}
	return breaks, nil
}

// Resolver combines the statutory calendar with configured breaks.
type Resolver struct {
	breaks []Break
}

// NewResolver builds a resolver with optional breaks.
func NewResolver(breaks ...Break) *Resolver {
	return &Resolver{breaks: append([]Break(nil), breaks...)}
}

// Holidays returns statutory holidays and break days in range, sorted by date.
// Statutory names win when a break overlaps a holiday.
func (r *Resolver) Holidays(start, end string) []Holiday {
	result := DetailsInRange(start, end)
	from, to, ok := parseRange(start, end)
	if !ok || r == nil || len(r.breaks) == 0 {
		return result
	}

	seen := make(map[string]struct{}, len(result))
	for _, h := range result {
		seen[h.Date] = struct{}{}
	}
	for _, b := range r.breaks {
		for day := b.From; !day.After(b.To); day = day.AddDate(0, 0, 1) {
			if day.Before(from) || day.After(to) {
				continue
			}
			date := day.Format(DateLayout)
			if _, dup := seen[date]; dup {
				continue
			}
			seen[date] = struct{}{}
			result = append(result, Holiday{Date: date, Name: b.Name, Type: TypeCustom})
		}
	}
	sortHolidays(result)
	return result
}

// Dates returns only the dates of Holidays.
func (r *Resolver) Dates(start, end string) []string {
	return Dates(r.Holidays(start, end))
}

// Set returns the holiday dates in range as a lookup set.
func (r *Resolver) Set(start, end string) map[string]struct{} {
	holidays := r.Holidays(start, end)
	set := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		set[h.Date] = struct{}{}
	}
	return set
}
