package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// changeUnavailableNote marks teachers who cannot accept lesson changes.
const changeUnavailableNote = "授業変更にほぼ絶対対応できない"

type rawObject map[string]json.RawMessage

// NormalizeConstraints converts a constraint document in canonical or legacy
// shape into TeacherConstraints. Unknown keys and malformed values of known
// keys are ignored; only a non-object document is an error.
func NormalizeConstraints(data []byte) (TeacherConstraints, error) {
	var c TeacherConstraints
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return c, nil
	}

	var raw rawObject
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return c, fmt.Errorf("constraints must be an object: %w", err)
	}

	c.Fixed = raw.fixedRules("fixed")
	if ng := raw.object("ng"); ng != nil {
		c.NG.Days = ng.weekdays("days")
		c.NG.Periods = ng.periods("periods")
		c.NG.DayPeriods = ng.dayPeriods("dayPeriods")
		c.NG.Dates = ng.strings("dates")
		ng.decode("timeRanges", &c.NG.TimeRanges)
	}
	if wish := raw.object("wish"); wish != nil {
		c.Wish.Days = wish.weekdays("days")
		c.Wish.Periods = wish.periods("periods")
		c.Wish.DayPeriods = wish.dayPeriods("dayPeriods")
		wish.decode("preferConsecutive", &c.Wish.PreferConsecutive)
		c.Wish.Biweekly = wish.parity("biweekly")
	}
	raw.decode("makeup", &c.Makeup)

	c.AvailableDays = raw.weekdays("availableDays")
	c.UnavailableDays = raw.weekdays("unavailableDays")
	c.AvailablePeriods = raw.dayPeriods("availablePeriods")
	c.RequiredPeriods = raw.periods("requiredPeriods")
	raw.decode("maxClassesPerDay", &c.MaxClassesPerDay)
	raw.decode("maxClassesPerWeek", &c.MaxClassesPerWeek)
	raw.decode("sequentialSubjects", &c.Sequential)
	raw.decode("specialTimeStart", &c.SpecialTimeStart)
	raw.decode("changeUnavailable", &c.ChangeUnavailable)
	raw.decode("fullyFixed", &c.FullyFixed)
	var requireConfirmed bool
	if raw.decode("requireConfirmed", &requireConfirmed) && requireConfirmed {
		c.FullyFixed = true
	}
	raw.decode("weeklyGrouping", &c.WeeklyGrouping)
	raw.decode("flexibleScheduling", &c.FlexibleScheduling)
	raw.decode("notes", &c.Notes)

	var preferConsecutive bool
	if raw.decode("preferConsecutiveClasses", &preferConsecutive) && preferConsecutive {
		c.Wish.PreferConsecutive = true
	}
	c.NG.Periods = append(c.NG.Periods, raw.periods("unavailablePeriods")...)

	var specialNotes string
	if raw.decode("specialNotes", &specialNotes) && specialNotes != "" {
		c.Notes = joinNotes(c.Notes, specialNotes)
	}
	if strings.Contains(c.Notes, changeUnavailableNote) {
		c.ChangeUnavailable = true
	}

	if confirmed := raw.object("confirmed"); confirmed != nil {
		applyConfirmed(&c, confirmed)
	}
	if unavailable := raw.object("unavailable"); unavailable != nil {
		applyUnavailable(&c, unavailable)
	}
	if preferred := raw.object("preferred"); preferred != nil {
		applyPreferred(&c, preferred)
	}

	c.tidy()
	return c, nil
}

func applyConfirmed(c *TeacherConstraints, confirmed rawObject) {
	days := confirmed.weekdays("days")
	periods := confirmed.periods("periods")
	if len(periods) == 0 {
		periods = append([]Period(nil), Periods...)
	}
	for _, day := range days {
		c.Fixed = append(c.Fixed, FixedRule{Day: day, Periods: append([]Period(nil), periods...)})
	}

	var frequency string
	if confirmed.decode("frequency", &frequency) && isBiweeklyLabel(frequency) && c.Wish.Biweekly == ParityNone {
		c.Wish.Biweekly = ParityAny
	}

	var special []rawObject
	if confirmed.decode("specialSchedule", &special) {
		for _, item := range special {
			var date string
			if !item.decode("date", &date) {
				continue
			}
			day, err := time.Parse("2006-01-02", date)
			if err != nil {
				continue
			}
			weekday, ok := WeekdayOf(day)
			if !ok {
				continue
			}
			rule := FixedRule{Day: weekday, Date: date, Periods: item.periods("periods")}
			item.decode("subject", &rule.Subject)
			if len(rule.Periods) == 0 {
				rule.Periods = append([]Period(nil), Periods...)
			}
			c.Fixed = append(c.Fixed, rule)
		}
	}

	if subjectSchedules := confirmed.object("subjectSchedules"); subjectSchedules != nil {
		for _, subject := range subjectSchedules.keys() {
			schedule := subjectSchedules.object(subject)
			if schedule == nil {
				continue
			}
			subjectPeriods := schedule.periods("periods")
			for _, day := range schedule.weekdays("days") {
				c.Fixed = append(c.Fixed, FixedRule{Day: day, Periods: subjectPeriods, Subject: subject})
			}
		}
	}

	var start string
	if confirmed.decode("specialTimeStart", &start) && c.SpecialTimeStart == "" {
		c.SpecialTimeStart = start
	}

	var makeup struct {
		TotalDelayMinutes int    `json:"totalDelayMinutes"`
		MakeupClasses     int    `json:"makeupClasses"`
		MakeupLocation    string `json:"makeupLocation"`
		Notes             string `json:"notes"`
	}
	if confirmed.decode("makeupSchedule", &makeup) && c.Makeup == nil {
		c.Makeup = &MakeupNeed{
			TotalDelayMinutes: makeup.TotalDelayMinutes,
			MakeupClasses:     makeup.MakeupClasses,
			Location:          makeup.MakeupLocation,
			Notes:             makeup.Notes,
		}
	}
}

func applyUnavailable(c *TeacherConstraints, unavailable rawObject) {
	days := unavailable.weekdays("days")
	var allDay bool
	unavailable.decode("allDay", &allDay)

	if periods := unavailable.periods("periods"); len(periods) > 0 {
		if len(days) > 0 && !allDay {
			// periods scoped to the listed days
			if c.NG.DayPeriods == nil {
				c.NG.DayPeriods = make(map[Weekday][]Period)
			}
			for _, day := range days {
				c.NG.DayPeriods[day] = append(c.NG.DayPeriods[day], periods...)
			}
			days = nil
		} else {
			c.NG.Periods = append(c.NG.Periods, periods...)
		}
	} else if byDay := unavailable.dayPeriods("periods"); len(byDay) > 0 {
		if c.NG.DayPeriods == nil {
			c.NG.DayPeriods = make(map[Weekday][]Period)
		}
		for day, periods := range byDay {
			c.NG.DayPeriods[day] = append(c.NG.DayPeriods[day], periods...)
		}
	}
	c.NG.Days = append(c.NG.Days, days...)
	c.NG.Dates = append(c.NG.Dates, unavailable.strings("specificDates")...)

	var recurring struct {
		Day  string `json:"day"`
		Time string `json:"time"`
	}
	if unavailable.decode("recurringTime", &recurring) {
		if day, ok := ParseWeekday(recurring.Day); ok {
			if start, end, ok := parseClockRange(recurring.Time); ok {
				c.NG.TimeRanges = append(c.NG.TimeRanges, TimeRange{Day: day, Start: start, End: end})
			}
		}
	}
}

func applyPreferred(c *TeacherConstraints, preferred rawObject) {
	c.Wish.Days = append(c.Wish.Days, preferred.weekdays("days")...)
	if byDay := preferred.nestedDayPeriods("periods"); len(byDay) > 0 {
		if c.Wish.DayPeriods == nil {
			c.Wish.DayPeriods = make(map[Weekday][]Period)
		}
		for day, periods := range byDay {
			c.Wish.DayPeriods[day] = append(c.Wish.DayPeriods[day], periods...)
		}
	}
	var consecutive []json.RawMessage
	if preferred.decode("consecutivePeriods", &consecutive) && len(consecutive) > 0 {
		c.Wish.PreferConsecutive = true
	}
}

func (c *TeacherConstraints) tidy() {
	c.AvailableDays = uniqueWeekdays(c.AvailableDays)
	c.UnavailableDays = uniqueWeekdays(c.UnavailableDays)
	c.RequiredPeriods = uniquePeriods(c.RequiredPeriods)
	c.NG.Days = uniqueWeekdays(c.NG.Days)
	c.NG.Periods = uniquePeriods(c.NG.Periods)
	c.NG.Dates = uniqueStrings(c.NG.Dates)
	for day, periods := range c.NG.DayPeriods {
		c.NG.DayPeriods[day] = uniquePeriods(periods)
	}
	c.Wish.Days = uniqueWeekdays(c.Wish.Days)
	c.Wish.Periods = uniquePeriods(c.Wish.Periods)
	for day, periods := range c.Wish.DayPeriods {
		c.Wish.DayPeriods[day] = uniquePeriods(periods)
	}
}

func (o rawObject) decode(key string, target interface{}) bool {
	value, ok := o[key]
	if !ok || len(value) == 0 || bytes.Equal(value, []byte("null")) {
		return false
	}
	return json.Unmarshal(value, target) == nil
}

func (o rawObject) object(key string) rawObject {
	var nested rawObject
	if !o.decode(key, &nested) {
		return nil
	}
	return nested
}

func (o rawObject) keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (o rawObject) strings(key string) []string {
	var values []string
	o.decode(key, &values)
	return values
}

func (o rawObject) weekdays(key string) []Weekday {
	var values []string
	if !o.decode(key, &values) {
		return nil
	}
	out := make([]Weekday, 0, len(values))
	for _, v := range values {
		if d, ok := ParseWeekday(v); ok {
			out = append(out, d)
		}
	}
	return out
}

func (o rawObject) periods(key string) []Period {
	var values []json.RawMessage
	if !o.decode(key, &values) {
		return nil
	}
	return periodsFrom(values)
}

func (o rawObject) dayPeriods(key string) map[Weekday][]Period {
	var byDay map[string][]json.RawMessage
	if !o.decode(key, &byDay) {
		return nil
	}
	out := make(map[Weekday][]Period, len(byDay))
	for rawDay, values := range byDay {
		day, ok := ParseWeekday(rawDay)
		if !ok {
			continue
		}
		out[day] = append(out[day], periodsFrom(values)...)
	}
	return out
}

// nestedDayPeriods accepts day maps whose values are flat or grouped lists.
func (o rawObject) nestedDayPeriods(key string) map[Weekday][]Period {
	var byDay map[string][]json.RawMessage
	if !o.decode(key, &byDay) {
		return nil
	}
	out := make(map[Weekday][]Period, len(byDay))
	for rawDay, values := range byDay {
		day, ok := ParseWeekday(rawDay)
		if !ok {
			continue
		}
		for _, value := range values {
			var group []json.RawMessage
			if json.Unmarshal(value, &group) == nil {
				out[day] = append(out[day], periodsFrom(group)...)
				continue
			}
			out[day] = append(out[day], periodsFrom([]json.RawMessage{value})...)
		}
	}
	return out
}

func (o rawObject) parity(key string) Parity {
	var flag bool
	if o.decode(key, &flag) {
		if flag {
			return ParityAny
		}
		return ParityNone
	}
	var label string
	if !o.decode(key, &label) {
		return ParityNone
	}
	switch Parity(strings.ToLower(label)) {
	case ParityOdd:
		return ParityOdd
	case ParityEven:
		return ParityEven
	}
	if isBiweeklyLabel(label) {
		return ParityAny
	}
	return ParityNone
}

func (o rawObject) fixedRules(key string) []FixedRule {
	var items []rawObject
	if !o.decode(key, &items) {
		return nil
	}
	out := make([]FixedRule, 0, len(items))
	for _, item := range items {
		var rawDay string
		item.decode("day", &rawDay)
		day, ok := ParseWeekday(rawDay)
		var date string
		item.decode("date", &date)
		if !ok && date != "" {
			if parsed, err := time.Parse("2006-01-02", date); err == nil {
				day, ok = WeekdayOf(parsed)
			}
		}
		if !ok {
			continue
		}
		rule := FixedRule{Day: day, Date: date, Periods: item.periods("periods"), Biweekly: item.parity("biweekly")}
		item.decode("subject", &rule.Subject)
		item.decode("weekRange", &rule.WeekRange)
		if len(rule.Periods) == 0 {
			continue
		}
		out = append(out, rule)
	}
	return out
}

func periodsFrom(values []json.RawMessage) []Period {
	out := make([]Period, 0, len(values))
	for _, value := range values {
		var p Period
		if err := json.Unmarshal(value, &p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func isBiweeklyLabel(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "隔週", "biweekly", "any", "true":
		return true
	}
	return false
}

// parseClockRange reads "13:00-16:10", "13:00〜16:10" or an open "13:00〜".
func parseClockRange(raw string) (string, string, bool) {
	normalized := strings.NewReplacer("〜", "-", "~", "-", "～", "-").Replace(strings.TrimSpace(raw))
	parts := strings.SplitN(normalized, "-", 2)
	start := strings.TrimSpace(parts[0])
	if _, ok := clockMinutes(start); !ok {
		return "", "", false
	}
	end := "23:59"
	if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
		end = strings.TrimSpace(parts[1])
		if _, ok := clockMinutes(end); !ok {
			return "", "", false
		}
	}
	return start, end, true
}

func joinNotes(a, b string) string {
	if a == "" {
		return b
	}
	return a + "\n" + b
}

func uniqueWeekdays(in []Weekday) []Weekday {
	if len(in) == 0 {
		return nil
	}
	out := make([]Weekday, 0, len(in))
	for _, d := range in {
		if !ContainsWeekday(out, d) {
			out = append(out, d)
		}
	}
	return out
}

func uniquePeriods(in []Period) []Period {
	if len(in) == 0 {
		return nil
	}
	out := make([]Period, 0, len(in))
	for _, p := range in {
		if !containsPeriod(out, p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func uniqueStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
