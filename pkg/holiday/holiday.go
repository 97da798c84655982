// Package holiday resolves non-teaching dates: Japanese statutory holidays,
// substitute holidays and configured school breaks.
package holiday

import (
	"math"
	"sort"
	"time"
)

// DateLayout is the ISO calendar date format used throughout the package.
const DateLayout = "2006-01-02"

// Type classifies how a holiday was derived.
type Type string

const (
	TypeFixed      Type = "fixed"
	TypeCalculated Type = "calculated"
	TypeSubstitute Type = "substitute"
	TypeCustom     Type = "custom"
)

// Holiday is a single non-teaching date.
type Holiday struct {
	Date string `json:"date"`
	Name string `json:"name"`
	Type Type   `json:"type"`
}

type fixedDate struct {
	month time.Month
	day   int
	name  string
}

var fixedDates = []fixedDate{
	{time.January, 1, "元日"},
	{time.February, 11, "建国記念の日"},
	{time.February, 23, "天皇誕生日"},
	{time.April, 29, "昭和の日"},
	{time.May, 3, "憲法記念日"},
	{time.May, 4, "みどりの日"},
	{time.May, 5, "こどもの日"},
	{time.August, 11, "山の日"},
	{time.November, 3, "文化の日"},
	{time.November, 23, "勤労感謝の日"},
}

type floatingDate struct {
	month time.Month
	nth   int
	name  string
}

// nth Monday of the month
var floatingDates = []floatingDate{
	{time.January, 2, "成人の日"},
	{time.July, 3, "海の日"},
	{time.September, 3, "敬老の日"},
	{time.October, 2, "スポーツの日"},
}

// InRange returns the sorted, de-duplicated statutory holidays between start
// and end inclusive. Malformed input yields an empty slice.
func InRange(start, end string) []string {
	return Dates(DetailsInRange(start, end))
}

// DetailsInRange is InRange with names and derivation types.
func DetailsInRange(start, end string) []Holiday {
	from, to, ok := parseRange(start, end)
	if !ok {
		return []Holiday{}
	}

	// Academic years run April to March, so the year before the range start
	// still owns January to March of the start year.
	byDate := make(map[string]Holiday)
	for year := from.Year() - 1; year <= to.Year(); year++ {
		for _, h := range academicYear(year) {
			if _, exists := byDate[h.Date]; !exists {
				byDate[h.Date] = h
			}
		}
	}
	addSubstitutes(byDate)

	result := make([]Holiday, 0, len(byDate))
	for date, h := range byDate {
		day, _ := time.Parse(DateLayout, date)
		if day.Before(from) || day.After(to) {
			continue
		}
		result = append(result, h)
	}
	sortHolidays(result)
	return result
}

// Dates projects holidays onto their dates, preserving order.
func Dates(holidays []Holiday) []string {
	out := make([]string, 0, len(holidays))
	for _, h := range holidays {
		out = append(out, h.Date)
	}
	return out
}

// academicYear lists the holidays of the school year starting in April of
// the given year. Months up to March belong to the following civil year.
func academicYear(year int) []Holiday {
	civil := func(month time.Month) int {
		if month <= time.March {
			return year + 1
		}
		return year
	}

	holidays := make([]Holiday, 0, len(fixedDates)+len(floatingDates)+2)
	for _, f := range fixedDates {
		d := time.Date(civil(f.month), f.month, f.day, 0, 0, 0, 0, time.UTC)
		holidays = append(holidays, Holiday{Date: d.Format(DateLayout), Name: f.name, Type: TypeFixed})
	}
	for _, f := range floatingDates {
		d := nthWeekday(civil(f.month), f.month, time.Monday, f.nth)
		holidays = append(holidays, Holiday{Date: d.Format(DateLayout), Name: f.name, Type: TypeCalculated})
	}
	if day, ok := vernalEquinox(year + 1); ok {
		d := time.Date(year+1, time.March, day, 0, 0, 0, 0, time.UTC)
		holidays = append(holidays, Holiday{Date: d.Format(DateLayout), Name: "春分の日", Type: TypeCalculated})
	}
	if day, ok := autumnalEquinox(year); ok {
		d := time.Date(year, time.September, day, 0, 0, 0, 0, time.UTC)
		holidays = append(holidays, Holiday{Date: d.Format(DateLayout), Name: "秋分の日", Type: TypeCalculated})
	}
	return holidays
}

func addSubstitutes(byDate map[string]Holiday) {
	sundays := make([]time.Time, 0)
	for date, h := range byDate {
		if h.Type == TypeSubstitute {
			continue
		}
		day, err := time.Parse(DateLayout, date)
		if err == nil && day.Weekday() == time.Sunday {
			sundays = append(sundays, day)
		}
	}
	sort.Slice(sundays, func(i, j int) bool { return sundays[i].Before(sundays[j]) })

	for _, sunday := range sundays {
		next := sunday.AddDate(0, 0, 1)
		for {
			if _, taken := byDate[next.Format(DateLayout)]; !taken {
				break
			}
			next = next.AddDate(0, 0, 1)
		}
		byDate[next.Format(DateLayout)] = Holiday{
			Date: next.Format(DateLayout),
			Name: "振替休日",
			Type: TypeSubstitute,
		}
	}
}

func nthWeekday(year int, month time.Month, weekday time.Weekday, nth int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+(nth-1)*7)
}

func vernalEquinox(year int) (int, bool) {
	switch {
	case year >= 2000 && year <= 2099:
		return equinoxDay(20.8431, year), true
	case year >= 2100 && year <= 2150:
		return equinoxDay(21.8510, year), true
	}
	return 0, false
}

func autumnalEquinox(year int) (int, bool) {
	switch {
	case year >= 2000 && year <= 2099:
		return equinoxDay(23.2488, year), true
	case year >= 2100 && year <= 2150:
		return equinoxDay(24.2488, year), true
	}
	return 0, false
}

func equinoxDay(base float64, year int) int {
	elapsed := year - 1980
	return int(math.Floor(base + 0.242194*float64(elapsed) - math.Floor(float64(elapsed)/4)))
}

func parseRange(start, end string) (time.Time, time.Time, bool) {
	from, err := time.Parse(DateLayout, start)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	to, err := time.Parse(DateLayout, end)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func sortHolidays(holidays []Holiday) {
	sort.Slice(holidays, func(i, j int) bool { return holidays[i].Date < holidays[j].Date })
}
