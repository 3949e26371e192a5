// Package steps holds the arithmetic behind the step reports: summaries,
// daily goal checks, date windows and batch files.
package steps

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// DateLayout is the only date format the remote service accepts.
	DateLayout = "2006-01-02"

	MaxCount    = 70000
	DefaultGoal = 10000
	DefaultDays = 7
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Entry is one day of step data
type Entry struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// ValidateDate checks that s is a real calendar date in YYYY-MM-DD form.
func ValidateDate(s string) error {
	if !datePattern.MatchString(s) {
		return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	return nil
}

// ValidateCount checks the accepted step range.
func ValidateCount(n int) error {
	if n < 0 || n > MaxCount {
		return fmt.Errorf("invalid step count %d: must be between 0 and %d", n, MaxCount)
	}
	return nil
}

// ResolveDate turns "today" and "yesterday" into a date relative to now and
// validates everything else.
func ResolveDate(s string, now time.Time) (string, error) {
	switch s {
	case "", "today":
		return now.Format(DateLayout), nil
	case "yesterday":
		return now.AddDate(0, 0, -1).Format(DateLayout), nil
	}
	if err := ValidateDate(s); err != nil {
		return "", err
	}
	return s, nil
}

// RecentRange returns the inclusive window of the last days days ending on
// now's date.
func RecentRange(now time.Time, days int) (start, end string) {
	if days <= 0 {
		days = DefaultDays
	}
	return now.AddDate(0, 0, -(days - 1)).Format(DateLayout), now.Format(DateLayout)
}

// SinceRange returns the window from days days before now's date through
// now's date, so it spans days+1 dates.
func SinceRange(now time.Time, days int) (start, end string) {
	if days <= 0 {
		days = DefaultDays
	}
	return now.AddDate(0, 0, -days).Format(DateLayout), now.Format(DateLayout)
}

// Summary aggregates a range of entries.
type Summary struct {
	Days         int
	DaysWithData int
	Total        int
	Average      float64
	Best         Entry
	Worst        Entry
}

// Summarize computes totals over entries. Days is the requested window and
// is only reported back.
func Summarize(entries []Entry, days int) Summary {
	s := Summary{Days: days, DaysWithData: len(entries)}
	if len(entries) == 0 {
		return s
	}

	s.Best, s.Worst = entries[0], entries[0]
	for _, e := range entries {
		s.Total += e.Count
		if e.Count > s.Best.Count {
			s.Best = e
		}
		if e.Count < s.Worst.Count {
			s.Worst = e
		}
	}
	s.Average = float64(s.Total) / float64(len(entries))
	return s
}

// GoalStatus is the result of CheckGoal.
type GoalStatus struct {
	Date     string
	Goal     int
	Steps    int
	Found    bool
	Achieved bool
	// Remaining is negative when the goal was exceeded.
	Remaining int
	Progress  float64
}

// Exceeded returns how far past the goal the day went.
func (g GoalStatus) Exceeded() int {
	if g.Remaining >= 0 {
		return 0
	}
	return -g.Remaining
}

// CheckGoal looks up date in entries and measures it against goal.
func CheckGoal(entries []Entry, date string, goal int) GoalStatus {
	if goal <= 0 {
		goal = DefaultGoal
	}
	st := GoalStatus{Date: date, Goal: goal, Remaining: goal}
	for _, e := range entries {
		if e.Date == date {
			st.Found = true
			st.Steps = e.Count
			break
		}
	}
	st.Remaining = goal - st.Steps
	st.Achieved = st.Steps >= goal
	st.Progress = float64(st.Steps) / float64(goal) * 100
	return st
}

// Sort orders entries by date ascending.
func Sort(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date < entries[j].Date })
}

var printer = message.NewPrinter(language.English)

// FormatCount renders n with thousands separators.
func FormatCount(n int) string {
	return printer.Sprintf("%d", n)
}

// FormatAverage renders a rounded average with thousands separators.
func FormatAverage(f float64) string {
	return printer.Sprintf("%.0f", f)
}
