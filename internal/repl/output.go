package repl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"step-bridge/internal/client"
	"step-bridge/internal/steps"
)

// Output handles formatted output to the terminal
type Output struct {
	writer io.Writer
}

// NewOutput creates a new output handler
func NewOutput(w io.Writer) *Output {
	return &Output{writer: w}
}

// Writer returns the underlying writer
func (o *Output) Writer() io.Writer {
	return o.writer
}

// Println prints a message with a newline
func (o *Output) Println(args ...any) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message
func (o *Output) Printf(format string, args ...any) {
	fmt.Fprintf(o.writer, format, args...)
}

// Heading prints a section title with an underline
func (o *Output) Heading(title string) {
	bold := color.New(color.Bold)
	o.Println()
	bold.Fprintln(o.writer, title)
	o.Println(strings.Repeat("=", 50))
}

// Check prints the outcome of one test step
func (o *Output) Check(name string, passed bool, detail string) {
	if passed {
		color.New(color.FgGreen).Fprintf(o.writer, "  ✓ %s", name)
	} else {
		color.New(color.FgRed).Fprintf(o.writer, "  ✗ %s", name)
	}
	if detail != "" {
		detail = firstLine(detail, 80)
		color.New(color.FgHiBlack).Fprintf(o.writer, " %s", detail)
	}
	fmt.Fprintln(o.writer)
}

func firstLine(s string, max int) string {
	line := strings.TrimSpace(strings.SplitN(s, "\n", 2)[0])
	if len(line) > max {
		line = line[:max] + "..."
	}
	return line
}

// JSON pretty-prints a raw JSON document
func (o *Output) JSON(raw json.RawMessage) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		o.Println(string(raw))
		return
	}
	o.Println(buf.String())
}

// Profile prints the user, token and challenge details
func (o *Output) Profile(p *client.Profile) {
	o.Heading("User Profile")
	o.Printf("Name:  %s\n", p.User.Name)
	o.Printf("Email: %s\n", p.User.Email)
	if p.User.Team != "" {
		o.Printf("Team:  %s\n", p.User.Team)
	}
	if p.Token.ExpiresAt != "" {
		o.Muted("Token expires: %s", p.Token.ExpiresAt)
	}
	if p.Token.Permissions != "" {
		o.Muted("Permissions:   %s", p.Token.Permissions)
	}
	if c := p.ActiveChallenge; c != nil {
		o.Info("Active challenge: %s (%s to %s)", c.Name, c.StartDate, c.EndDate)
	} else {
		o.Muted("No active challenge")
	}
}

// Steps prints one line per day
func (o *Output) Steps(entries []steps.Entry) {
	if len(entries) == 0 {
		o.Muted("No step data found")
		return
	}
	for _, e := range entries {
		o.Printf("  %s  %10s\n", e.Date, steps.FormatCount(e.Count))
	}
}

// Summary prints a step summary
func (o *Output) Summary(s steps.Summary) {
	o.Heading(fmt.Sprintf("Step Summary (last %d days)", s.Days))
	if s.DaysWithData == 0 {
		o.Muted("No step data found for this period")
		return
	}
	o.Printf("Total steps:     %s\n", steps.FormatCount(s.Total))
	o.Printf("Average per day: %s\n", steps.FormatAverage(s.Average))
	o.Printf("Best day:        %s (%s steps)\n", s.Best.Date, steps.FormatCount(s.Best.Count))
	o.Printf("Lowest day:      %s (%s steps)\n", s.Worst.Date, steps.FormatCount(s.Worst.Count))
	o.Printf("Days recorded:   %d/%d\n", s.DaysWithData, s.Days)
}

// Goal prints a daily goal check
func (o *Output) Goal(g steps.GoalStatus) {
	switch {
	case !g.Found:
		o.Warning("No steps recorded for %s (goal: %s)", g.Date, steps.FormatCount(g.Goal))
	case g.Achieved:
		o.Success("Daily goal achieved for %s!", g.Date)
		o.Printf("Steps: %s (goal: %s)\n", steps.FormatCount(g.Steps), steps.FormatCount(g.Goal))
		o.Printf("Exceeded by: %s steps\n", steps.FormatCount(g.Exceeded()))
	default:
		o.Info("Progress toward daily goal for %s:", g.Date)
		o.Printf("Steps: %s / %s (%.1f%%)\n", steps.FormatCount(g.Steps), steps.FormatCount(g.Goal), g.Progress)
		o.Printf("Remaining: %s steps\n", steps.FormatCount(g.Remaining))
	}
}

// Added prints the outcome of add_steps
func (o *Output) Added(r *client.AddStepsResult, date string, count int) {
	if r.Date != "" {
		date = r.Date
	}
	if r.Count != 0 {
		count = r.Count
	}
	if r.WasOverwrite && r.OldCount != nil {
		o.Success("Updated %s: %s → %s steps", date, steps.FormatCount(*r.OldCount), steps.FormatCount(count))
		return
	}
	o.Success("Recorded %s steps for %s", steps.FormatCount(count), date)
}

// Error prints an error message
func (o *Output) Error(format string, args ...any) {
	c := color.New(color.FgRed)
	c.Fprintf(o.writer, "Error: "+format+"\n", args...)
}

// Warning prints a warning message
func (o *Output) Warning(format string, args ...any) {
	c := color.New(color.FgYellow)
	c.Fprintf(o.writer, "Warning: "+format+"\n", args...)
}

// Success prints a success message
func (o *Output) Success(format string, args ...any) {
	c := color.New(color.FgGreen)
	c.Fprintf(o.writer, format+"\n", args...)
}

// Info prints an info message
func (o *Output) Info(format string, args ...any) {
	c := color.New(color.FgBlue)
	c.Fprintf(o.writer, format+"\n", args...)
}

// Muted prints muted/gray text
func (o *Output) Muted(format string, args ...any) {
	c := color.New(color.FgHiBlack)
	c.Fprintf(o.writer, format+"\n", args...)
}
