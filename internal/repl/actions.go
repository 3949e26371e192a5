package repl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"step-bridge/internal/client"
	"step-bridge/internal/steps"
)

// API is the part of the Step Challenge client the actions use.
type API interface {
	Capabilities(ctx context.Context) (*client.Capabilities, error)
	AddSteps(ctx context.Context, date string, count int, allowOverwrite bool) (*client.AddStepsResult, error)
	GetSteps(ctx context.Context, start, end string) (*client.StepsResult, error)
	GetUserProfile(ctx context.Context) (*client.Profile, error)
	ListTools(ctx context.Context) (json.RawMessage, error)
}

// Actions runs API calls and renders their results. The REPL and the
// one-shot commands share it.
type Actions struct {
	api API
	out *Output
	now func() time.Time
}

// NewActions creates an action runner printing to out.
func NewActions(api API, out *Output) *Actions {
	return &Actions{api: api, out: out, now: time.Now}
}

// Output returns where results are printed.
func (a *Actions) Output() *Output {
	return a.out
}

// Capabilities prints the tools advertised by the unauthenticated
// discovery endpoint.
func (a *Actions) Capabilities(ctx context.Context) error {
	caps, err := a.api.Capabilities(ctx)
	if err != nil {
		return err
	}
	a.out.Heading("Capabilities")
	for _, t := range caps.Capabilities.Tools {
		if t.Description != "" {
			a.out.Printf("  %s  ", t.Name)
			a.out.Muted("%s", firstLine(t.Description, 70))
		} else {
			a.out.Printf("  %s\n", t.Name)
		}
	}
	return nil
}

// Tools prints the remote tools/list result.
func (a *Actions) Tools(ctx context.Context) error {
	raw, err := a.api.ListTools(ctx)
	if err != nil {
		return err
	}
	a.out.JSON(raw)
	return nil
}

// Profile prints the current user's profile.
func (a *Actions) Profile(ctx context.Context) error {
	p, err := a.api.GetUserProfile(ctx)
	if err != nil {
		return err
	}
	a.out.Profile(p)
	return nil
}

// Steps prints history between start and end, both optional.
func (a *Actions) Steps(ctx context.Context, start, end string) error {
	entries, err := a.fetch(ctx, start, end)
	if err != nil {
		return err
	}
	title := "Step History"
	if start != "" || end != "" {
		title = fmt.Sprintf("Steps (%s to %s)", orDash(start), orDash(end))
	}
	a.out.Heading(title)
	a.out.Steps(entries)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "…"
	}
	return s
}

// Add records count steps for date ("today", "yesterday" or YYYY-MM-DD).
// An existing entry is only replaced when overwrite is set.
func (a *Actions) Add(ctx context.Context, date string, count int, overwrite bool) error {
	resolved, err := steps.ResolveDate(date, a.now())
	if err != nil {
		return err
	}
	if err := steps.ValidateCount(count); err != nil {
		return err
	}

	res, err := a.api.AddSteps(ctx, resolved, count, overwrite)
	if err != nil {
		var remote *client.RemoteError
		if !overwrite && errors.As(err, &remote) {
			a.out.Warning("%s", remote.Error())
			a.out.Muted("Re-run with overwrite to replace the existing count.")
		}
		return err
	}
	a.out.Added(res, resolved, count)
	return nil
}

// Summary prints totals for the last days days.
func (a *Actions) Summary(ctx context.Context, days int) (steps.Summary, error) {
	if days <= 0 {
		days = steps.DefaultDays
	}
	start, end := steps.RecentRange(a.now(), days)
	entries, err := a.fetch(ctx, start, end)
	if err != nil {
		return steps.Summary{}, err
	}
	s := steps.Summarize(entries, days)
	a.out.Summary(s)
	return s, nil
}

// Goal checks date (default today) against goal (default 10,000).
func (a *Actions) Goal(ctx context.Context, goal int, date string) (steps.GoalStatus, error) {
	resolved, err := steps.ResolveDate(date, a.now())
	if err != nil {
		return steps.GoalStatus{}, err
	}
	entries, err := a.fetch(ctx, resolved, resolved)
	if err != nil {
		return steps.GoalStatus{}, err
	}
	st := steps.CheckGoal(entries, resolved, goal)
	a.out.Goal(st)
	return st, nil
}

// Batch adds every entry in order and reports how many succeeded.
func (a *Actions) Batch(ctx context.Context, entries []steps.Entry, overwrite bool) (int, error) {
	var (
		ok      int
		lastErr error
	)
	for _, e := range entries {
		if _, err := a.api.AddSteps(ctx, e.Date, e.Count, overwrite); err != nil {
			a.out.Check(e.Date, false, err.Error())
			lastErr = err
			continue
		}
		a.out.Check(e.Date, true, steps.FormatCount(e.Count)+" steps")
		ok++
	}
	a.out.Printf("\n%d/%d entries recorded\n", ok, len(entries))
	if lastErr != nil {
		return ok, fmt.Errorf("%d of %d entries failed: %w", len(entries)-ok, len(entries), lastErr)
	}
	return ok, nil
}

// Verify makes one authenticated call to check the token.
func (a *Actions) Verify(ctx context.Context) error {
	p, err := a.api.GetUserProfile(ctx)
	if err != nil {
		a.out.Check("token verification", false, err.Error())
		return err
	}
	a.out.Check("token verification", true, p.User.Name)
	return nil
}

func (a *Actions) fetch(ctx context.Context, start, end string) ([]steps.Entry, error) {
	res, err := a.api.GetSteps(ctx, start, end)
	if err != nil {
		return nil, err
	}
	entries := make([]steps.Entry, 0, len(res.Steps))
	for _, s := range res.Steps {
		entries = append(entries, steps.Entry{Date: s.Date, Count: s.Count})
	}
	steps.Sort(entries)
	return entries, nil
}
