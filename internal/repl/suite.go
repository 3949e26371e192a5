package repl

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"step-bridge/internal/steps"
)

const (
	suiteCount     = 8500
	suiteSecond    = 9000
	suiteOverwrite = 9500
)

// SuiteResult is the outcome of one named check.
type SuiteResult struct {
	Name   string
	Passed bool
}

// RunSuite exercises every remote operation the way a new deployment is
// smoke-tested. It writes today's step count, so it is opt-in.
func (a *Actions) RunSuite(ctx context.Context) ([]SuiteResult, error) {
	a.out.Heading("Step Challenge API test")

	results := []SuiteResult{
		{Name: "capabilities", Passed: a.suiteCapabilities(ctx)},
		{Name: "profile", Passed: a.suiteProfile(ctx)},
		{Name: "add steps", Passed: a.suiteAdd(ctx)},
		{Name: "get steps", Passed: a.suiteGet(ctx)},
	}

	a.out.Heading("Summary")
	title := cases.Title(language.English)
	passed := 0
	for _, r := range results {
		a.out.Check(title.String(r.Name), r.Passed, "")
		if r.Passed {
			passed++
		}
	}
	a.out.Printf("\nOverall: %d/%d tests passed\n", passed, len(results))
	if passed != len(results) {
		return results, fmt.Errorf("%d of %d tests failed", len(results)-passed, len(results))
	}
	a.out.Success("All tests passed")
	return results, nil
}

func (a *Actions) suiteCapabilities(ctx context.Context) bool {
	caps, err := a.api.Capabilities(ctx)
	if err != nil {
		a.out.Check("capabilities", false, err.Error())
		return false
	}
	a.out.Check("capabilities", true, strings.Join(caps.ToolNames(), ", "))
	return true
}

func (a *Actions) suiteProfile(ctx context.Context) bool {
	p, err := a.api.GetUserProfile(ctx)
	if err != nil {
		a.out.Check("profile", false, err.Error())
		return false
	}
	a.out.Check("profile", true, p.User.Name)
	return true
}

// suiteAdd writes today's count, expects a second write without overwrite
// to be refused, then overwrites explicitly.
func (a *Actions) suiteAdd(ctx context.Context) bool {
	today := a.now().Format(steps.DateLayout)

	if _, err := a.api.AddSteps(ctx, today, suiteCount, false); err != nil {
		a.out.Check("add "+today, false, err.Error())
		return false
	}
	a.out.Check("add "+today, true, steps.FormatCount(suiteCount))

	if _, err := a.api.AddSteps(ctx, today, suiteSecond, false); err == nil {
		a.out.Check("overwrite protection", false, "second write was accepted")
		return false
	}
	a.out.Check("overwrite protection", true, "second write refused")

	if _, err := a.api.AddSteps(ctx, today, suiteOverwrite, true); err != nil {
		a.out.Check("overwrite with permission", false, err.Error())
		return false
	}
	a.out.Check("overwrite with permission", true, steps.FormatCount(suiteOverwrite))
	return true
}

func (a *Actions) suiteGet(ctx context.Context) bool {
	all, err := a.api.GetSteps(ctx, "", "")
	if err != nil {
		a.out.Check("all steps", false, err.Error())
		return false
	}
	a.out.Check("all steps", true, fmt.Sprintf("%d days", len(all.Steps)))

	start, end := steps.RecentRange(a.now(), steps.DefaultDays)
	recent, err := a.api.GetSteps(ctx, start, end)
	if err != nil {
		a.out.Check("recent steps", false, err.Error())
		return false
	}
	a.out.Check("recent steps", true, fmt.Sprintf("%d days", len(recent.Steps)))
	return true
}
