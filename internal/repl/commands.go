package repl

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Command is one REPL command
type Command struct {
	Name        string
	Usage       string
	Description string
	Handler     func(ctx context.Context, r *REPL, args []string) error
}

var commandOrder = []string{
	"capabilities", "profile", "add", "steps", "summary", "goal", "test", "tools", "help", "exit", "quit",
}

// DefaultCommands returns the built-in commands
func DefaultCommands() map[string]Command {
	return map[string]Command{
		"capabilities": {
			Name:        "capabilities",
			Description: "List the tools the service advertises",
			Handler: func(ctx context.Context, r *REPL, _ []string) error {
				return r.actions.Capabilities(ctx)
			},
		},
		"profile": {
			Name:        "profile",
			Description: "Show your profile and active challenge",
			Handler: func(ctx context.Context, r *REPL, _ []string) error {
				return r.actions.Profile(ctx)
			},
		},
		"add": {
			Name:        "add",
			Usage:       "<date|today> <count> [overwrite]",
			Description: "Record steps for a day",
			Handler:     cmdAdd,
		},
		"steps": {
			Name:        "steps",
			Usage:       "[start] [end]",
			Description: "Show step history",
			Handler: func(ctx context.Context, r *REPL, args []string) error {
				var start, end string
				if len(args) > 0 {
					start = args[0]
				}
				if len(args) > 1 {
					end = args[1]
				}
				return r.actions.Steps(ctx, start, end)
			},
		},
		"summary": {
			Name:        "summary",
			Usage:       "[days]",
			Description: "Summarize recent days (default 7)",
			Handler: func(ctx context.Context, r *REPL, args []string) error {
				days, err := optionalInt(args, 0, "days")
				if err != nil {
					return err
				}
				_, err = r.actions.Summary(ctx, days)
				return err
			},
		},
		"goal": {
			Name:        "goal",
			Usage:       "[goal] [date]",
			Description: "Check a daily goal (default 10,000 today)",
			Handler: func(ctx context.Context, r *REPL, args []string) error {
				goal, err := optionalInt(args, 0, "goal")
				if err != nil {
					return err
				}
				date := ""
				if len(args) > 1 {
					date = args[1]
				}
				_, err = r.actions.Goal(ctx, goal, date)
				return err
			},
		},
		"test": {
			Name:        "test",
			Description: "Run the API test suite (writes today's steps)",
			Handler: func(ctx context.Context, r *REPL, _ []string) error {
				_, err := r.actions.RunSuite(ctx)
				return err
			},
		},
		"tools": {
			Name:        "tools",
			Description: "Show the remote tools/list result",
			Handler: func(ctx context.Context, r *REPL, _ []string) error {
				return r.actions.Tools(ctx)
			},
		},
		"help": {
			Name:        "help",
			Description: "Show available commands",
			Handler:     cmdHelp,
		},
		"exit": {
			Name:        "exit",
			Description: "Exit the shell",
			Handler:     cmdExit,
		},
		"quit": {
			Name:        "quit",
			Description: "Exit the shell",
			Handler:     cmdExit,
		},
	}
}

func cmdAdd(ctx context.Context, r *REPL, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: add <date|today> <count> [overwrite]")
	}
	count, err := strconv.Atoi(strings.ReplaceAll(args[1], ",", ""))
	if err != nil {
		return fmt.Errorf("invalid step count %q", args[1])
	}
	overwrite := len(args) > 2 && isYes(args[2])
	return r.actions.Add(ctx, args[0], count, overwrite)
}

func cmdHelp(_ context.Context, r *REPL, _ []string) error {
	r.output.Println()
	r.output.Info("Available commands:")
	r.output.Println()
	for _, name := range commandOrder {
		c := r.commands[name]
		if name == "quit" {
			continue
		}
		usage := strings.TrimSpace(c.Name + " " + c.Usage)
		r.output.Muted("  %-36s %s", usage, c.Description)
	}
	r.output.Println()
	r.output.Info("Tips:")
	r.output.Muted("  - Dates are YYYY-MM-DD, \"today\" or \"yesterday\"")
	r.output.Muted("  - Press Ctrl+C to cancel a request, Ctrl+D to exit")
	r.output.Println()
	return nil
}

func cmdExit(_ context.Context, _ *REPL, _ []string) error {
	return ErrExit
}

func optionalInt(args []string, i int, name string) (int, error) {
	if len(args) <= i {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(args[i], ",", ""))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, args[i])
	}
	return n, nil
}

func isYes(s string) bool {
	switch strings.ToLower(s) {
	case "y", "yes", "true", "overwrite", "--overwrite", "-f":
		return true
	}
	return false
}

// ParseCommand splits a line into a command name and its arguments. A
// leading slash is accepted.
func ParseCommand(input string) (cmd string, args []string) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(input), "/"))
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}
