package repl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

var ErrExit = errors.New("exit requested")

// REPL is the interactive Step Challenge shell
type REPL struct {
	actions  *Actions
	input    *Input
	output   *Output
	commands map[string]Command
	banner   string
}

// New creates a new REPL instance
func New(actions *Actions, input *Input, banner string) *REPL {
	return &REPL{
		actions:  actions,
		input:    input,
		output:   actions.Output(),
		commands: DefaultCommands(),
		banner:   banner,
	}
}

// Run starts the REPL loop
func (r *REPL) Run(ctx context.Context) error {
	defer r.input.Close()

	if !r.input.IsPiped() {
		r.printWelcome()
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := r.input.ReadLine()
		if IsEOF(err) {
			if !r.input.IsPiped() {
				r.output.Println()
				r.output.Muted("Goodbye!")
			}
			return nil
		}
		if IsInterrupt(err) {
			r.output.Println()
			continue
		}
		if err != nil {
			return fmt.Errorf("input error: %w", err)
		}

		if err := r.Execute(ctx, line); err != nil {
			if errors.Is(err, ErrExit) {
				if !r.input.IsPiped() {
					r.output.Muted("Goodbye!")
				}
				return nil
			}
			if errors.Is(err, context.Canceled) {
				r.output.Warning("Cancelled")
				continue
			}
			r.output.Error("%v", err)
		}
	}
}

// Execute runs a single command line. Ctrl+C cancels the request in flight
// without leaving the shell.
func (r *REPL) Execute(ctx context.Context, line string) error {
	name, args := ParseCommand(line)
	if name == "" {
		return nil
	}

	cmd, ok := r.commands[name]
	if !ok {
		return fmt.Errorf("unknown command: %s (type help for available commands)", name)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	defer signal.Stop(sigCh)

	return cmd.Handler(ctx, r, args)
}

func (r *REPL) printWelcome() {
	r.output.Println()
	r.output.Info("step-bridge shell")
	if r.banner != "" {
		r.output.Muted("%s", r.banner)
	}
	r.output.Muted("Type help for commands, Ctrl+D to exit")
	r.output.Println()
}
