package repl

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
)

// Input handles user input with readline support
type Input struct {
	rl      *readline.Instance
	isPiped bool
	scanner *bufio.Scanner
}

// NewInput creates a new input handler on stdin
func NewInput(prompt string) (*Input, error) {
	stat, err := os.Stdin.Stat()
	if err != nil || (stat.Mode()&os.ModeCharDevice) == 0 {
		return NewPipedInput(os.Stdin), nil
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		HistoryFile:       historyFile(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		AutoComplete:      completer(),
	})
	if err != nil {
		return nil, err
	}

	return &Input{rl: rl}, nil
}

// NewPipedInput reads plain lines from r, without prompts or history
func NewPipedInput(r io.Reader) *Input {
	return &Input{isPiped: true, scanner: bufio.NewScanner(r)}
}

// ReadLine reads a line of input from the user
func (i *Input) ReadLine() (string, error) {
	if i.isPiped {
		if i.scanner.Scan() {
			return strings.TrimSpace(i.scanner.Text()), nil
		}
		if err := i.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}

	line, err := i.rl.Readline()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Close closes the readline instance
func (i *Input) Close() error {
	if i.rl != nil {
		return i.rl.Close()
	}
	return nil
}

// IsPiped returns true if input is from a pipe
func (i *Input) IsPiped() bool {
	return i.isPiped
}

// IsInterrupt checks if the error is an interrupt (Ctrl+C)
func IsInterrupt(err error) bool {
	return errors.Is(err, readline.ErrInterrupt)
}

// IsEOF checks if the error is EOF (Ctrl+D)
func IsEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

// Ask prompts once on in and out and returns the trimmed answer, or def
// when the answer is empty.
func Ask(in io.Reader, out io.Writer, prompt, def string) (string, error) {
	rl, err := prompter(in, out, prompt)
	if err != nil {
		return "", err
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err != nil {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}

// AskSecret prompts without echoing the answer.
func AskSecret(in io.Reader, out io.Writer, prompt string) (string, error) {
	rl, err := prompter(in, out, prompt)
	if err != nil {
		return "", err
	}
	defer rl.Close()

	b, err := rl.ReadPassword(prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func prompter(in io.Reader, out io.Writer, prompt string) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt: prompt,
		Stdin:  io.NopCloser(in),
		Stdout: out,
		Stderr: out,
	})
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".step-bridge_history")
}

func completer() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(commandOrder))
	for _, name := range commandOrder {
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}
