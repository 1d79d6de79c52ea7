// Package setup implements the interactive configuration wizard: first-run
// setup plus management of existing destinations.
package setup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// readPassword reads a password from a terminal without echo. Replaced in
// tests, where no terminal is attached.
var readPassword = term.ReadPassword

// Prompter wraps interactive line input. The reader/writer indirection lets
// tests drive it with scripted input.
type Prompter struct {
	reader  io.Reader
	writer  io.Writer
	scanner *bufio.Scanner
}

// NewPrompter creates a Prompter reading from r and writing prompts to w.
func NewPrompter(r io.Reader, w io.Writer) *Prompter {
	return &Prompter{
		reader:  r,
		writer:  w,
		scanner: bufio.NewScanner(r),
	}
}

// NewDefaultPrompter creates a Prompter on stdin/stdout.
func NewDefaultPrompter() *Prompter {
	return NewPrompter(os.Stdin, os.Stdout)
}

// Prompt prints a message and reads one trimmed line.
func (p *Prompter) Prompt(message string) (string, error) {
	fmt.Fprint(p.writer, message)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

// PromptWithDefault reads a line, substituting defaultValue on empty input.
func (p *Prompter) PromptWithDefault(message, defaultValue string) (string, error) {
	result, err := p.Prompt(fmt.Sprintf("%s [%s]: ", message, defaultValue))
	if err != nil {
		return "", err
	}
	if result == "" {
		return defaultValue, nil
	}
	return result, nil
}

// PromptRequired re-asks until the input is non-empty.
func (p *Prompter) PromptRequired(message string) (string, error) {
	for {
		result, err := p.Prompt(message + ": ")
		if err != nil {
			return "", err
		}
		if result != "" {
			return result, nil
		}
		fmt.Fprintln(p.writer, "A value is required.")
	}
}

// PromptInt reads an integer, substituting defaultValue on empty input.
func (p *Prompter) PromptInt(message string, defaultValue int) (int, error) {
	for {
		result, err := p.Prompt(fmt.Sprintf("%s [%d]: ", message, defaultValue))
		if err != nil {
			return 0, err
		}
		if result == "" {
			return defaultValue, nil
		}
		n, err := strconv.Atoi(result)
		if err != nil {
			fmt.Fprintf(p.writer, "Not a number: %s\n", result)
			continue
		}
		return n, nil
	}
}

// PromptPassword reads a password. On a terminal input is not echoed; in
// tests it falls back to plain line input.
func (p *Prompter) PromptPassword(message string) (string, error) {
	fmt.Fprint(p.writer, message+": ")

	if f, ok := p.reader.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := readPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		fmt.Fprintln(p.writer)
		return string(password), nil
	}

	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

// Confirm asks a yes/no question. Empty input selects the default.
func (p *Prompter) Confirm(message string, defaultYes bool) (bool, error) {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}
	result, err := p.Prompt(fmt.Sprintf("%s %s: ", message, hint))
	if err != nil {
		return false, err
	}
	result = strings.ToLower(result)
	if result == "" {
		return defaultYes, nil
	}
	return result == "y" || result == "yes", nil
}

// Select prints a numbered option list and returns the chosen index.
// Empty input selects the first option.
func (p *Prompter) Select(message string, options []string) (int, error) {
	fmt.Fprintln(p.writer, message)
	for i, opt := range options {
		fmt.Fprintf(p.writer, "  %d) %s\n", i+1, opt)
	}

	for {
		result, err := p.Prompt("Choice [1]: ")
		if err != nil {
			return 0, err
		}
		if result == "" {
			return 0, nil
		}

		choice, err := strconv.Atoi(result)
		if err != nil || choice < 1 || choice > len(options) {
			fmt.Fprintf(p.writer, "Invalid choice: %s\n", result)
			continue
		}
		return choice - 1, nil
	}
}
