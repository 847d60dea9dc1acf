package shell

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/tinybase/tinybase/internal/backend"
)

const (
	prompt         = "tinysql> "
	continuePrompt = "      -> "
)

// Shell reads semicolon-terminated statements from input and executes them
// against the backend. In interactive mode it prints prompts; in script mode
// it reads silently.
type Shell struct {
	backend     *backend.Backend
	input       io.Reader
	out         io.Writer
	errOut      io.Writer
	interactive bool
}

// New builds a shell over the given streams.
func New(b *backend.Backend, input io.Reader, out, errOut io.Writer, interactive bool) *Shell {
	return &Shell{
		backend:     b,
		input:       input,
		out:         out,
		errOut:      errOut,
		interactive: interactive,
	}
}

// Run drives the read-execute loop until EXIT or end of input.
func (s *Shell) Run() error {
	scanner := bufio.NewScanner(s.input)

	if s.interactive {
		fmt.Fprint(s.out, prompt)
	}

	var pending string
	for scanner.Scan() {
		line := scanner.Text()
		if pending != "" {
			pending += " "
		}
		pending += line

		for {
			index := strings.IndexByte(pending, ';')
			if index < 0 {
				break
			}

			command := strings.TrimSpace(pending[:index])
			pending = pending[index+1:]
			if command == "" {
				continue
			}

			if s.execute(command) {
				fmt.Fprintln(s.out, "Bye!")
				return nil
			}
		}

		if s.interactive {
			if strings.TrimSpace(pending) == "" {
				pending = ""
				fmt.Fprint(s.out, prompt)
			} else {
				fmt.Fprint(s.out, continuePrompt)
			}
		}
	}

	return scanner.Err()
}

// execute runs one statement, printing rows or the error. It reports whether
// the session should end.
func (s *Shell) execute(command string) bool {
	result, err := s.backend.Exec(command)
	if err != nil {
		fmt.Fprintf(s.errOut, "Error: %s\n", err)
		return false
	}

	if result.Exit {
		return true
	}

	for _, row := range result.Rows {
		fmt.Fprintln(s.out, strings.Join(row.Strings(), "|"))
	}

	return false
}
