package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"smallsh/internal/jobs"
)

// PIDToken is replaced by the shell's pid in every word.
const PIDToken = "$$"

var ErrMissingCommand = errors.New("missing command")

// IsIgnorable reports whether the line is blank or a comment.
func IsIgnorable(line string) bool {
	line = strings.TrimSpace(line)
	return line == "" || strings.HasPrefix(line, "#")
}

// Expand substitutes pid for every occurrence of $$ in word.
func Expand(word string, pid int) string {
	return strings.ReplaceAll(word, PIDToken, strconv.Itoa(pid))
}

// Parse splits line into a command. Redirection operators and a trailing &
// are removed from the argument list; all remaining words and both
// redirection paths are pid-expanded. ok is false for blank and comment lines.
func Parse(line string, pid int) (cmd jobs.Command, ok bool, err error) {
	if IsIgnorable(line) {
		return jobs.Command{}, false, nil
	}
	words, err := shellquote.Split(line)
	if err != nil {
		return jobs.Command{}, false, fmt.Errorf("error parsing command: %w", err)
	}

	if n := len(words); n > 0 && words[n-1] == "&" {
		cmd.Background = true
		words = words[:n-1]
	}

	for i := 0; i < len(words); i++ {
		switch words[i] {
		case "<", ">":
			if i+1 >= len(words) {
				return jobs.Command{}, false, fmt.Errorf("syntax error: %q needs a file name", words[i])
			}
			target := Expand(words[i+1], pid)
			if words[i] == "<" {
				cmd.Input = target
			} else {
				cmd.Output = target
			}
			i++
		default:
			cmd.Args = append(cmd.Args, Expand(words[i], pid))
		}
	}

	if len(cmd.Args) == 0 {
		return jobs.Command{}, false, ErrMissingCommand
	}
	return cmd, true, nil
}
