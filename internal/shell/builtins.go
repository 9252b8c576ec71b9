package shell

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"smallsh/internal/jobs"
)

// errExit asks the read loop to terminate the shell.
var errExit = errors.New("exit")

func (s *Shell) executeBuiltin(cmd jobs.Command) (bool, error) {
	switch cmd.Name() {
	case "exit":
		s.exit()
		return true, errExit
	case "cd":
		return true, s.changeDirectory(cmd.Args[1:])
	case "status":
		fmt.Fprintln(s.out, s.session.LastStatus())
		return true, nil
	case "echo":
		// echo with redirection or & runs as a program so those still apply.
		if cmd.Input != "" || cmd.Output != "" || cmd.Background {
			return false, nil
		}
		fmt.Fprintln(s.out, strings.Join(cmd.Args[1:], " "))
		return true, nil
	default:
		return false, nil
	}
}

func (s *Shell) changeDirectory(args []string) error {
	var dir string
	if len(args) == 0 {
		dir = s.config.HomeDir
	} else {
		dir = args[0]
	}

	if err := os.Chdir(dir); err != nil {
		return fmt.Errorf("cd: %w", err)
	}
	return nil
}

// exit kills the tracked background job. Nothing waits for it.
func (s *Shell) exit() {
	if pid := s.supervisor.KillBackground(); pid > 0 {
		s.logger.Debug("killed background job on exit", "pid", pid)
	}
}
