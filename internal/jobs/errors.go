package jobs

import "fmt"

// RedirectOpenError reports a redirection target that could not be opened.
// The command is skipped and the last status is left alone.
type RedirectOpenError struct {
	Path string
	Mode string // "input" or "output"
	Err  error
}

func (e *RedirectOpenError) Error() string {
	return fmt.Sprintf("cannot open %s for %s: %v", e.Path, e.Mode, e.Err)
}

func (e *RedirectOpenError) Unwrap() error { return e.Err }

// LaunchError reports that no process could be created at all, e.g. when the
// system is out of processes or memory.
type LaunchError struct {
	Name string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("%s: cannot create process: %v", e.Name, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ExecError reports a program that was not found or could not be executed.
// The supervisor turns it into an ordinary failed completion.
type ExecError struct {
	Name string
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }
