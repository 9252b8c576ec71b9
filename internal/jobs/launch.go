package jobs

import (
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Streams are the shell's own standard streams, inherited by children that
// are not redirected. They must be real files so the child gets the
// descriptors themselves rather than a copying pipe.
type Streams struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

func StdStreams() Streams {
	return Streams{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Launcher starts child processes without waiting for them.
type Launcher struct {
	streams Streams
}

func NewLauncher(streams Streams) *Launcher {
	return &Launcher{streams: streams}
}

// Launch starts c with in/out bound to descriptors 0/1 when non-nil.
//
// Signals the shell catches with signal.Notify are reset to their default
// disposition in the child by the runtime, so an interrupt terminates the
// child even though the shell itself survives it. Background children are
// put in their own process group so the terminal interrupt never reaches them.
func (l *Launcher) Launch(c Command, in, out *os.File, background bool) (*os.Process, error) {
	if len(c.Args) == 0 {
		return nil, &ExecError{Name: "", Err: exec.ErrNotFound}
	}
	cmd := exec.Command(c.Args[0], c.Args[1:]...)
	if cmd.Err != nil {
		return nil, &ExecError{Name: c.Args[0], Err: cmd.Err}
	}

	cmd.Stdin = l.streams.Stdin
	if in != nil {
		cmd.Stdin = in
	}
	cmd.Stdout = l.streams.Stdout
	if out != nil {
		cmd.Stdout = out
	}
	cmd.Stderr = l.streams.Stderr
	if background {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	if err := cmd.Start(); err != nil {
		return nil, startError(c.Args[0], err)
	}
	return cmd.Process, nil
}

// startError separates programs that cannot be run from a failure to create
// any process at all.
func startError(name string, err error) error {
	var execErr *exec.Error
	switch {
	case errors.As(err, &execErr),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission),
		errors.Is(err, unix.ENOEXEC),
		errors.Is(err, unix.ENOTDIR),
		errors.Is(err, unix.EISDIR):
		return &ExecError{Name: name, Err: err}
	default:
		return &LaunchError{Name: name, Err: err}
	}
}
