package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"smallsh/internal/history"
	"smallsh/internal/metrics"
)

// Supervisor launches commands, blocks on foreground children and reaps
// finished background children. All methods must be called from the
// control loop.
type Supervisor struct {
	session  *Session
	launcher *Launcher
	out      io.Writer
	errOut   io.Writer
	logger   *slog.Logger
	sink     history.Sink
	settle   func()
}

type Option func(*Supervisor)

func WithLogger(l *slog.Logger) Option { return func(s *Supervisor) { s.logger = l } }

func WithSink(sink history.Sink) Option { return func(s *Supervisor) { s.sink = sink } }

// WithOutput sets where job announcements and exec failures are written.
func WithOutput(out, errOut io.Writer) Option {
	return func(s *Supervisor) {
		s.out = out
		s.errOut = errOut
	}
}

func NewSupervisor(session *Session, launcher *Launcher, opts ...Option) *Supervisor {
	s := &Supervisor{
		session:  session,
		launcher: launcher,
		out:      os.Stdout,
		errOut:   os.Stderr,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		sink:     history.Nop{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Supervisor) Session() *Session { return s.session }

// SetCheckpoint installs fn to apply pending signal effects on the control
// loop. It runs before the mode is sampled and again once a foreground child
// has been reaped, before its completion is reported.
func (s *Supervisor) SetCheckpoint(fn func()) { s.settle = fn }

func (s *Supervisor) checkpoint() {
	if s.settle != nil {
		s.settle()
	}
}

// Dispatch runs one command and then sweeps finished background jobs.
//
// For a foreground command the returned Outcome is its completion, which
// also becomes the session's last status. A background launch returns
// Exited(0) once the child is started. A *RedirectOpenError means nothing
// was started and the last status is untouched. A *LaunchError means no
// process could be created; the last status degrades to Exited(1).
//
// A program that cannot be executed is reported on the error stream and
// returns Exited(1) with a nil error. No process ever exists for it, so a
// background exec failure prints no "background pid is" line and is never
// announced as done; only a foreground one updates the last status.
func (s *Supervisor) Dispatch(ctx context.Context, c Command) (Outcome, error) {
	defer s.Sweep(ctx)

	in, out, err := Resolve(c.Input, c.Output)
	if err != nil {
		metrics.IncLaunchFailure("redirect")
		s.logger.Warn("redirect failed", "command", c.String(), "error", err)
		return Outcome{}, err
	}
	defer closeFiles(in, out)

	s.checkpoint()
	// Sampled once; a mode change after this point affects the next command.
	background := c.Background && !s.session.ForegroundOnly()
	kind := Foreground
	if background {
		kind = Background
	}

	proc, err := s.launcher.Launch(c, in, out, background)
	if err != nil {
		return s.launchFailed(c, kind, err)
	}
	job := newJob(proc.Pid, kind, c)
	metrics.IncLaunch(kind.String())
	s.record(ctx, job, history.EventStart)
	s.logger.Debug("launched", "pid", job.PID, "kind", kind.String(), "command", c.String())

	if background {
		// The raw pid is all that is needed from here on; wait-any reaps it.
		_ = proc.Release()
		if prev := s.session.background; prev != nil {
			s.logger.Debug("background tracking superseded", "pid", prev.PID)
		}
		s.session.background = job
		fmt.Fprintf(s.out, "background pid is %d\n", job.PID)
		return Exited(0), nil
	}

	started := time.Now()
	outcome, err := s.waitForeground(proc)
	metrics.ObserveForeground(time.Since(started))
	s.checkpoint()
	if err != nil {
		return Outcome{}, err
	}
	job.finish(outcome)
	s.session.lastStatus = outcome
	if outcome.Signaled {
		fmt.Fprintf(s.out, "terminated by signal %d\n", outcome.Code)
	}
	s.completed(ctx, job)
	return outcome, nil
}

// waitForeground blocks until pid terminates. A child stopped by the
// terminal stop key is resumed, since that key only toggles the mode.
func (s *Supervisor) waitForeground(p *os.Process) (Outcome, error) {
	pid := p.Pid
	s.session.setForeground(p)
	defer func() {
		s.session.clearForeground()
		_ = p.Release()
	}()

	for {
		var ws unix.WaitStatus
		_, err := unix.Wait4(pid, &ws, unix.WUNTRACED, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return Outcome{}, fmt.Errorf("wait for pid %d: %w", pid, err)
		}
		if ws.Stopped() {
			s.logger.Debug("foreground child stopped, resuming", "pid", pid, "signal", ws.StopSignal().String())
			_ = unix.Kill(pid, unix.SIGCONT)
			continue
		}
		return Classify(ws), nil
	}
}

func (s *Supervisor) launchFailed(c Command, kind Kind, err error) (Outcome, error) {
	var execErr *ExecError
	if errors.As(err, &execErr) {
		// Reported like a child that failed to exec and exited 1.
		metrics.IncLaunchFailure("exec")
		s.logger.Warn("exec failed", "command", c.String(), "error", err)
		fmt.Fprintf(s.errOut, "%v\n", err)
		outcome := Exited(1)
		if kind == Foreground {
			s.session.lastStatus = outcome
		}
		return outcome, nil
	}

	metrics.IncLaunchFailure("launch")
	s.logger.Error("process creation failed", "command", c.String(), "error", err)
	s.session.lastStatus = Exited(1)
	return Exited(1), err
}

// Sweep reaps every background child that has already finished, announcing
// each one. It never blocks and returns the number of jobs reaped.
func (s *Supervisor) Sweep(ctx context.Context) int {
	n := 0
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil || pid <= 0 {
			return n
		}
		n++
		outcome := Classify(ws)
		fmt.Fprintf(s.out, "background pid %d is done: %s\n", pid, outcome)

		job := s.session.background
		if job != nil && job.PID == pid {
			s.session.background = nil
		} else {
			// Tracking was superseded by a later background launch.
			job = newJob(pid, Background, Command{})
		}
		job.finish(outcome)
		s.completed(ctx, job)
	}
}

// KillBackground sends SIGKILL to the tracked background child without
// waiting for it. It returns the pid signalled, or 0.
func (s *Supervisor) KillBackground() int {
	pid := s.session.BackgroundPID()
	if pid <= 0 {
		return 0
	}
	if err := unix.Kill(pid, unix.SIGKILL); err != nil {
		s.logger.Debug("kill background", "pid", pid, "error", err)
	}
	s.session.background = nil
	return pid
}

func (s *Supervisor) completed(ctx context.Context, job *Job) {
	metrics.IncCompletion(job.Kind.String(), job.Outcome.Label())
	s.logger.Debug("reaped", "pid", job.PID, "kind", job.Kind.String(), "outcome", job.Outcome.String())
	s.record(ctx, job, history.EventFinish)
}

func (s *Supervisor) record(ctx context.Context, job *Job, t history.EventType) {
	e := history.Event{
		Type:       t,
		OccurredAt: time.Now(),
		PID:        job.PID,
		Kind:       job.Kind.String(),
		Command:    job.Command.String(),
	}
	if t == history.EventFinish {
		e.Outcome = job.Outcome.Label()
		e.Code = job.Outcome.Code
	}
	if err := s.sink.Send(ctx, e); err != nil {
		s.logger.Warn("job history write failed", "pid", job.PID, "error", err)
	}
}
