package jobs

import (
	"os"
	"sync/atomic"
)

// Session is the process-wide job state of one shell.
//
// Fields are split by writer. The signal mediator is the only writer of
// foregroundOnly and interrupted; the control loop is the only writer of
// everything else. Fields read across that boundary are atomic.
type Session struct {
	foregroundOnly atomic.Bool
	interrupted    atomic.Bool

	// Read by the mediator to forward interrupts, written by the supervisor.
	foreground atomic.Pointer[os.Process]

	background *Job
	lastStatus Outcome
}

func NewSession() *Session {
	return &Session{lastStatus: Exited(0)}
}

// ForegroundOnly reports whether '&' is currently ignored.
func (s *Session) ForegroundOnly() bool { return s.foregroundOnly.Load() }

// ToggleForegroundOnly flips foreground-only mode and returns the new mode.
func (s *Session) ToggleForegroundOnly() bool {
	for {
		old := s.foregroundOnly.Load()
		if s.foregroundOnly.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// MarkInterrupted records that a signal landed during the current prompt cycle.
func (s *Session) MarkInterrupted() { s.interrupted.Store(true) }

// TakeInterrupted reports and clears the interrupted flag.
func (s *Session) TakeInterrupted() bool { return s.interrupted.Swap(false) }

// ForegroundPID returns the pid of the running foreground child, or 0.
func (s *Session) ForegroundPID() int {
	if p := s.foreground.Load(); p != nil {
		return p.Pid
	}
	return 0
}

// SignalForeground delivers sig to the foreground child, if there is one.
// It reports whether a child was targeted.
func (s *Session) SignalForeground(sig os.Signal) bool {
	p := s.foreground.Load()
	if p == nil {
		return false
	}
	_ = p.Signal(sig)
	return true
}

// BackgroundPID returns the tracked background pid, or 0.
func (s *Session) BackgroundPID() int {
	if s.background == nil {
		return 0
	}
	return s.background.PID
}

// LastStatus is the outcome of the most recent foreground command.
func (s *Session) LastStatus() Outcome { return s.lastStatus }

func (s *Session) setForeground(p *os.Process) { s.foreground.Store(p) }

func (s *Session) clearForeground() { s.foreground.Store(nil) }
