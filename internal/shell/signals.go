package shell

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"smallsh/internal/jobs"
	"smallsh/internal/metrics"
)

var (
	enterForegroundOnly = []byte("\nEntering foreground-only mode (& is now ignored)\n")
	exitForegroundOnly  = []byte("\nExiting foreground-only mode\n")
	newline             = []byte("\n")
)

// Mediator turns the interactive interrupt and stop signals into session
// state. It only flips atomic flags, forwards the interrupt to the
// foreground child and writes fixed notices straight to a descriptor,
// bypassing any buffered writer the control loop may be using.
type Mediator struct {
	session *jobs.Session
	fd      int
	logger  *slog.Logger
	sigs    chan os.Signal
	settle  chan chan struct{}
	done    chan struct{}
}

func NewMediator(session *jobs.Session, fd int, logger *slog.Logger) *Mediator {
	return &Mediator{
		session: session,
		fd:      fd,
		logger:  logger,
		sigs:    make(chan os.Signal, 4),
		settle:  make(chan chan struct{}),
	}
}

// Start catches SIGINT and SIGTSTP. They must be caught, not ignored, so
// children start with the default actions.
func (m *Mediator) Start() {
	m.done = make(chan struct{})
	signal.Notify(m.sigs, syscall.SIGINT, syscall.SIGTSTP)
	go m.handleSignals(m.done)
}

func (m *Mediator) Stop() {
	signal.Stop(m.sigs)
	close(m.done)
	m.done = nil
}

func (m *Mediator) handleSignals(done <-chan struct{}) {
	for {
		select {
		case sig := <-m.sigs:
			m.Deliver(sig)
		case reply := <-m.settle:
			m.drain()
			close(reply)
		case <-done:
			return
		}
	}
}

// Settle applies every signal already received before returning. Deliveries
// in flight on the handler goroutine complete first. Call it from the control
// loop only.
func (m *Mediator) Settle() {
	if m.done == nil {
		m.drain()
		return
	}
	reply := make(chan struct{})
	select {
	case m.settle <- reply:
		<-reply
	case <-m.done:
	}
}

func (m *Mediator) drain() {
	for {
		select {
		case sig := <-m.sigs:
			m.Deliver(sig)
		default:
			return
		}
	}
}

// Deliver applies sig as if it had just arrived. Safe for concurrent use.
func (m *Mediator) Deliver(sig os.Signal) {
	switch sig {
	case syscall.SIGINT:
		metrics.IncSignal("SIGINT")
		if m.session.SignalForeground(syscall.SIGINT) {
			m.logger.Debug("interrupt forwarded", "pid", m.session.ForegroundPID())
		}
		m.write(newline)
	case syscall.SIGTSTP:
		metrics.IncSignal("SIGTSTP")
		on := m.session.ToggleForegroundOnly()
		metrics.SetForegroundOnly(on)
		if on {
			m.write(enterForegroundOnly)
		} else {
			m.write(exitForegroundOnly)
		}
	default:
		return
	}
	m.session.MarkInterrupted()
}

func (m *Mediator) write(b []byte) {
	for len(b) > 0 {
		n, err := unix.Write(m.fd, b)
		if err == unix.EINTR {
			continue
		}
		if err != nil || n <= 0 {
			return
		}
		b = b[n:]
	}
}
