package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"

	"github.com/chzyer/readline"
	"golang.org/x/sys/unix"

	"smallsh/internal/config"
	"smallsh/internal/jobs"
	"smallsh/internal/parser"
)

// LineReader supplies input lines. *readline.Instance satisfies it.
// Readline returns readline.ErrInterrupt when the line was abandoned.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

type Shell struct {
	config     *config.Config
	session    *jobs.Session
	supervisor *jobs.Supervisor
	mediator   *Mediator
	reader     LineReader
	out        io.Writer
	errOut     io.Writer
	logger     *slog.Logger
	pid        int
	noticeFD   int
}

type Option func(*Shell)

// WithReader replaces the terminal line editor, e.g. for scripted input.
func WithReader(r LineReader) Option { return func(s *Shell) { s.reader = r } }

// WithOutput sets where built-ins and error messages are written, and the
// descriptor the mediator writes its notices to.
func WithOutput(out, errOut io.Writer, noticeFD int) Option {
	return func(s *Shell) {
		s.out = out
		s.errOut = errOut
		s.noticeFD = noticeFD
	}
}

func WithLogger(l *slog.Logger) Option { return func(s *Shell) { s.logger = l } }

func New(cfg *config.Config, sup *jobs.Supervisor, opts ...Option) (*Shell, error) {
	s := &Shell{
		config:     cfg,
		session:    sup.Session(),
		supervisor: sup,
		out:        os.Stdout,
		errOut:     os.Stderr,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		pid:        os.Getpid(),
		noticeFD:   unix.Stdout,
	}
	for _, o := range opts {
		o(s)
	}
	s.mediator = NewMediator(s.session, s.noticeFD, s.logger)
	sup.SetCheckpoint(s.mediator.Settle)

	if s.reader == nil {
		rl, err := NewReadline(cfg.Prompt, s.mediator)
		if err != nil {
			return nil, fmt.Errorf("error initializing readline: %w", err)
		}
		s.reader = rl
	}
	return s, nil
}

// NewReadline builds the terminal line editor. The terminal is in raw mode
// while a line is edited, so the interrupt and stop keys arrive as runes;
// they are handed to the mediator and abandon the line being typed.
func NewReadline(prompt string, m *Mediator) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:                 prompt,
		HistoryLimit:           -1,
		DisableAutoSaveHistory: true,
		FuncFilterInputRune: func(r rune) (rune, bool) {
			switch r {
			case readline.CharInterrupt:
				m.Deliver(syscall.SIGINT)
				return readline.CharInterrupt, true
			case readline.CharCtrlZ:
				m.Deliver(syscall.SIGTSTP)
				return readline.CharInterrupt, true
			}
			return r, true
		},
	})
}

// Run reads and executes lines until exit or end of input and returns the
// process exit code.
func (s *Shell) Run(ctx context.Context) int {
	s.mediator.Start()
	defer s.mediator.Stop()
	defer s.reader.Close()

	for {
		// Flags raised by signals during the previous command are stale.
		s.mediator.Settle()
		s.session.TakeInterrupted()

		line, err := s.reader.Readline()
		s.mediator.Settle()
		if s.session.TakeInterrupted() {
			// A signal landed while this line was being read.
			s.logger.Debug("discarding interrupted line", "line", line)
			continue
		}
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				fmt.Fprintf(s.errOut, "smallsh: %v\n", err)
			}
			s.exit()
			return 0
		}

		err = s.Execute(ctx, line)
		switch {
		case err == nil:
		case errors.Is(err, errExit):
			return 0
		case errors.Is(err, errFatal):
			fmt.Fprintf(s.errOut, "smallsh: %v\n", err)
			s.exit()
			return 1
		default:
			fmt.Fprintf(s.errOut, "smallsh: %v\n", err)
		}
	}
}

// errFatal marks errors that end the shell.
var errFatal = errors.New("fatal")

// Execute parses and runs one line.
func (s *Shell) Execute(ctx context.Context, line string) error {
	cmd, ok, err := parser.Parse(line, s.pid)
	if err != nil || !ok {
		return err
	}

	if handled, err := s.executeBuiltin(cmd); handled {
		return err
	}

	_, err = s.supervisor.Dispatch(ctx, cmd)
	var launchErr *jobs.LaunchError
	if errors.As(err, &launchErr) && s.config.FatalLaunchErrors() {
		return fmt.Errorf("%w: %w", errFatal, err)
	}
	return err
}
