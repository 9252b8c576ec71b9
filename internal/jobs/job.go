package jobs

import (
	"strings"
	"time"
)

// Command is one parsed command line: program and arguments, optional
// redirection targets and the background request. Values are never mutated
// after parsing.
type Command struct {
	Args       []string
	Input      string
	Output     string
	Background bool
}

func (c Command) Name() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[0]
}

func (c Command) String() string { return strings.Join(c.Args, " ") }

type Kind int

const (
	Foreground Kind = iota
	Background
)

func (k Kind) String() string {
	if k == Background {
		return "background"
	}
	return "foreground"
}

// Job tracks one launched process from start to reap.
type Job struct {
	PID       int
	Kind      Kind
	Command   Command
	StartedAt time.Time
	Running   bool
	Outcome   Outcome
}

func newJob(pid int, kind Kind, c Command) *Job {
	return &Job{
		PID:       pid,
		Kind:      kind,
		Command:   c,
		StartedAt: time.Now(),
		Running:   true,
	}
}

func (j *Job) finish(o Outcome) {
	j.Running = false
	j.Outcome = o
}
