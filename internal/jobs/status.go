package jobs

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Outcome is how a job finished: a normal exit with a code, or termination
// by a signal.
type Outcome struct {
	Signaled bool
	Code     int // exit code, or signal number when Signaled
}

func Exited(code int) Outcome { return Outcome{Code: code} }

func Signaled(signum int) Outcome { return Outcome{Signaled: true, Code: signum} }

// Classify translates a raw wait status into an Outcome.
func Classify(ws unix.WaitStatus) Outcome {
	if ws.Signaled() {
		return Signaled(int(ws.Signal()))
	}
	return Exited(ws.ExitStatus())
}

// String renders the outcome the way the status built-in reports it.
func (o Outcome) String() string {
	if o.Signaled {
		return fmt.Sprintf("terminated by signal %d", o.Code)
	}
	return fmt.Sprintf("exit value %d", o.Code)
}

// Label is a short metrics/ledger form: "exited" or "signaled".
func (o Outcome) Label() string {
	if o.Signaled {
		return "signaled"
	}
	return "exited"
}
