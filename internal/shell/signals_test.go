package shell

import (
	"io"
	"log/slog"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smallsh/internal/jobs"
)

func noticePipe(t *testing.T) (*os.File, int) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = r.Close()
		_ = w.Close()
	})
	return r, int(w.Fd())
}

func readNotice(t *testing.T, r *os.File) string {
	t.Helper()
	buf := make([]byte, 256)
	n, err := r.Read(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestMediator_StopTogglesForegroundOnly(t *testing.T) {
	session := jobs.NewSession()
	r, fd := noticePipe(t)
	m := NewMediator(session, fd, discardLogger())

	m.Deliver(syscall.SIGTSTP)
	assert.True(t, session.ForegroundOnly())
	assert.True(t, session.TakeInterrupted())
	assert.False(t, session.TakeInterrupted(), "flag is cleared once taken")
	assert.Equal(t, "\nEntering foreground-only mode (& is now ignored)\n", readNotice(t, r))

	m.Deliver(syscall.SIGTSTP)
	assert.False(t, session.ForegroundOnly())
	assert.True(t, session.TakeInterrupted())
	assert.Equal(t, "\nExiting foreground-only mode\n", readNotice(t, r))
}

func TestMediator_InterruptWithoutForeground(t *testing.T) {
	session := jobs.NewSession()
	r, fd := noticePipe(t)
	m := NewMediator(session, fd, discardLogger())

	m.Deliver(syscall.SIGINT)
	assert.Equal(t, "\n", readNotice(t, r))
	assert.True(t, session.TakeInterrupted())
	assert.False(t, session.ForegroundOnly())
}

func TestMediator_IgnoresOtherSignals(t *testing.T) {
	session := jobs.NewSession()
	_, fd := noticePipe(t)
	m := NewMediator(session, fd, discardLogger())

	m.Deliver(syscall.SIGHUP)
	assert.False(t, session.TakeInterrupted())
}

func TestMediator_CatchesRealSignal(t *testing.T) {
	session := jobs.NewSession()
	r, fd := noticePipe(t)
	m := NewMediator(session, fd, discardLogger())
	m.Start()
	defer m.Stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTSTP))
	require.Eventually(t, session.ForegroundOnly, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "\nEntering foreground-only mode (& is now ignored)\n", readNotice(t, r))
}

func TestMediator_SettleAppliesQueuedSignals(t *testing.T) {
	session := jobs.NewSession()
	r, fd := noticePipe(t)
	m := NewMediator(session, fd, discardLogger())

	m.sigs <- syscall.SIGTSTP
	m.Settle()
	assert.True(t, session.ForegroundOnly())
	assert.Equal(t, "\nEntering foreground-only mode (& is now ignored)\n", readNotice(t, r))

	m.Start()
	defer m.Stop()
	m.sigs <- syscall.SIGTSTP
	m.Settle()
	assert.False(t, session.ForegroundOnly())
	assert.Equal(t, "\nExiting foreground-only mode\n", readNotice(t, r))
}
