package shell

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"smallsh/internal/config"
	"smallsh/internal/jobs"
)

// scriptReader feeds fixed lines and then reports end of input. before runs
// ahead of returning line i, standing in for a signal arriving mid-read.
type scriptReader struct {
	lines  []string
	next   int
	before func(i int)
}

func (r *scriptReader) Readline() (string, error) {
	if r.next >= len(r.lines) {
		return "", io.EOF
	}
	i := r.next
	r.next++
	if r.before != nil {
		r.before(i)
	}
	return r.lines[i], nil
}

func (r *scriptReader) Close() error { return nil }

type testShell struct {
	*Shell
	out     *bytes.Buffer
	errOut  *bytes.Buffer
	notices *os.File
	reader  *scriptReader
	dir     string
}

func newTestShell(t *testing.T, lines ...string) *testShell {
	t.Helper()
	dir := t.TempDir()

	stdin, err := os.Open(os.DevNull)
	require.NoError(t, err)
	stdout, err := os.Create(filepath.Join(dir, "child.stdout"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = stdin.Close()
		_ = stdout.Close()
	})

	cfg := config.Default()
	cfg.HomeDir = dir

	ts := &testShell{out: &bytes.Buffer{}, errOut: &bytes.Buffer{}, dir: dir}
	sup := jobs.NewSupervisor(jobs.NewSession(),
		jobs.NewLauncher(jobs.Streams{Stdin: stdin, Stdout: stdout, Stderr: stdout}),
		jobs.WithOutput(ts.out, ts.errOut),
	)

	r, fd := noticePipe(t)
	ts.notices = r
	ts.reader = &scriptReader{lines: lines}
	sh, err := New(cfg, sup, WithReader(ts.reader), WithOutput(ts.out, ts.errOut, fd))
	require.NoError(t, err)
	ts.Shell = sh
	return ts
}

func keepWorkingDir(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestRun_StatusAndEcho(t *testing.T) {
	ts := newTestShell(t,
		"status",
		"echo hello   world",
		"# a comment",
		"",
		"/bin/sh -c 'exit 3'",
		"status",
		"status",
		"exit",
		"echo never reached",
	)

	code := ts.Run(context.Background())
	assert.Equal(t, 0, code)
	assert.Equal(t, "exit value 0\nhello world\nexit value 3\nexit value 3\n", ts.out.String())
	assert.Empty(t, ts.errOut.String())
}

func TestRun_SignaledStatus(t *testing.T) {
	// The child must signal itself; a literal $$ would expand to the shell.
	ts := newTestShell(t, `/bin/sh -c 'exec /bin/sh -c "kill -KILL \$\$"'`, "status")

	ts.Run(context.Background())
	assert.Equal(t, "terminated by signal 9\nterminated by signal 9\n", ts.out.String())
}

func TestRun_RedirectErrorReported(t *testing.T) {
	ts := newTestShell(t, "/bin/sh -c 'exit 2'", "cat < /definitely/missing/file", "status")

	ts.Run(context.Background())
	assert.Contains(t, ts.errOut.String(), "cannot open /definitely/missing/file for input")
	assert.Equal(t, "exit value 2\n", ts.out.String())
}

func TestRun_ParseErrorReported(t *testing.T) {
	ts := newTestShell(t, "cat <")

	assert.Equal(t, 0, ts.Run(context.Background()))
	assert.Contains(t, ts.errOut.String(), "smallsh: syntax error")
}

func TestRun_EchoWithRedirectionRunsProgram(t *testing.T) {
	ts := newTestShell(t)
	out := filepath.Join(ts.dir, "out.txt")
	ts.reader.lines = []string{"echo hi > " + out}

	ts.Run(context.Background())
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(b))
	assert.Empty(t, ts.out.String())
}

func TestRun_PIDExpansion(t *testing.T) {
	ts := newTestShell(t, "echo pid$$")

	ts.Run(context.Background())
	assert.Equal(t, fmt.Sprintf("pid%d\n", os.Getpid()), ts.out.String())
}

func TestRun_ChangeDirectory(t *testing.T) {
	keepWorkingDir(t)
	ts := newTestShell(t)
	sub := filepath.Join(ts.dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	ts.reader.lines = []string{"cd " + sub}

	ts.Run(context.Background())
	wd, err := os.Getwd()
	require.NoError(t, err)
	want, _ := filepath.EvalSymlinks(sub)
	got, _ := filepath.EvalSymlinks(wd)
	assert.Equal(t, want, got)

	ts.reader.lines, ts.reader.next = []string{"cd", "cd /definitely/missing"}, 0
	ts.Run(context.Background())
	wd, err = os.Getwd()
	require.NoError(t, err)
	want, _ = filepath.EvalSymlinks(ts.dir)
	got, _ = filepath.EvalSymlinks(wd)
	assert.Equal(t, want, got)
	assert.Contains(t, ts.errOut.String(), "smallsh: cd:")
}

func TestRun_InterruptedLineIsDiscarded(t *testing.T) {
	ts := newTestShell(t, "status", "status")
	ts.reader.before = func(i int) {
		if i == 0 {
			ts.mediator.Deliver(syscall.SIGTSTP)
		}
	}

	ts.Run(context.Background())
	assert.Equal(t, "exit value 0\n", ts.out.String(), "only the second status runs")
	assert.True(t, ts.session.ForegroundOnly())
	assert.Equal(t, "\nEntering foreground-only mode (& is now ignored)\n", readNotice(t, ts.notices))
}

func TestRun_StopDuringForegroundAppliesToNextCommand(t *testing.T) {
	ts := newTestShell(t, "/bin/sh -c 'kill -TSTP $PPID'", "/bin/sh -c 'exit 6' &", "status")

	ts.Run(context.Background())
	assert.Equal(t, "exit value 6\n", ts.out.String())
	assert.True(t, ts.session.ForegroundOnly())
	assert.Zero(t, ts.session.BackgroundPID())
	assert.Equal(t, "\nEntering foreground-only mode (& is now ignored)\n", readNotice(t, ts.notices))
}

func TestRun_InterruptNoticePrecedesReport(t *testing.T) {
	dir := t.TempDir()
	term, err := os.Create(filepath.Join(dir, "terminal"))
	require.NoError(t, err)
	stdin, err := os.Open(os.DevNull)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = term.Close()
		_ = stdin.Close()
	})

	cfg := config.Default()
	cfg.HomeDir = dir
	errOut := &bytes.Buffer{}
	sup := jobs.NewSupervisor(jobs.NewSession(),
		jobs.NewLauncher(jobs.Streams{Stdin: stdin, Stdout: term, Stderr: term}),
		jobs.WithOutput(term, errOut),
	)
	reader := &scriptReader{lines: []string{"/bin/sh -c 'sleep 0.2; kill -INT $PPID; exec sleep 5'"}}
	sh, err := New(cfg, sup, WithReader(reader), WithOutput(term, errOut, int(term.Fd())))
	require.NoError(t, err)

	sh.Run(context.Background())
	b, err := os.ReadFile(term.Name())
	require.NoError(t, err)
	assert.Equal(t, "\nterminated by signal 2\n", string(b))
	assert.Equal(t, jobs.Signaled(2), sup.Session().LastStatus())
}

func TestRun_ForegroundOnlyIgnoresAmpersand(t *testing.T) {
	ts := newTestShell(t, "/bin/sh -c 'exit 4' &", "status")
	ts.session.ToggleForegroundOnly()

	ts.Run(context.Background())
	assert.Equal(t, "exit value 4\n", ts.out.String())
}

func TestRun_ExitKillsBackground(t *testing.T) {
	ts := newTestShell(t, "sleep 30 &")

	code := ts.Run(context.Background())
	assert.Equal(t, 0, code)
	var pid int
	_, err := fmt.Sscanf(ts.out.String(), "background pid is %d\n", &pid)
	require.NoError(t, err)

	var ws unix.WaitStatus
	_, err = unix.Wait4(pid, &ws, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, jobs.Signaled(9), jobs.Classify(ws))
	assert.Zero(t, ts.session.BackgroundPID())
}
