package runner

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mattjoyce/putput/internal/command"
	"github.com/mattjoyce/putput/internal/log"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", nil) // Suppress logs in tests
	goleak.VerifyTestMain(m)
}

func mustSpec(t *testing.T, raw string) command.Spec {
	t.Helper()
	spec, err := command.Parse(raw)
	require.NoError(t, err)
	return spec
}

func newTestRunner() *Runner {
	return New(1<<20, 200*time.Millisecond)
}

func TestRun_WcCountsLines(t *testing.T) {
	r := newTestRunner()
	res := r.Run(context.Background(), Job{
		Index:      0,
		Generation: 7,
		Spec:       mustSpec(t, "wc -l"),
		Input:      []byte("a\nb\nc\n"),
	})

	assert.Equal(t, KindSuccess, res.Status.Kind)
	assert.True(t, res.Status.Success())
	assert.Equal(t, "3", strings.TrimSpace(string(res.Stdout)))
	assert.Equal(t, uint64(7), res.Generation)
	assert.Equal(t, "wc -l", res.Command)
	assert.NotEmpty(t, res.RunID)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))
}

func TestRun_CatEchoesInput(t *testing.T) {
	r := newTestRunner()
	input := []byte("hello\nworld\n")
	res := r.Run(context.Background(), Job{Spec: mustSpec(t, "cat"), Input: input})

	require.Equal(t, KindSuccess, res.Status.Kind)
	assert.Equal(t, input, res.Stdout)
	assert.Empty(t, res.Stderr)
	assert.Empty(t, res.IOError)
}

func TestRun_NonZeroExit(t *testing.T) {
	r := newTestRunner()
	res := r.Run(context.Background(), Job{Spec: mustSpec(t, `sh -c "echo bad >&2; exit 3"`)})

	assert.Equal(t, KindExitCode, res.Status.Kind)
	assert.Equal(t, 3, res.Status.Code)
	assert.Equal(t, "exit status 3", res.Status.String())
	assert.Equal(t, "bad\n", string(res.Stderr))
}

func TestRun_SpawnFailed(t *testing.T) {
	r := newTestRunner()
	res := r.Run(context.Background(), Job{Index: 2, Spec: mustSpec(t, "no_such_binary_xyz"), Input: []byte("x")})

	assert.Equal(t, KindSpawnFailed, res.Status.Kind)
	assert.Contains(t, res.Status.Message, "no_such_binary_xyz")
	assert.Equal(t, 2, res.Index)
	assert.False(t, res.Exhausted)
}

func TestRun_ParseFailedNeverSpawns(t *testing.T) {
	spec, err := command.Parse(`echo "unterminated`)
	require.Error(t, err)

	r := newTestRunner()
	res := r.Run(context.Background(), Job{Spec: spec})

	assert.Equal(t, KindParseFailed, res.Status.Kind)
	assert.NotEmpty(t, res.Status.Message)
	assert.Empty(t, res.Stdout)
}

func TestRun_KilledBySignal(t *testing.T) {
	r := newTestRunner()
	res := r.Run(context.Background(), Job{Spec: mustSpec(t, `sh -c "kill -9 $$"`)})

	assert.Equal(t, KindSignal, res.Status.Kind)
	assert.Equal(t, "killed", res.Status.Signal)
}

func TestRun_OutputTruncation(t *testing.T) {
	r := New(100, DefaultGracePeriod)
	res := r.Run(context.Background(), Job{Spec: mustSpec(t, `sh -c "dd if=/dev/zero bs=1000 count=1 2>/dev/null"`)})

	require.Equal(t, KindSuccess, res.Status.Kind, "truncation is not an error")
	assert.True(t, res.StdoutTruncated)
	assert.False(t, res.StderrTruncated)
	assert.True(t, bytes.HasPrefix(res.Stdout, make([]byte, 100)))
	assert.Contains(t, string(res.Stdout), "[output truncated at 100 B, 900 B discarded]")
}

func TestRun_LargeInputDoesNotDeadlock(t *testing.T) {
	// cat writes output while its input is still arriving; sequential
	// reading would fill the pipe buffers and hang.
	input := bytes.Repeat([]byte("0123456789abcdef\n"), 64*1024)
	r := New(4<<20, DefaultGracePeriod)

	done := make(chan Result, 1)
	go func() { done <- r.Run(context.Background(), Job{Spec: mustSpec(t, "cat"), Input: input}) }()

	select {
	case res := <-done:
		require.Equal(t, KindSuccess, res.Status.Kind)
		assert.Equal(t, len(input), len(res.Stdout))
		assert.False(t, res.StdoutTruncated)
	case <-time.After(10 * time.Second):
		t.Fatal("run deadlocked on large input")
	}
}

func TestRun_StdinNotConsumedIsRecorded(t *testing.T) {
	input := bytes.Repeat([]byte("x"), 1<<20)
	r := newTestRunner()
	res := r.Run(context.Background(), Job{Spec: mustSpec(t, "true"), Input: input})

	assert.Equal(t, KindSuccess, res.Status.Kind)
	assert.Contains(t, res.IOError, "stdin")
}

func TestRun_BackgroundChildDoesNotHoldSlot(t *testing.T) {
	r := newTestRunner()

	start := time.Now()
	res := r.Run(context.Background(), Job{Spec: mustSpec(t, `sh -c "sleep 3 & echo hi"`)})
	elapsed := time.Since(start)

	require.Equal(t, KindSuccess, res.Status.Kind)
	assert.Equal(t, "hi\n", string(res.Stdout))
	assert.Empty(t, res.IOError)
	assert.Less(t, elapsed, 2*time.Second, "resolved when sh exited, not when sleep did")
}

func TestRun_BackgroundChildKeepsExitCode(t *testing.T) {
	r := newTestRunner()
	r.DrainDelay = 50 * time.Millisecond

	res := r.Run(context.Background(), Job{Spec: mustSpec(t, `sh -c "sleep 3 & echo oops >&2; exit 3"`)})

	require.Equal(t, KindExitCode, res.Status.Kind)
	assert.Equal(t, 3, res.Status.Code)
	assert.Equal(t, "oops\n", string(res.Stderr))
}

func TestRun_CancelTerminates(t *testing.T) {
	r := newTestRunner()
	ctx, cancel := context.WithCancel(context.Background())

	start := time.Now()
	ch := r.Start(ctx, Job{Spec: mustSpec(t, "sleep 10")})
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case res := <-ch:
		assert.Equal(t, KindCancelled, res.Status.Kind)
		assert.Less(t, time.Since(start), 5*time.Second)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled run did not resolve")
	}
}

func TestRun_CancelEscalatesToKill(t *testing.T) {
	r := New(1<<20, 100*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	// The ignored TERM disposition is inherited by sleep as well.
	ch := r.Start(ctx, Job{Spec: mustSpec(t, `sh -c "trap '' TERM; echo ready; sleep 10"`)})
	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case res := <-ch:
		assert.Equal(t, KindCancelled, res.Status.Kind)
		assert.Contains(t, string(res.Stdout), "ready", "output captured before cancel is kept")
	case <-time.After(5 * time.Second):
		t.Fatal("SIGKILL escalation did not happen")
	}
}

func TestRun_AlreadyCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestRunner().Run(ctx, Job{Spec: mustSpec(t, "sleep 10")})
	assert.Equal(t, KindCancelled, res.Status.Kind)
}

func TestRun_Idempotent(t *testing.T) {
	r := newTestRunner()
	job := Job{Spec: mustSpec(t, "wc"), Input: []byte("one two\nthree\n")}

	first := r.Run(context.Background(), job)
	second := r.Run(context.Background(), job)

	assert.Equal(t, first.Stdout, second.Stdout)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRun_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/marker.txt", []byte("here"), 0o644))

	r := newTestRunner()
	r.Dir = dir
	res := r.Run(context.Background(), Job{Spec: mustSpec(t, "ls")})

	require.Equal(t, KindSuccess, res.Status.Kind)
	assert.Contains(t, string(res.Stdout), "marker.txt")
}

func TestNew_Defaults(t *testing.T) {
	r := New(0, -1)
	assert.Equal(t, DefaultMaxOutput, r.MaxOutput)
	assert.Equal(t, DefaultGracePeriod, r.GracePeriod)
	assert.Equal(t, DefaultDrainDelay, r.DrainDelay)
}

func TestCapture(t *testing.T) {
	c := newCapture(5)
	n, err := c.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.False(t, c.truncated())

	n, err = c.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n, "report all bytes consumed")
	assert.True(t, c.truncated())

	n, _ = c.Write([]byte("ij"))
	assert.Equal(t, 2, n)

	out := string(c.bytes())
	assert.True(t, strings.HasPrefix(out, "abcde\n[output truncated at 5 B, 5 B discarded]"), out)
}

func TestExitStatusString(t *testing.T) {
	tests := []struct {
		status ExitStatus
		want   string
	}{
		{ExitStatus{Kind: KindSuccess}, "exit status 0"},
		{ExitStatus{Kind: KindExitCode, Code: 2}, "exit status 2"},
		{ExitStatus{Kind: KindSignal, Signal: "terminated"}, "signal: terminated"},
		{ExitStatus{Kind: KindSpawnFailed, Message: "not found"}, "spawn failed: not found"},
		{ExitStatus{Kind: KindParseFailed, Message: "bad quote"}, "parse error: bad quote"},
		{ExitStatus{Kind: KindCancelled}, "cancelled"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}
