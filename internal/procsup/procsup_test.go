//go:build !windows

package procsup

import (
	"bytes"
	"context"
	"io"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopeforge/reposcope/internal/rlog"
)

func testLogger() rlog.Logger {
	return rlog.New(io.Discard, 0)
}

func TestSpawnFinishesNaturally(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	c, err := Spawn(context.Background(), testLogger(), "sh", []string{"-c", "echo hello"}, Kill(), nil, false, &buf)
	require.NoError(t, err)

	exit := c.Wait()
	assert.Equal(t, Finished, exit.Kind)
	assert.Equal(t, 0, exit.Code)
}

func TestSpawnNonZeroExit(t *testing.T) {
	t.Parallel()
	c, err := Spawn(context.Background(), testLogger(), "sh", []string{"-c", "exit 3"}, Kill(), nil, false, io.Discard)
	require.NoError(t, err)
	exit := c.Wait()
	assert.Equal(t, Finished, exit.Kind)
	assert.Equal(t, 3, exit.Code)
}

// Two concurrent Stop calls produce the same Exit.
func TestStopIdempotence(t *testing.T) {
	t.Parallel()
	c, err := Spawn(context.Background(), testLogger(), "sh", []string{"-c", "sleep 5"}, Graceful(200*time.Millisecond), nil, false, io.Discard)
	require.NoError(t, err)

	results := make(chan Exit, 2)
	go func() { results <- c.Stop() }()
	go func() { results <- c.Stop() }()

	e1 := <-results
	e2 := <-results
	assert.Equal(t, e1, e2)
}

// A child that dies to SIGINT is reported as Interrupted, well before
// the escalation timeout.
func TestGracefulStopInterruptsResponsiveChild(t *testing.T) {
	t.Parallel()
	c, err := Spawn(context.Background(), testLogger(), "sleep", []string{"5"}, Graceful(2*time.Second), nil, false, io.Discard)
	require.NoError(t, err)

	start := time.Now()
	exit := c.Stop()
	assert.Equal(t, Interrupted, exit.Kind)
	assert.Less(t, time.Since(start), time.Second)
}

// Stop under Graceful(T) returns within roughly T even when the child
// ignores SIGINT.
func TestGracefulTimeoutUpperBound(t *testing.T) {
	t.Parallel()
	// The trap makes sh (and the sleep it runs) ignore SIGINT, so the
	// timeout must be hit and escalation to Kill must occur. Stop is sent
	// only after sh has had time to install the trap; a SIGINT that
	// arrives earlier kills sh outright and reads as Interrupted.
	c, err := Spawn(context.Background(), testLogger(), "sh", []string{"-c", "trap '' INT; sleep 5"}, Graceful(300*time.Millisecond), nil, false, io.Discard)
	require.NoError(t, err)
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	exit := c.Stop()
	elapsed := time.Since(start)

	assert.Equal(t, Killed, exit.Kind)
	assert.Less(t, elapsed, 900*time.Millisecond)
}

// Every Wait caller observes the same terminal value; it is set
// exactly once.
func TestWaitMultipleCallersSeeSameValue(t *testing.T) {
	t.Parallel()
	c, err := Spawn(context.Background(), testLogger(), "sh", []string{"-c", "exit 7"}, Kill(), nil, false, io.Discard)
	require.NoError(t, err)

	results := make(chan Exit, 3)
	for i := 0; i < 3; i++ {
		go func() { results <- c.Wait() }()
	}
	first := <-results
	for i := 0; i < 2; i++ {
		assert.Equal(t, first, <-results)
	}
}

// A child killed from outside the supervisor is reported as
// KilledExternal.
func TestExternalKillReportsKilledExternal(t *testing.T) {
	if os.Getenv("CI") != "" {
		t.Skip("signal timing is flaky under heavily loaded CI runners")
	}
	t.Parallel()
	c, err := Spawn(context.Background(), testLogger(), "sh", []string{"-c", "sleep 5"}, Kill(), nil, false, io.Discard)
	require.NoError(t, err)
	require.NoError(t, syscall.Kill(c.Pid(), syscall.SIGKILL))

	exit := c.Wait()
	assert.Equal(t, KilledExternal, exit.Kind)
}

func TestStdinIsOneShot(t *testing.T) {
	t.Parallel()
	c, err := Spawn(context.Background(), testLogger(), "cat", nil, Kill(), nil, true, io.Discard)
	require.NoError(t, err)
	defer c.Kill()

	first := c.Stdin()
	assert.NotNil(t, first)
	second := c.Stdin()
	assert.Nil(t, second)
}

// A pipe-mode child with no declared stdin interest reads straight EOF.
func TestPipeStdinEOFWhenUninterested(t *testing.T) {
	t.Parallel()
	c, err := Spawn(context.Background(), testLogger(), "cat", nil, Kill(), nil, false, io.Discard)
	require.NoError(t, err)

	assert.Nil(t, c.Stdin())
	exit := c.Wait()
	assert.Equal(t, Finished, exit.Kind)
	assert.Equal(t, 0, exit.Code)
}

// A PTY-mode child with no declared stdin interest gets EOF delivered
// through the terminal immediately after spawn, so a blocking read
// returns instead of hanging the task.
func TestPTYStdinEOFWhenUninterested(t *testing.T) {
	t.Parallel()
	c, err := Spawn(context.Background(), testLogger(), "cat", nil, Kill(), &PTYSize{Rows: 24, Cols: 80}, false, io.Discard)
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}

	assert.Nil(t, c.Stdin())
	exit := c.Wait()
	assert.Equal(t, Finished, exit.Kind)
	assert.Equal(t, 0, exit.Code)
}
