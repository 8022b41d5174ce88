// Package procsup implements managed child-process supervision for the
// reposcope task runner: graceful/forced shutdown, PTY or piped output,
// and exit classification.
//
// One supervisor goroutine runs per child. It selects on a command
// channel and the OS wait, command channel checked first, and publishes
// exactly one terminal Exit that any number of Wait() callers observe.
package procsup

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"

	"github.com/scopeforge/reposcope/internal/rlog"
)

// ExitKind classifies how a Child terminated.
type ExitKind int

const (
	Finished ExitKind = iota
	Interrupted
	Killed
	KilledExternal
	Failed
)

func (k ExitKind) String() string {
	switch k {
	case Interrupted:
		return "interrupted"
	case Killed:
		return "killed"
	case KilledExternal:
		return "killed-external"
	case Failed:
		return "failed"
	default:
		return "finished"
	}
}

// Exit is the terminal value published on a Child's watch channel.
type Exit struct {
	Kind ExitKind
	Code int
	Err  error
}

// ShutdownPolicy selects how Stop asks a child to terminate.
type ShutdownPolicy struct {
	// Graceful, when true, sends SIGINT (POSIX) to the child's process
	// group and waits up to Timeout before escalating to a force-kill.
	// On Windows the graceful variant is equivalent to a force-kill.
	Graceful bool
	Timeout  time.Duration
}

// Kill is the always-force-terminate policy.
func Kill() ShutdownPolicy { return ShutdownPolicy{} }

// Graceful returns a policy that sends SIGINT and waits timeout before
// escalating.
func Graceful(timeout time.Duration) ShutdownPolicy {
	return ShutdownPolicy{Graceful: true, Timeout: timeout}
}

// PTYSize requests PTY mode with the given terminal dimensions.
type PTYSize struct {
	Rows, Cols uint16
}

type command int

const (
	cmdStop command = iota
	cmdKill
)

// Child supervises one spawned process. All exported methods are safe
// for concurrent use.
type Child struct {
	ID  uuid.UUID
	cmd *exec.Cmd

	log rlog.Logger

	cmdCh  chan command
	doneCh chan struct{} // closed when the watch value is published
	mu     sync.Mutex
	result *Exit

	ptyFile    *os.File
	output     io.Writer
	outputDone chan struct{}

	stdinMu  sync.Mutex
	stdin    io.WriteCloser // one-shot: taken by Stdin()
	stdinGot bool
}

// Spawn starts command under name with args, applying shutdownPolicy when
// Stop is requested; cancelling ctx force-kills the child through
// exec.CommandContext without consulting the policy. If ptySize is non-nil the child
// runs attached to a pseudo-terminal via creack/pty; otherwise its
// stdout/stderr are plain OS pipes. openStdin declares the command's
// interest in stdin: when false, a pipe-mode child reads from the null
// device and a PTY-mode child is sent EOF immediately after spawn, so a
// stray read returns at once instead of hanging the task. output
// receives the child's combined stdout+stderr as it streams; a nil
// output defaults to os.Stdout.
func Spawn(ctx context.Context, log rlog.Logger, name string, args []string, shutdownPolicy ShutdownPolicy, ptySize *PTYSize, openStdin bool, output io.Writer) (*Child, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	setProcessGroup(cmd)

	if output == nil {
		output = os.Stdout
	}

	id := uuid.New()
	c := &Child{
		ID:         id,
		cmd:        cmd,
		log:        log.WithField("child_id", id.String()),
		cmdCh:      make(chan command, 1),
		doneCh:     make(chan struct{}),
		output:     output,
		outputDone: make(chan struct{}),
	}

	var stdoutR io.ReadCloser
	var stderrR io.ReadCloser

	if ptySize != nil {
		f, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: ptySize.Rows, Cols: ptySize.Cols})
		if err != nil {
			return nil, err
		}
		disableEchoCtl(f)
		c.ptyFile = f
		if openStdin {
			c.stdin = f
		} else {
			// No interest in stdin: deliver EOF through the line
			// discipline right away. disableEchoCtl above keeps the ^D
			// from being echoed back into the output stream.
			_, _ = f.Write([]byte{0x04})
		}
	} else {
		// Hand the child real pipe fds rather than exec's StdoutPipe:
		// cmd.Wait runs concurrently with the stream readers in run(),
		// and Wait closes StdoutPipe/StderrPipe descriptors out from
		// under a still-draining reader. With os.Pipe the parent owns
		// the read ends outright and EOF arrives when the child exits.
		outR, outW, err := os.Pipe()
		if err != nil {
			return nil, err
		}
		errR, errW, err := os.Pipe()
		if err != nil {
			outR.Close()
			outW.Close()
			return nil, err
		}

		cmd.Stdout = outW
		cmd.Stderr = errW

		var inR *os.File
		if openStdin {
			var inW *os.File
			inR, inW, err = os.Pipe()
			if err != nil {
				outR.Close()
				outW.Close()
				errR.Close()
				errW.Close()
				return nil, err
			}
			cmd.Stdin = inR
			c.stdin = inW
		}
		// With no interest in stdin, cmd.Stdin stays nil and os/exec
		// hands the child the null device, so its first read sees EOF.

		if err := cmd.Start(); err != nil {
			for _, f := range []*os.File{outR, outW, errR, errW, inR} {
				if f != nil {
					f.Close()
				}
			}
			if c.stdin != nil {
				c.stdin.Close()
			}
			return nil, err
		}
		// The child holds its own copies now.
		outW.Close()
		errW.Close()
		if inR != nil {
			inR.Close()
		}

		stdoutR = outR
		stderrR = errR
	}

	c.run(shutdownPolicy, stdoutR, stderrR)
	return c, nil
}

// Output returns the writer this Child streams its combined output to:
// the one passed to Spawn, or os.Stdout when that was nil.
func (c *Child) Output() io.Writer { return c.output }

// Pid returns the child's OS process id, or 0 if it never started.
func (c *Child) Pid() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Stdin returns the child's stdin handle, one-shot: the second call
// returns nil. A real writer exists only when Spawn was told the
// command is interested in stdin; otherwise the handle was never
// opened (pipe mode) or EOF was already delivered (PTY mode) and this
// returns nil.
func (c *Child) Stdin() io.WriteCloser {
	c.stdinMu.Lock()
	defer c.stdinMu.Unlock()
	if c.stdinGot {
		return nil
	}
	c.stdinGot = true
	return c.stdin
}

// Stop requests graceful shutdown per the Child's configured policy.
// Idempotent: a second call, or a call after Wait has already returned,
// is a no-op that returns the same value.
func (c *Child) Stop() Exit {
	select {
	case c.cmdCh <- cmdStop:
	default:
	}
	return c.Wait()
}

// Kill requests immediate termination. Idempotent like Stop.
func (c *Child) Kill() Exit {
	select {
	case c.cmdCh <- cmdKill:
	default:
	}
	return c.Wait()
}

// Wait blocks until the child has exited and returns the terminal value.
// Safe to call from multiple goroutines; all observe the same value,
// which is set exactly once and never changes afterward.
func (c *Child) Wait() Exit {
	<-c.doneCh
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.result
}

// WaitWithPipedOutputs blocks until the child exits and the output
// copier started at Spawn has finished draining it; the copy and the
// exit-wait run concurrently, this just joins both. The destination
// writer is the one supplied to Spawn, not a parameter here: reposcope
// wires a per-package prefixed writer in at spawn time rather than
// redirecting mid-flight.
func (c *Child) WaitWithPipedOutputs() Exit {
	exit := c.Wait()
	<-c.outputDone
	return exit
}

func (c *Child) publish(e Exit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result != nil {
		return
	}
	c.result = &e
	close(c.doneCh)
}

func (c *Child) run(policy ShutdownPolicy, stdoutR, stderrR io.ReadCloser) {
	osWait := make(chan error, 1)
	go func() { osWait <- c.cmd.Wait() }()

	if c.ptyFile != nil {
		go func() {
			streamPTY(c.log, c.ptyFile, c.output)
			close(c.outputDone)
		}()
	} else if stdoutR != nil {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); streamLines(stdoutR, c.output) }()
		go func() { defer wg.Done(); streamLines(stderrR, c.output) }()
		go func() { wg.Wait(); close(c.outputDone) }()
	} else {
		close(c.outputDone)
	}

	go func() {
		// The command channel wins when both are ready: a Stop/Kill that
		// raced the child's own exit is still reported as
		// supervisor-initiated, not as KilledExternal.
		var cmd command
		var gotCmd bool
		select {
		case cmd = <-c.cmdCh:
			gotCmd = true
		default:
			select {
			case cmd = <-c.cmdCh:
				gotCmd = true
			case err := <-osWait:
				c.publish(classifyNaturalExit(err, c.cmd))
			}
		}
		if gotCmd {
			exit := c.executeShutdown(cmd, policy, osWait)
			c.publish(exit)
		}
		// Drop the PTY controller only after the OS wait has completed;
		// on Windows the controller's close is what signals the child's
		// exit, and it also unblocks the streamPTY reader on platforms
		// where that read would otherwise stall.
		if c.ptyFile != nil {
			c.ptyFile.Close()
		}
	}()
}

func (c *Child) executeShutdown(cmd command, policy ShutdownPolicy, osWait chan error) Exit {
	if cmd == cmdKill || !policy.Graceful {
		return c.forceKill(osWait)
	}

	if err := sendInterrupt(c.cmd); err != nil {
		c.log.WithError(err).Warnf("graceful shutdown signal failed, escalating")
		return c.forceKill(osWait)
	}

	select {
	case err := <-osWait:
		_ = err
		return Exit{Kind: Interrupted}
	case <-time.After(policy.Timeout):
		c.log.Warnf("graceful shutdown timed out after %s, escalating to kill", policy.Timeout)
		return c.forceKill(osWait)
	}
}

func (c *Child) forceKill(osWait chan error) Exit {
	if err := killProcessGroup(c.cmd); err != nil {
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
	}
	<-osWait
	return Exit{Kind: Killed}
}

func classifyNaturalExit(err error, cmd *exec.Cmd) Exit {
	if err == nil {
		return Exit{Kind: Finished, Code: 0}
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return Exit{Kind: KilledExternal, Code: -1, Err: err}
			}
			return Exit{Kind: Finished, Code: status.ExitStatus()}
		}
		return Exit{Kind: Finished, Code: exitErr.ExitCode()}
	}
	return Exit{Kind: Failed, Err: err}
}

func streamLines(r io.ReadCloser, w io.Writer) {
	defer r.Close()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		_, _ = w.Write(append(scanner.Bytes(), '\n'))
	}
}

func streamPTY(log rlog.Logger, f *os.File, w io.Writer) {
	buf := make([]byte, 32*1024)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			_, _ = w.Write(buf[:n])
		}
		if err != nil {
			return
		}
	}
}
