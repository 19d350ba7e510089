package term

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

const (
	DefaultTermName    = "minivt"
	DefaultReapTimeout = 2 * time.Second
)

// SessionConfig describes the child spawned on the pty slave.
type SessionConfig struct {
	Command     []string
	Dir         string
	Env         []string
	TermName    string
	Width       int
	Height      int
	ReapTimeout time.Duration
}

// Session owns a child process attached to a pseudo-terminal and the
// master side of that terminal.
type Session struct {
	cmd         *exec.Cmd
	ptmx        *os.File
	reapTimeout time.Duration

	exited chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// DefaultCommand returns the login shell used when no command is given:
// $SHELL -l, or /bin/sh -l.
func DefaultCommand() []string {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	return []string{shell, "-l"}
}

// StartSession spawns cfg.Command on a freshly allocated pty. Failures are
// returned as is; nothing is retried.
func StartSession(cfg SessionConfig) (*Session, error) {
	command := cfg.Command
	if len(command) == 0 {
		command = DefaultCommand()
	}
	if command[0] == "" {
		return nil, ErrEmptyCommand
	}
	if cfg.Width < 1 || cfg.Height < 1 {
		return nil, ErrInvalidSize
	}
	termName := cfg.TermName
	if termName == "" {
		termName = DefaultTermName
	}
	reapTimeout := cfg.ReapTimeout
	if reapTimeout <= 0 {
		reapTimeout = DefaultReapTimeout
	}

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Dir = cfg.Dir
	cmd.Env = append(os.Environ(), cfg.Env...)
	cmd.Env = append(cmd.Env, "TERM="+termName)

	ptmx, err := startOnPty(cmd, &pty.Winsize{
		Cols: uint16(cfg.Width),
		Rows: uint16(cfg.Height),
	})
	if err != nil {
		return nil, fmt.Errorf("start pty: %w", err)
	}

	s := &Session{
		cmd:         cmd,
		ptmx:        ptmx,
		reapTimeout: reapTimeout,
		exited:      make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		close(s.exited)
	}()
	return s, nil
}

// startOnPty does what pty.StartWithSize does, except that the size is set
// through the slave. Any Fd call on the master switches it to blocking
// mode, after which Close no longer interrupts a pending Read.
func startOnPty(cmd *exec.Cmd, ws *pty.Winsize) (*os.File, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tty.Close() }()

	if err := pty.Setsize(tty, ws); err != nil {
		_ = ptmx.Close()
		return nil, err
	}
	cmd.Stdin, cmd.Stdout, cmd.Stderr = tty, tty, tty
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}
	if err := cmd.Start(); err != nil {
		_ = ptmx.Close()
		return nil, err
	}
	return ptmx, nil
}

// Master returns the pty master. The engine worker is its only user.
func (s *Session) Master() *os.File { return s.ptmx }

func (s *Session) PID() int {
	if s.cmd.Process == nil {
		return -1
	}
	return s.cmd.Process.Pid
}

// Exited is closed once the child has been reaped.
func (s *Session) Exited() <-chan struct{} { return s.exited }

// ExitCode returns the child's exit status, or -1 while it is running or
// when it was killed by a signal.
func (s *Session) ExitCode() int {
	select {
	case <-s.exited:
	default:
		return -1
	}
	if s.cmd.ProcessState == nil {
		return -1
	}
	return s.cmd.ProcessState.ExitCode()
}

// Reap makes sure the child is gone. The child runs in its own session
// (startOnPty sets Setsid), so its process group gets SIGHUP first and
// SIGKILL once ReapTimeout passes.
func (s *Session) Reap() error {
	select {
	case <-s.exited:
		return nil
	default:
	}

	pid := s.PID()
	if pid <= 0 {
		return nil
	}
	if err := unix.Kill(-pid, unix.SIGHUP); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("hangup process group %d: %w", pid, err)
	}

	timer := time.NewTimer(s.reapTimeout)
	defer timer.Stop()
	select {
	case <-s.exited:
		return nil
	case <-timer.C:
	}

	if err := unix.Kill(-pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("kill process group %d: %w", pid, err)
	}
	<-s.exited
	return nil
}

// Close releases the master and reaps the child. Engines close the master
// themselves and only call Reap; Close is for sessions used on their own.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if err := s.ptmx.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			s.closeErr = err
		}
		if err := s.Reap(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
	})
	return s.closeErr
}

// isHangup reports the EIO a Linux pty master returns once the slave side
// has no more openers.
func isHangup(err error) bool {
	return errors.Is(err, unix.EIO)
}
