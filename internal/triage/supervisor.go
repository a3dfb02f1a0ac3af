package triage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

// Launcher builds the command serving one inbound connection. The command
// must not be started.
type Launcher interface {
	Command() *exec.Cmd
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func() *exec.Cmd

// Command implements Launcher.
func (f LauncherFunc) Command() *exec.Cmd { return f() }

// Emulator launches a service binary under user-mode qemu with a preload
// library that prints the fault marker when the guest crashes.
type Emulator struct {
	Service  string // path to the service binary
	Arch     string // "mips" selects qemu-mipsel, anything else qemu-x86_64
	Binary   string // overrides the emulator picked from Arch
	Preload  string // LD_PRELOAD for the emulator, "" for none
	MipsRoot string // guest root for mips
}

// Args returns the emulator binary and its arguments.
func (e Emulator) Args() (string, []string) {
	bin := e.Binary
	args := []string{"-U", "LD_PRELOAD"}
	if e.Arch == "mips" {
		if bin == "" {
			bin = "qemu-mipsel"
		}
		args = append(args, "-L", e.MipsRoot)
	} else if bin == "" {
		bin = "qemu-x86_64"
	}
	return bin, append(args, "-strace", e.Service)
}

// Command implements Launcher.
func (e Emulator) Command() *exec.Cmd {
	bin, args := e.Args()
	cmd := exec.Command(bin, args...)
	cmd.Dir = filepath.Dir(e.Service)
	if e.Preload != "" {
		cmd.Env = append(os.Environ(), "LD_PRELOAD="+e.Preload)
	}
	return cmd
}

// Supervisor accepts TCP connections and serves each one with a fresh
// target process whose stdin, stdout and stderr are the socket.
type Supervisor struct {
	ln       net.Listener
	launcher Launcher

	mu     sync.Mutex
	procs  map[*exec.Cmd]struct{}
	closed bool

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
	wg        sync.WaitGroup
}

// Supervise listens on addr and starts serving. Cancelling ctx has the same
// effect as Close.
func Supervise(ctx context.Context, addr string, l Launcher) (*Supervisor, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	s := &Supervisor{
		ln:       ln,
		launcher: l,
		procs:    make(map[*exec.Cmd]struct{}),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()

	slog.Info("target supervisor listening", slog.String("addr", ln.Addr().String()))
	return s, nil
}

// Addr returns the listening address.
func (s *Supervisor) Addr() net.Addr { return s.ln.Addr() }

// Done is closed once the supervisor has been closed.
func (s *Supervisor) Done() <-chan struct{} { return s.done }

// Active returns the number of running targets.
func (s *Supervisor) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

// Close stops accepting, kills every running target together with its
// descendants and waits for them to be reaped.
func (s *Supervisor) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		procs := make([]*exec.Cmd, 0, len(s.procs))
		for cmd := range s.procs {
			procs = append(procs, cmd)
		}
		s.mu.Unlock()

		s.closeErr = s.ln.Close()
		for _, cmd := range procs {
			if err := killProcessGroup(cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
				slog.Warn("killing target failed",
					slog.Int("pid", cmd.Process.Pid),
					slog.String("error", err.Error()),
				)
			}
		}
		close(s.done)
	})
	s.wg.Wait()
	return s.closeErr
}

func (s *Supervisor) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Warn("accept failed", slog.String("error", err.Error()))
			time.Sleep(10 * time.Millisecond)
			continue
		}
		s.spawn(conn)
	}
}

// spawn starts a target for conn. A TCP socket is handed to the child as a
// file so the target reads and writes it directly.
func (s *Supervisor) spawn(conn net.Conn) {
	cmd := s.launcher.Command()
	setProcessGroup(cmd)

	var sock *os.File
	if tc, ok := conn.(*net.TCPConn); ok {
		if f, err := tc.File(); err == nil {
			sock = f
		}
	}
	if sock != nil {
		cmd.Stdin, cmd.Stdout, cmd.Stderr = sock, sock, sock
	} else {
		cmd.Stdin, cmd.Stdout, cmd.Stderr = conn, conn, conn
		cmd.WaitDelay = 100 * time.Millisecond
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		closeSocket(conn, sock)
		return
	}
	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		slog.Warn("starting target failed",
			slog.String("remote", conn.RemoteAddr().String()),
			slog.String("error", err.Error()),
		)
		closeSocket(conn, sock)
		return
	}
	s.procs[cmd] = struct{}{}
	s.mu.Unlock()

	if sock != nil {
		// The child holds its own copy of the descriptor.
		closeSocket(conn, sock)
	}

	slog.Debug("target started",
		slog.Int("pid", cmd.Process.Pid),
		slog.String("remote", conn.RemoteAddr().String()),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := cmd.Wait()
		if sock == nil {
			conn.Close()
		}
		s.mu.Lock()
		delete(s.procs, cmd)
		s.mu.Unlock()

		attrs := []any{slog.Int("pid", cmd.Process.Pid)}
		if err != nil {
			attrs = append(attrs, slog.String("exit", err.Error()))
		}
		slog.Debug("target exited", attrs...)
	}()
}

func closeSocket(conn net.Conn, sock *os.File) {
	if sock != nil {
		sock.Close()
	}
	conn.Close()
}
