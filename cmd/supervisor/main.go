// Checkweigher Supervisor
//
// Forks the collector and api binaries as sibling OS processes and
// forwards SIGINT/SIGTERM to both, mirroring the original system's
// multiprocessing parent (one process per worker, joined at exit).
package main

import (
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// gracePeriod bounds how long a child is given to exit on its own after
// the caught signal is forwarded to it before the supervisor escalates
// to an unconditional kill.
const gracePeriod = 30 * time.Second

type child struct {
	cmd  *exec.Cmd
	name string
	done chan struct{}
}

func main() {
	setupLogging()

	self, err := os.Executable()
	if err != nil {
		slog.Error("failed to resolve executable path", "error", err)
		os.Exit(1)
	}
	dir := filepath.Dir(self)

	collector, err := startChild(dir, "collector")
	if err != nil {
		slog.Error("failed to start service", "service", "collector", "error", err)
		os.Exit(1)
	}
	api, err := startChild(dir, "api")
	if err != nil {
		slog.Error("failed to start service", "service", "api", "error", err)
		os.Exit(1)
	}
	children := []*child{collector, api}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		slog.Info("supervisor: shutdown signal received", "signal", sig.String())
		for _, c := range children {
			go forwardSignal(c, sig)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(len(children))
	for _, c := range children {
		go waitChild(&wg, c)
	}
	wg.Wait()
	slog.Info("supervisor: all services stopped")
}

func startChild(dir, name string) (*child, error) {
	cmd := exec.Command(filepath.Join(dir, name))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	slog.Info("supervisor: starting service", "service", name)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &child{cmd: cmd, name: name, done: make(chan struct{})}, nil
}

// forwardSignal relays sig to c's own process so its lifecycle.Run
// handler gets the chance to drain and flush, same as if it had been
// sent the signal directly. Only after gracePeriod elapses without the
// child exiting does this escalate to an unconditional kill.
func forwardSignal(c *child, sig os.Signal) {
	if err := c.cmd.Process.Signal(sig); err != nil {
		slog.Error("supervisor: failed to forward signal", "service", c.name, "error", err)
		return
	}

	select {
	case <-c.done:
	case <-time.After(gracePeriod):
		slog.Warn("supervisor: service did not exit within grace period, killing", "service", c.name)
		if err := c.cmd.Process.Kill(); err != nil {
			slog.Error("supervisor: failed to kill service", "service", c.name, "error", err)
		}
	}
}

func waitChild(wg *sync.WaitGroup, c *child) {
	defer wg.Done()
	defer close(c.done)

	if err := c.cmd.Wait(); err != nil {
		if c.cmd.ProcessState != nil && !c.cmd.ProcessState.Success() {
			slog.Info("supervisor: service stopped", "service", c.name, "state", c.cmd.ProcessState.String())
			return
		}
		slog.Error("supervisor: service exited with error", "service", c.name, "error", err)
		return
	}
	slog.Info("supervisor: service exited", "service", c.name)
}

func setupLogging() {
	logLevel := slog.LevelInfo
	if os.Getenv("CHECKWEIGHER_DEV") == "true" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}
