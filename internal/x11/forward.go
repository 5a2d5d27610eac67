// Package x11 implements the reverse X11 forwarder: once an SSH
// connection has X11 forwarding enabled, incoming X11 channels from the
// remote side are proxied to the local X server.
package x11

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
)

// DisplaySocket locates the local X server: prefer the $DISPLAY unix
// socket, else fall back to TCP localhost:6000+n.
func DisplaySocket() (network, address string, err error) {
	display := os.Getenv("DISPLAY")
	if display == "" {
		return "", "", fmt.Errorf("x11: DISPLAY is not set")
	}

	n, err := displayNumber(display)
	if err != nil {
		return "", "", err
	}

	sock := fmt.Sprintf("/tmp/.X11-unix/X%d", n)
	if _, statErr := os.Stat(sock); statErr == nil {
		return "unix", sock, nil
	}
	return "tcp", fmt.Sprintf("localhost:%d", 6000+n), nil
}

// displayNumber parses ":0", "host:0.0", "unix:0" etc. down to the
// numeric display.
func displayNumber(display string) (int, error) {
	rest := display
	if idx := strings.LastIndex(rest, ":"); idx >= 0 {
		rest = rest[idx+1:]
	}
	if idx := strings.Index(rest, "."); idx >= 0 {
		rest = rest[:idx]
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("x11: parse DISPLAY %q: %w", display, err)
	}
	return n, nil
}

// Forwarder accepts incoming X11 channels forwarded by the SSH server and
// proxies each to the local X server.
type Forwarder struct {
	client *ssh.Client
	logger *slog.Logger

	mu   sync.Mutex
	stop bool
}

// New returns a Forwarder bound to client. Call Run in its own goroutine.
func New(client *ssh.Client, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{client: client, logger: logger}
}

// Run services incoming "x11" channel requests until the client's
// channel-open stream closes; it sends no "x11-req" itself. After Stop,
// it rejects new channels but keeps running.
func (f *Forwarder) Run(channels <-chan ssh.NewChannel) error {
	network, address, err := DisplaySocket()
	if err != nil {
		return fmt.Errorf("x11: locate local X server: %w", err)
	}

	for newCh := range channels {
		f.mu.Lock()
		stopped := f.stop
		f.mu.Unlock()
		if stopped {
			newCh.Reject(ssh.ConnectionFailed, "forwarder stopped")
			continue
		}

		ch, reqs, err := newCh.Accept()
		if err != nil {
			f.logger.Warn("x11: accept channel failed", "error", err)
			continue
		}
		go ssh.DiscardRequests(reqs)
		go f.proxy(ch, network, address)
	}
	return nil
}

func (f *Forwarder) proxy(ch ssh.Channel, network, address string) {
	defer ch.Close()

	local, err := net.Dial(network, address)
	if err != nil {
		f.logger.Warn("x11: dial local X server failed", "error", err)
		return
	}
	defer local.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		io.Copy(local, ch)
		if tcp, ok := local.(interface{ CloseWrite() error }); ok {
			tcp.CloseWrite()
		}
	}()
	go func() {
		defer wg.Done()
		io.Copy(ch, local)
		ch.CloseWrite()
	}()
	wg.Wait()
}

// Stop marks the forwarder stopped; in-flight proxies run to completion
// but no new channel is accepted.
func (f *Forwarder) Stop() {
	f.mu.Lock()
	f.stop = true
	f.mu.Unlock()
}
