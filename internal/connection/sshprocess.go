package connection

import (
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/ssh"
)

// sshPTYProcess adapts an *ssh.Session's interactive shell into the same
// output/exit-code contract processSession gives process-backed
// connections, so SSHConnection can reuse the ring-buffer/subscription
// plumbing instead of duplicating it.
type sshPTYProcess struct {
	sess  *ssh.Session
	stdin io.WriteCloser
	ring  *ringBuffer

	mu       sync.Mutex
	out      chan []byte
	stopped  chan struct{}
	once     sync.Once
	alive    bool
	exitCode *int
}

func newSSHPTYProcess(sess *ssh.Session, ring *ringBuffer) (*sshPTYProcess, error) {
	stdin, err := sess.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("connection: ssh stdin pipe: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("connection: ssh stdout pipe: %w", err)
	}
	if err := sess.Shell(); err != nil {
		return nil, fmt.Errorf("connection: ssh start shell: %w", err)
	}

	p := &sshPTYProcess{sess: sess, stdin: stdin, ring: ring, alive: true, stopped: make(chan struct{})}
	go p.pump(stdout)
	return p, nil
}

func (p *sshPTYProcess) pump(stdout io.Reader) {
	buf := make([]byte, 32*1024)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			p.ring.Write(chunk)
			p.deliver(chunk)
		}
		if err != nil {
			break
		}
	}

	p.mu.Lock()
	p.alive = false
	err := p.sess.Wait()
	switch v := err.(type) {
	case *ssh.ExitError:
		code := v.ExitStatus()
		p.exitCode = &code
	case nil:
		zero := 0
		p.exitCode = &zero
	}
	if p.out != nil {
		close(p.out)
		p.out = nil
	}
	p.mu.Unlock()
}

func (p *sshPTYProcess) deliver(chunk []byte) {
	p.mu.Lock()
	out := p.out
	p.mu.Unlock()
	if out == nil {
		return
	}
	select {
	case out <- chunk:
	case <-p.stopped:
	}
}

func (p *sshPTYProcess) subscribeOutput() <-chan []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan []byte, 8)
	p.out = ch
	if backlog := p.ring.Bytes(); len(backlog) > 0 {
		ch <- backlog
	}
	return ch
}

func (p *sshPTYProcess) stop() {
	p.once.Do(func() { close(p.stopped) })
}

func (p *sshPTYProcess) write(data []byte) error {
	_, err := p.stdin.Write(data)
	return err
}

func (p *sshPTYProcess) isAlive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

func (p *sshPTYProcess) getExitCode() *int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}
