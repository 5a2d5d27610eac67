package connection

import (
	"io"
	"sync"

	"github.com/armaxri/termiHub-sub001/internal/spawner"
)

// exitCoder is implemented by spawner handles that can report an exit
// code once their process has ended (e.g. *spawner.NativeHandle).
type exitCoder interface {
	ExitCode() int
}

// processSession adapts a spawner.Handle plus its output reader into
// the SubscribeOutput/ExitCode contract every process-backed
// ConnectionType (Local, WSL, Docker-exec) shares. Only the pump
// goroutine ever closes the current output channel, so swapping
// subscribers never races a send against a close.
type processSession struct {
	handle spawner.Handle
	reader io.Reader
	ring   *ringBuffer

	mu       sync.Mutex
	out      chan []byte
	stopped  chan struct{}
	once     sync.Once
	exitCode *int
}

func newProcessSession(handle spawner.Handle, reader io.Reader, ring *ringBuffer) *processSession {
	p := &processSession{
		handle:  handle,
		ring:    ring,
		reader:  reader,
		stopped: make(chan struct{}),
	}
	go p.pump()
	return p
}

func (p *processSession) pump() {
	buf := make([]byte, 32*1024)
	for {
		n, err := p.reader.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			if p.ring != nil {
				p.ring.Write(chunk)
			}
			p.deliver(chunk)
		}
		if err != nil {
			break
		}
	}

	p.mu.Lock()
	if ec, ok := p.handle.(exitCoder); ok {
		if v := ec.ExitCode(); v >= 0 {
			p.exitCode = &v
		}
	}
	if p.out != nil {
		close(p.out)
		p.out = nil
	}
	p.mu.Unlock()
}

// deliver blocks until the current subscriber accepts chunk or the
// session is stopped — output is never silently dropped while connected.
func (p *processSession) deliver(chunk []byte) {
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

// subscribeOutput installs a fresh output channel, seeded with the
// current ring-buffer backlog, and abandons (without closing) any prior
// one — the pump goroutine is the sole closer, so an old subscriber
// simply stops receiving rather than observing a spurious close.
func (p *processSession) subscribeOutput() <-chan []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan []byte, 8)
	p.out = ch
	if backlog := p.ring.Bytes(); len(backlog) > 0 {
		ch <- backlog
	}
	return ch
}

func (p *processSession) getExitCode() *int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

func (p *processSession) write(data []byte) error {
	return p.handle.WriteInput(data)
}

func (p *processSession) resize(cols, rows int) error {
	return p.handle.Resize(uint16(cols), uint16(rows))
}

func (p *processSession) close() error {
	p.once.Do(func() { close(p.stopped) })
	return p.handle.Close()
}

func (p *processSession) isAlive() bool {
	return p.handle.IsAlive()
}
