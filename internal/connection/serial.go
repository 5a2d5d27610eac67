package connection

import (
	"context"
	"fmt"
	"sync"

	"go.bug.st/serial"

	"github.com/armaxri/termiHub-sub001/internal/config"
)

// SerialConnection talks to a local serial device. Resize is a no-op —
// the capability is advertised false.
type SerialConnection struct {
	mu     sync.Mutex
	port   serial.Port
	device string

	out     chan []byte
	stopped chan struct{}
	once    sync.Once

	exitMu   sync.Mutex
	exitCode *int
}

// NewSerial returns an unconnected Serial ConnectionType.
func NewSerial() ConnectionType { return &SerialConnection{} }

func (c *SerialConnection) Metadata() Metadata {
	return Metadata{TypeID: "serial", DisplayName: "Serial"}
}

func (c *SerialConnection) Capabilities() Capabilities { return Capabilities{Resize: false} }

var serialParity = map[config.Parity]serial.Parity{
	config.ParityNone: serial.NoParity,
	config.ParityOdd:  serial.OddParity,
	config.ParityEven: serial.EvenParity,
}

var serialStopBits = map[int]serial.StopBits{
	1: serial.OneStopBit,
	2: serial.TwoStopBits,
}

func (c *SerialConnection) Connect(ctx context.Context, settings any) error {
	s, ok := settings.(*config.SerialSettings)
	if !ok {
		return fmt.Errorf("connection: serial expects *config.SerialSettings")
	}

	parity, ok := serialParity[s.Parity]
	if !ok {
		parity = serial.NoParity
	}
	stopBits, ok := serialStopBits[s.StopBits]
	if !ok {
		stopBits = serial.OneStopBit
	}

	mode := &serial.Mode{
		BaudRate: s.Baud,
		DataBits: s.DataBits,
		Parity:   parity,
		StopBits: stopBits,
	}

	port, err := serial.Open(s.Device, mode)
	if err != nil {
		return fmt.Errorf("connection: open serial device %s: %w", s.Device, err)
	}

	c.mu.Lock()
	c.port = port
	c.device = s.Device
	c.stopped = make(chan struct{})
	c.mu.Unlock()
	return nil
}

func (c *SerialConnection) Disconnect() error {
	c.mu.Lock()
	port := c.port
	stopped := c.stopped
	c.mu.Unlock()
	if port == nil {
		return nil
	}
	c.once.Do(func() { close(stopped) })
	return port.Close()
}

func (c *SerialConnection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port != nil
}

func (c *SerialConnection) Write(data []byte) error {
	c.mu.Lock()
	port := c.port
	c.mu.Unlock()
	if port == nil {
		return fmt.Errorf("connection: not connected")
	}
	_, err := port.Write(data)
	return err
}

func (c *SerialConnection) Resize(cols, rows int) error { return nil }

func (c *SerialConnection) SubscribeOutput() <-chan []byte {
	c.mu.Lock()
	port := c.port
	stopped := c.stopped
	ch := make(chan []byte, 8)
	c.out = ch
	c.mu.Unlock()

	if port == nil {
		close(ch)
		return ch
	}
	go c.pump(port, ch, stopped)
	return ch
}

func (c *SerialConnection) pump(port serial.Port, ch chan []byte, stopped chan struct{}) {
	defer close(ch)
	buf := make([]byte, 4096)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case ch <- chunk:
			case <-stopped:
				return
			}
		}
		if err != nil {
			return
		}
		if n == 0 {
			select {
			case <-stopped:
				return
			default:
			}
		}
	}
}

func (c *SerialConnection) ExitCode() *int {
	c.exitMu.Lock()
	defer c.exitMu.Unlock()
	return c.exitCode
}

func (c *SerialConnection) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("Serial: %s", c.device)
}
