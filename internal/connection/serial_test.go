package connection

import (
	"testing"

	"go.bug.st/serial"

	"github.com/armaxri/termiHub-sub001/internal/config"
)

func TestSerialParityLookupKnownValues(t *testing.T) {
	cases := map[config.Parity]serial.Parity{
		config.ParityNone: serial.NoParity,
		config.ParityOdd:  serial.OddParity,
		config.ParityEven: serial.EvenParity,
	}
	for in, want := range cases {
		if got, ok := serialParity[in]; !ok || got != want {
			t.Errorf("serialParity[%v] = %v, %v; want %v, true", in, got, ok, want)
		}
	}
}

func TestSerialParityLookupUnknownFallsBackToNoParity(t *testing.T) {
	if _, ok := serialParity[config.Parity("bogus")]; ok {
		t.Fatal("expected unknown parity to be absent from map, Connect() applies the no-parity fallback")
	}
}

func TestSerialStopBitsLookupKnownValues(t *testing.T) {
	if got := serialStopBits[1]; got != serial.OneStopBit {
		t.Errorf("serialStopBits[1] = %v, want OneStopBit", got)
	}
	if got := serialStopBits[2]; got != serial.TwoStopBits {
		t.Errorf("serialStopBits[2] = %v, want TwoStopBits", got)
	}
}

func TestSerialCapabilitiesDisableResize(t *testing.T) {
	c := NewSerial()
	if c.Capabilities().Resize {
		t.Error("serial connections must not advertise resize support")
	}
}

func TestSerialTitleBeforeConnectHasEmptyDevice(t *testing.T) {
	c := &SerialConnection{}
	if got := c.Title(); got != "Serial: " {
		t.Errorf("Title() = %q, want %q", got, "Serial: ")
	}
}
