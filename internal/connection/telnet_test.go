package connection

import "testing"

func TestStripTelnetCommandsPassesPlainData(t *testing.T) {
	in := []byte("hello world")
	out := stripTelnetCommands(in)
	if string(out) != "hello world" {
		t.Errorf("out = %q, want %q", out, in)
	}
}

func TestStripTelnetCommandsRemovesNegotiation(t *testing.T) {
	in := append([]byte{telnetIAC, telnetDO, telnetECHO}, []byte("data")...)
	in = append(in, telnetIAC, telnetWONT, telnetSGA)
	out := stripTelnetCommands(in)
	if string(out) != "data" {
		t.Errorf("out = %q, want data", out)
	}
}

func TestStripTelnetCommandsEscapedIAC(t *testing.T) {
	in := []byte{'a', telnetIAC, telnetIAC, 'b'}
	out := stripTelnetCommands(in)
	want := []byte{'a', telnetIAC, 'b'}
	if string(out) != string(want) {
		t.Errorf("out = %v, want %v", out, want)
	}
}

func TestStripTelnetCommandsTruncatedIACAtEnd(t *testing.T) {
	in := []byte{'a', 'b', telnetIAC}
	out := stripTelnetCommands(in)
	if string(out) != "ab" {
		t.Errorf("out = %q, want ab", out)
	}
}
