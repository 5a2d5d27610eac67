package session

import "bytes"

// screenClearSequence is the ANSI erase-screen sequence; shell init
// output commonly emits a cursor-home sequence immediately before it.
var screenClearSequence = []byte("\x1b[2J")

// containsScreenClear reports whether buf holds the screen-clear
// sequence anywhere in it.
func containsScreenClear(buf []byte) bool {
	return bytes.Contains(buf, screenClearSequence)
}
