package session

import "testing"

func TestOutputCoalescerAppendAndFlushPreservesOrder(t *testing.T) {
	c := NewOutputCoalescer(1024)
	c.Append([]byte("abc"))
	c.Append([]byte("def"))
	if got := string(c.Flush()); got != "abcdef" {
		t.Errorf("Flush() = %q, want abcdef", got)
	}
	if c.Len() != 0 {
		t.Errorf("Len() after Flush() = %d, want 0", c.Len())
	}
}

func TestOutputCoalescerBelowCapacity(t *testing.T) {
	c := NewOutputCoalescer(4)
	if !c.BelowCapacity() {
		t.Fatal("empty coalescer should be below capacity")
	}
	c.Append([]byte("abcd"))
	if c.BelowCapacity() {
		t.Fatal("coalescer at capacity should report not below capacity")
	}
}

func TestOutputCoalescerTenOneKiBChunksJoinInOrder(t *testing.T) {
	c := NewOutputCoalescer(32 * 1024)
	var want []byte
	for i := 0; i < 10; i++ {
		chunk := make([]byte, 1024)
		for j := range chunk {
			chunk[j] = byte('A' + i)
		}
		c.Append(chunk)
		want = append(want, chunk...)
	}
	if got := c.Flush(); string(got) != string(want) {
		t.Error("coalesced bytes do not equal the in-order join of the ten chunks")
	}
}
