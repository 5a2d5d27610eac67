package sshtransport

import (
	"bytes"
	"encoding/pem"
)

func pemEncode(blockType string, der []byte) []byte {
	var buf bytes.Buffer
	pem.Encode(&buf, &pem.Block{Type: blockType, Bytes: der})
	return buf.Bytes()
}
