package primitives

import "crypto/rand"

// rngReader returns the source of randomness for ECIES ephemeral keys,
// a reader over crypto/rand.
func rngReader() *randReader { return &randReader{} }

type randReader struct{}

func (randReader) Read(p []byte) (int, error) { return rand.Read(p) }
