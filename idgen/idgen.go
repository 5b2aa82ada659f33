// Package idgen provides short random identifiers used to correlate
// per-connection log lines (streaming sessions, websocket clients).
//
// Sessions have no persistent identity — these IDs live exactly as long
// as the connection and never reach the database.
package idgen

import (
	"crypto/rand"
)

// Generator produces unique string identifiers.
type Generator func() string

// NanoID returns a Generator producing base-36 IDs of the given length.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		out := make([]byte, length)
		for i, b := range buf {
			out[i] = alphabet[int(b)%len(alphabet)]
		}
		return string(out)
	}
}

// Default is the generator used for session log correlation.
var Default = NanoID(10)

// New returns one ID from the default generator.
func New() string { return Default() }
