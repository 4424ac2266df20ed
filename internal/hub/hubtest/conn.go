// Package hubtest provides a recording hub.Conn for tests.
package hubtest

import (
	"encoding/json"
	"sync"
)

// Conn records every frame sent to it.
type Conn struct {
	mu     sync.Mutex
	frames [][]byte

	// Err, when set, fails every Send.
	Err error
}

func (c *Conn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.frames = append(c.frames, append([]byte(nil), payload...))
	return nil
}

// Frames returns copies of the recorded frames.
func (c *Conn) Frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}

// Messages decodes the recorded frames as JSON objects.
func (c *Conn) Messages() []map[string]any {
	var out []map[string]any
	for _, f := range c.Frames() {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// OfType returns the decoded messages whose "type" equals typ.
func (c *Conn) OfType(typ string) []map[string]any {
	var out []map[string]any
	for _, m := range c.Messages() {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}
