package runner

import (
	"bytes"
	"fmt"

	"github.com/dustin/go-humanize"
)

// capture buffers up to limit bytes and silently discards the rest.
// Only the exec copy goroutine writes to it; it is read after Wait returns.
type capture struct {
	buf     bytes.Buffer
	limit   int
	dropped int64
}

func newCapture(limit int) *capture {
	return &capture{limit: limit}
}

func (c *capture) Write(p []byte) (int, error) {
	remaining := c.limit - c.buf.Len()
	if remaining <= 0 {
		c.dropped += int64(len(p))
		return len(p), nil
	}
	if len(p) > remaining {
		// Keep what fits but report everything as consumed so io.Copy
		// keeps draining the pipe.
		c.buf.Write(p[:remaining])
		c.dropped += int64(len(p) - remaining)
		return len(p), nil
	}
	return c.buf.Write(p)
}

func (c *capture) truncated() bool {
	return c.dropped > 0
}

// bytes returns the captured output with a marker when data was dropped.
func (c *capture) bytes() []byte {
	out := bytes.Clone(c.buf.Bytes())
	if c.truncated() {
		out = append(out, truncationMarker(c.limit, c.dropped)...)
	}
	return out
}

func truncationMarker(limit int, dropped int64) string {
	return fmt.Sprintf("\n[output truncated at %s, %s discarded]",
		humanize.IBytes(uint64(limit)), humanize.IBytes(uint64(dropped)))
}
