package runner

import (
	"bytes"
	"io"
)

// cappedStream reads one stdio stream incrementally and keeps at most max
// bytes. Bytes past the cap are counted and discarded, never buffered, and
// the cap channel is signalled once so the watcher can start the grace timer.
// A single goroutine writes; results are read only after that goroutine ends.
type cappedStream struct {
	max   int64
	buf   bytes.Buffer
	total int64
	fired bool
}

func newCappedStream(max int64) *cappedStream {
	return &cappedStream{max: max}
}

func (c *cappedStream) consume(r io.Reader, capFired chan<- struct{}) {
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			if c.total < c.max {
				keep := int64(n)
				if c.total+keep > c.max {
					keep = c.max - c.total
				}
				c.buf.Write(chunk[:keep])
			}
			c.total += int64(n)
			if c.total > c.max && !c.fired {
				c.fired = true
				select {
				case capFired <- struct{}{}:
				default:
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// Bytes returns the captured output, truncated to the cap.
func (c *cappedStream) Bytes() []byte { return c.buf.Bytes() }

// Truncated reports whether output beyond the cap was discarded.
func (c *cappedStream) Truncated() bool { return c.total > c.max }
