package executor

import (
	"bytes"
	"io"
	"strings"
)

// Mask is the placeholder substituted for registered secret values.
const Mask = "********"

// maskString replaces every occurrence of each mask value in s.
func maskString(s string, masks []string) string {
	for _, m := range masks {
		if m == "" {
			continue
		}
		s = strings.ReplaceAll(s, m, Mask)
	}
	return s
}

// maskWriter masks secret values in a stream. Output is buffered per line
// so a secret split across two Write calls within one line is still
// caught; Flush emits any trailing partial line.
type maskWriter struct {
	w     io.Writer
	masks []string
	buf   bytes.Buffer
}

func newMaskWriter(w io.Writer, masks []string) *maskWriter {
	return &maskWriter{w: w, masks: masks}
}

// Write implements io.Writer. It reports the full input length as written
// even though delivery of the final partial line is deferred to Flush.
func (m *maskWriter) Write(p []byte) (int, error) {
	m.buf.Write(p)

	for {
		line, err := m.buf.ReadString('\n')
		if err != nil {
			// Partial line: keep it buffered for the next Write or Flush.
			m.buf.Reset()
			m.buf.WriteString(line)
			break
		}
		if _, werr := io.WriteString(m.w, maskString(line, m.masks)); werr != nil {
			return len(p), werr
		}
	}

	return len(p), nil
}

// Flush writes any buffered partial line, masked.
func (m *maskWriter) Flush() {
	if m.buf.Len() == 0 {
		return
	}
	io.WriteString(m.w, maskString(m.buf.String(), m.masks)) //nolint:errcheck // best effort on final drain
	m.buf.Reset()
}
