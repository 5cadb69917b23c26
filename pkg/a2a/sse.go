package a2a

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Frame is one decoded SSE event: a name (empty when the event carried no
// "event:" line) and its accumulated data lines.
type Frame struct {
	Name string
	Data string
}

// SSEScanner accumulates lines until a blank line, then yields one Frame,
// tolerating CR/LF variations and ":"-prefixed heartbeat comments (spec §4.4,
// §9).
type SSEScanner struct {
	scanner *bufio.Scanner
	name    strings.Builder
	data    strings.Builder
	haveAny bool
}

// NewSSEScanner wraps r for line-oriented SSE decoding.
func NewSSEScanner(r io.Reader) *SSEScanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &SSEScanner{scanner: s}
}

// Next returns the next complete Frame. If the stream ends without a
// trailing blank line after data was buffered, that buffered data is
// returned as a final Frame; io.EOF is returned once nothing is buffered.
func (s *SSEScanner) Next() (Frame, error) {
	for s.scanner.Scan() {
		line := strings.TrimRight(s.scanner.Text(), "\r")

		if line == "" {
			if !s.haveAny {
				continue
			}
			frame := Frame{Name: s.name.String(), Data: s.data.String()}
			s.name.Reset()
			s.data.Reset()
			s.haveAny = false
			return frame, nil
		}

		if strings.HasPrefix(line, ":") {
			// Heartbeat/comment, ignored.
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			s.name.Reset()
			s.name.WriteString(value)
		case "data":
			if s.data.Len() > 0 {
				s.data.WriteByte('\n')
			}
			s.data.WriteString(value)
		default:
			// Unrecognized SSE field (e.g. "id", "retry"); ignored.
		}
		s.haveAny = true
	}

	if err := s.scanner.Err(); err != nil {
		return Frame{}, fmt.Errorf("read SSE stream: %w", err)
	}
	if s.haveAny {
		frame := Frame{Name: s.name.String(), Data: s.data.String()}
		s.haveAny = false
		return frame, nil
	}
	return Frame{}, io.EOF
}

// WriteFrame writes one SSE event (name + data) to w. It does not flush;
// the server's SSE response writer flushes after each frame.
func WriteFrame(w io.Writer, name string, data []byte) error {
	if name != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", name); err != nil {
			return err
		}
	}
	for _, line := range strings.Split(string(data), "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}
