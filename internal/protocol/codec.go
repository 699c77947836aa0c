package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultMaxFrameSize caps one line-delimited frame, newline excluded.
const DefaultMaxFrameSize = 8192

// Encode renders m for the wire. Options containing a bracket or a line break
// are rejected since they cannot be framed.
func Encode(m *Message) (string, error) {
	if !m.action.Valid() {
		return "", fmt.Errorf("encode: unregistered action %s", m.action)
	}
	for i, opt := range m.options {
		if strings.ContainsAny(opt, "<>\r\n") {
			return "", fmt.Errorf("encode option %d: %w: %q", i, ErrReservedCharacter, opt)
		}
	}
	return m.String(), nil
}

// Decode parses one frame of the form <code><opt1>...<optN>. Text outside
// brackets is ignored.
func Decode(frame string) (*Message, error) {
	fields, err := splitFrame(frame)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, malformed("no fields found")
	}
	action, err := LookupAction(fields[0])
	if err != nil {
		return nil, malformedCause("invalid action code", err)
	}
	return &Message{action: action, options: fields[1:]}, nil
}

// DecodeBuffer decodes a frame read into a fixed-size buffer, where the content
// ends at the first NUL byte. A buffer with no NUL left was filled completely,
// so the frame did not fit.
func DecodeBuffer(buf []byte) (*Message, error) {
	n := bytes.IndexByte(buf, 0)
	if n < 0 {
		return nil, malformed("message too long")
	}
	return Decode(string(buf[:n]))
}

func splitFrame(frame string) ([]string, error) {
	var (
		fields []string
		field  strings.Builder
		inside bool
	)
	for i := 0; i < len(frame); i++ {
		switch c := frame[i]; c {
		case fieldOpen:
			if inside {
				return nil, malformed(fmt.Sprintf("unexpected opening bracket at offset %d inside an open field", i))
			}
			inside = true
			field.Reset()
		case fieldClose:
			if !inside {
				return nil, malformed(fmt.Sprintf("unexpected closing bracket at offset %d with no open field", i))
			}
			inside = false
			fields = append(fields, field.String())
		default:
			if inside {
				field.WriteByte(c)
			}
		}
	}
	if inside {
		return nil, malformed("truncated message: last field is not closed")
	}
	return fields, nil
}

// AssertActionIn fails unless the message action is one of allowed.
func (m *Message) AssertActionIn(allowed ...ActionCode) error {
	for _, a := range allowed {
		if a == m.action {
			return nil
		}
	}
	return malformed(fmt.Sprintf("action %s not allowed here", m.action))
}

// AssertOptionCount fails unless the message carries exactly n options.
func (m *Message) AssertOptionCount(n int) error {
	if len(m.options) != n {
		return malformed(fmt.Sprintf("number of options not valid (expected %d but have %d)", n, len(m.options)))
	}
	return nil
}

// FrameReader reads newline-delimited frames with a size cap.
type FrameReader struct {
	r   *bufio.Reader
	max int
}

func NewFrameReader(r io.Reader, maxFrameSize int) *FrameReader {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &FrameReader{r: bufio.NewReader(r), max: maxFrameSize}
}

// ReadFrame returns the next line without its terminator. An over-long line is
// consumed up to its newline and reported as a MalformedError, leaving the
// reader positioned on the next frame. Any other error comes from the
// underlying reader.
func (f *FrameReader) ReadFrame() (string, error) {
	var (
		line    []byte
		tooLong bool
	)
	for {
		chunk, err := f.r.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > f.max+1 {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return "", err
	}
	if tooLong {
		return "", malformed(fmt.Sprintf("message too long (limit %d bytes)", f.max))
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return string(line), nil
}

// ReadMessage reads and decodes the next frame.
func (f *FrameReader) ReadMessage() (*Message, error) {
	frame, err := f.ReadFrame()
	if err != nil {
		return nil, err
	}
	return Decode(frame)
}

// WriteMessage encodes m and writes it followed by a newline.
func WriteMessage(w io.Writer, m *Message) error {
	wire, err := Encode(m)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, wire+"\n"); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}
