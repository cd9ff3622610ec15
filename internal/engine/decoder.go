package engine

import (
	"bufio"
	"io"
)

// maxLineBytes bounds a single stream line. Assistant chunks from the engine
// stay well under this; anything larger is treated as unparseable rather than
// aborting the whole stream.
const maxLineBytes = 1 << 20

// Decoder turns the engine's raw stdout into an ordered sequence of Events.
// It buffers partial reads until a full line is available and decodes each
// non-blank line independently. It performs no I/O beyond reading r.
type Decoder struct {
	scanner *bufio.Scanner
}

func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &Decoder{scanner: sc}
}

// Next returns the next decoded event. Blank lines are skipped. It returns
// io.EOF once the stream is exhausted; any other error means the underlying
// reader failed.
func (d *Decoder) Next() (Event, error) {
	for d.scanner.Scan() {
		line := d.scanner.Text()
		if isBlank(line) {
			continue
		}
		return DecodeLine(line), nil
	}
	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

func isBlank(line string) bool {
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case ' ', '\t', '\r', '\n':
		default:
			return false
		}
	}
	return true
}
