package stream

import (
	"bufio"
	"io"
	"strings"
)

// Frame is one logical payload read from a streaming response body.
type Frame struct {
	// Event is the SSE "event:" field, empty for bare JSON lines.
	Event string
	// ID is the SSE "id:" field, if any.
	ID   string
	Data string
}

// Scanner splits a streaming response body into frames. It accepts Server-Sent Events framing
// (data lines terminated by a blank line) and bare newline-delimited JSON objects, mixed freely.
// Reads go through a buffered reader, so a payload split across network chunks is reassembled
// before it is returned.
type Scanner struct {
	reader  *bufio.Reader
	current Frame
	err     error
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Next advances to the next frame. It returns false at EOF or on a read error; call Err to tell
// them apart.
func (s *Scanner) Next() bool {
	if s.err != nil {
		return false
	}
	s.current = Frame{}

	var (
		dataLines []string
		eventType string
		eventID   string
		hasData   bool
	)
	emit := func() {
		s.current = Frame{Event: eventType, ID: eventID, Data: strings.Join(dataLines, "\n")}
	}

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				s.err = io.EOF
				if hasData {
					emit()
					return true
				}
				return false
			}
			s.err = err
			return false
		}
		atEOF := err == io.EOF
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if hasData {
				emit()
				return true
			}
			eventType, eventID = "", ""
		case !hasData && strings.HasPrefix(strings.TrimSpace(line), "{"):
			s.current = Frame{Data: strings.TrimSpace(line)}
			if atEOF {
				s.err = io.EOF
			}
			return true
		case strings.HasPrefix(line, ":"):
		default:
			field, value, ok := strings.Cut(line, ":")
			if ok {
				value = strings.TrimPrefix(value, " ")
			} else {
				field, value = line, ""
			}
			switch field {
			case "data":
				dataLines = append(dataLines, value)
				hasData = true
			case "event":
				eventType = value
			case "id":
				eventID = value
			}
		}

		if atEOF {
			s.err = io.EOF
			if hasData {
				emit()
				return true
			}
			return false
		}
	}
}

func (s *Scanner) Frame() Frame {
	return s.current
}

// Err returns the read error that stopped the scanner, or nil after a clean EOF.
func (s *Scanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
