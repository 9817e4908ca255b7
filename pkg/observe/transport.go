package observe

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FrameWriter implements the "simple framed transport": each record is a
// one-byte header tag, a 4-byte big-endian body length, then the JSON body
// itself, mirroring the big-endian length-prefixed style pkg/classfile
// already uses to decode the class file format.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter wraps w for framed record delivery.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame writes one record: header byte ('D' for DATA, 'E' for EOF),
// then the 4-byte big-endian length of body, then body itself.
func (fw *FrameWriter) WriteFrame(header Header, body []byte) error {
	tag, err := headerTag(header)
	if err != nil {
		return err
	}
	if _, err := fw.w.Write([]byte{tag}); err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := fw.w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = fw.w.Write(body)
	return err
}

// ReadFrame reads one record written by WriteFrame, the inverse operation a
// consuming tool uses to decode the stream.
func ReadFrame(r io.Reader) (Header, []byte, error) {
	var tagBuf [1]byte
	if _, err := io.ReadFull(r, tagBuf[:]); err != nil {
		return "", nil, err
	}
	header, err := tagHeader(tagBuf[0])
	if err != nil {
		return "", nil, err
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", nil, err
	}
	body := make([]byte, binary.BigEndian.Uint32(lenBuf[:]))
	if _, err := io.ReadFull(r, body); err != nil {
		return "", nil, err
	}
	return header, body, nil
}

func headerTag(h Header) (byte, error) {
	switch h {
	case HeaderData:
		return 'D', nil
	case HeaderEOF:
		return 'E', nil
	default:
		return 0, fmt.Errorf("observe: unknown header %q", h)
	}
}

func tagHeader(tag byte) (Header, error) {
	switch tag {
	case 'D':
		return HeaderData, nil
	case 'E':
		return HeaderEOF, nil
	default:
		return "", fmt.Errorf("observe: unknown frame tag %q", tag)
	}
}

// ArraySink writes records as a single newline-free JSON array to a file:
// "[" on the first record, "," before every subsequent one, "]" on Close.
// EOF records are not written to the array (EOF only terminates the framed
// transport); the array simply ends when the run ends.
type ArraySink struct {
	w       io.Writer
	started bool
}

// NewArraySink wraps w for JSON-array-file delivery.
func NewArraySink(w io.Writer) *ArraySink {
	return &ArraySink{w: w}
}

// WriteRecord appends one DATA record's JSON body to the array. EOF records
// are dropped; the array has no terminator element, only Close's closing
// bracket.
func (s *ArraySink) WriteRecord(header Header, body []byte) error {
	if header != HeaderData {
		return nil
	}
	if !s.started {
		if _, err := io.WriteString(s.w, "["); err != nil {
			return err
		}
		s.started = true
	} else {
		if _, err := io.WriteString(s.w, ","); err != nil {
			return err
		}
	}
	_, err := s.w.Write(body)
	return err
}

// Close writes the closing bracket, opening an empty array first if no
// record was ever written.
func (s *ArraySink) Close() error {
	if !s.started {
		if _, err := io.WriteString(s.w, "["); err != nil {
			return err
		}
	}
	_, err := io.WriteString(s.w, "]")
	return err
}
