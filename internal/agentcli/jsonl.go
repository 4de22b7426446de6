package agentcli

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"pkt.systems/chimerax/schema"
)

// decodeFunc turns one JSONL line into a normalized event. The second
// return value is false when the line is valid but carries nothing the
// workbench renders, such as partial message deltas.
type decodeFunc func(line []byte) (schema.ExecEvent, bool, error)

type jsonlStream struct {
	reader *bufio.Reader
	decode decodeFunc
	closed bool
}

type jsonlDecodeError struct {
	line []byte
	err  error
}

func (e *jsonlDecodeError) Error() string {
	if e == nil || e.err == nil {
		return "jsonl decode error"
	}
	return e.err.Error()
}

func (e *jsonlDecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

func (e *jsonlDecodeError) Line() []byte {
	if e == nil {
		return nil
	}
	return e.line
}

func newJSONLStream(r io.Reader, decode decodeFunc) *jsonlStream {
	return &jsonlStream{reader: bufio.NewReader(r), decode: decode}
}

func (s *jsonlStream) Next(ctx context.Context) (schema.ExecEvent, error) {
	for {
		if ctx.Err() != nil {
			return schema.ExecEvent{}, ctx.Err()
		}
		line, err := s.reader.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			return schema.ExecEvent{}, err
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if err != nil {
				return schema.ExecEvent{}, err
			}
			continue
		}
		event, ok, decodeErr := s.decode(line)
		if decodeErr != nil {
			return schema.ExecEvent{}, &jsonlDecodeError{line: append([]byte(nil), line...), err: decodeErr}
		}
		if !ok {
			if err != nil {
				return schema.ExecEvent{}, err
			}
			continue
		}
		return event, nil
	}
}

func (s *jsonlStream) Close() error {
	s.closed = true
	return nil
}
