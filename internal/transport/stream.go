package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// streamFrame is one newline-delimited `data: {...}` payload.
type streamFrame struct {
	Token string `json:"token"`
	Done  bool   `json:"done"`
}

// sseStream decodes `data: {token, done}` frames from a response body.
// Malformed frames are logged and skipped; a done frame or connection close
// ends the stream.
type sseStream struct {
	body      io.ReadCloser
	reader    *bufio.Reader
	cancel    context.CancelFunc
	log       *logrus.Logger
	done      bool
	closeOnce sync.Once
}

func newSSEStream(body io.ReadCloser, cancel context.CancelFunc, log *logrus.Logger) *sseStream {
	return &sseStream{
		body:   body,
		reader: bufio.NewReader(body),
		cancel: cancel,
		log:    log,
	}
}

func (s *sseStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}

	for {
		line, err := s.reader.ReadString('\n')

		if token, ok, ended := s.handleLine(line); ended {
			s.finish()
			return "", io.EOF
		} else if ok {
			return token, nil
		}

		if err == io.EOF {
			s.finish()
			return "", io.EOF
		}
		if err != nil {
			s.Close()
			return "", err
		}
	}
}

// handleLine parses one frame. It reports the extracted token (if any) and
// whether the frame signalled end of stream.
func (s *sseStream) handleLine(line string) (token string, ok bool, ended bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || !strings.HasPrefix(trimmed, "data:") {
		return "", false, false
	}

	data := strings.TrimSpace(strings.TrimPrefix(trimmed, "data:"))
	if data == "" {
		return "", false, false
	}

	var frame streamFrame
	if err := json.Unmarshal([]byte(data), &frame); err != nil {
		s.log.WithError(err).Warn("skipping malformed stream frame")
		return "", false, false
	}

	if frame.Done {
		return "", false, true
	}
	if frame.Token != "" {
		return frame.Token, true, false
	}
	return "", false, false
}

func (s *sseStream) finish() {
	s.done = true
	s.Close()
}

func (s *sseStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.done = true
		if s.cancel != nil {
			s.cancel()
		}
		err = s.body.Close()
	})
	return err
}

// cappedStream bounds the cumulative rune count a stream may yield, so the
// concatenated stream never exceeds the synchronous answer ceiling. The token
// that crosses the limit is cut; everything after it is dropped.
type cappedStream struct {
	inner     TokenStream
	remaining int
}

func newCappedStream(inner TokenStream, max int) TokenStream {
	if max <= 0 {
		return inner
	}
	return &cappedStream{inner: inner, remaining: max}
}

func (s *cappedStream) Recv() (string, error) {
	if s.remaining <= 0 {
		return "", io.EOF
	}

	token, err := s.inner.Recv()
	if err != nil {
		return "", err
	}

	runes := []rune(token)
	if len(runes) > s.remaining {
		runes = runes[:s.remaining]
	}
	s.remaining -= len(runes)
	return string(runes), nil
}

func (s *cappedStream) Close() error {
	return s.inner.Close()
}

// chunkStream re-chunks an already-complete answer into fixed-size slices
// delivered with a small delay, simulating incremental arrival.
type chunkStream struct {
	chunks []string
	idx    int
	delay  time.Duration
	closed bool
}

func newChunkStream(content string, size int, delay time.Duration) *chunkStream {
	if size <= 0 {
		size = 10
	}

	runes := []rune(content)
	chunks := make([]string, 0, len(runes)/size+1)
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}

	return &chunkStream{chunks: chunks, delay: delay}
}

func (s *chunkStream) Recv() (string, error) {
	if s.closed {
		return "", ErrStreamClosed
	}
	if s.idx >= len(s.chunks) {
		return "", io.EOF
	}
	if s.idx > 0 && s.delay > 0 {
		time.Sleep(s.delay)
	}
	chunk := s.chunks[s.idx]
	s.idx++
	return chunk, nil
}

func (s *chunkStream) Close() error {
	s.closed = true
	return nil
}
