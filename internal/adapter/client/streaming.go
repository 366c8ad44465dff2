package client

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/thushan/locallm/internal/core/constants"
	"github.com/thushan/locallm/internal/core/domain"
	"github.com/thushan/locallm/internal/logger"
	"github.com/thushan/locallm/pkg/pool"
)

const initialLineBufferSize = 64 * 1024

type lineBuffer struct {
	buf []byte
}

func (b *lineBuffer) Reset() {
	b.buf = b.buf[:0]
}

var lineBuffers = pool.MustNew(func() *lineBuffer {
	return &lineBuffer{buf: make([]byte, 0, initialLineBufferSize)}
})

// StreamResult summarises a finished stream
type StreamResult struct {
	Usage        *domain.Usage
	Stats        *domain.PerformanceStats
	Model        string
	Content      string
	FinishReason string
	RequestID    string
	Chunks       int
	Skipped      int
	Duration     time.Duration
}

// ParseStream reads server-sent events from r and hands every decoded chunk to fn.
// Lines without the data prefix are ignored, the [DONE] sentinel ends the stream and
// chunks that aren't valid JSON are skipped. An error from fn stops the stream and is
// returned as is. A final line without a trailing newline is still processed.
func ParseStream[T any](ctx context.Context, r io.Reader, log *logger.StyledLogger, fn func(*T) error) (skipped int, err error) {
	lb := lineBuffers.Get()
	defer lineBuffers.Put(lb)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(lb.buf, MaxStreamLineSize)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return skipped, ctx.Err()
		default:
		}

		data, ok := streamData(scanner.Bytes())
		if !ok {
			continue
		}
		if string(data) == constants.StreamDoneSentinel {
			return skipped, nil
		}

		if !gjson.ValidBytes(data) {
			skipped++
			log.Debug("Malformed stream chunk, skipping", "data", truncate(string(data), 256))
			continue
		}

		chunk := new(T)
		if uerr := json.Unmarshal(data, chunk); uerr != nil {
			skipped++
			log.Debug("Unexpected stream chunk shape, skipping", "error", uerr)
			continue
		}

		if cerr := fn(chunk); cerr != nil {
			return skipped, cerr
		}
	}

	if serr := scanner.Err(); serr != nil {
		return skipped, serr
	}
	return skipped, nil
}

// streamData returns the payload of a data line, tolerating a missing space after the colon
func streamData(line []byte) ([]byte, bool) {
	line = bytes.TrimRight(line, "\r")
	prefix := strings.TrimSpace(constants.StreamDataPrefix)
	if !bytes.HasPrefix(line, []byte(prefix)) {
		return nil, false
	}
	data := bytes.TrimSpace(line[len(prefix):])
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}

func (c *Client) consumeStream(ctx context.Context, resp *response, parse func(context.Context, io.Reader) (int, error)) error {
	_, err := parse(ctx, resp.body)
	if err == nil {
		return nil
	}
	if _, ok := domain.AsLLMError(err); ok {
		return err
	}
	if ctxErr, ok := contextError(ctx, err); ok {
		return ctxErr
	}
	if errors.Is(err, bufio.ErrTooLong) {
		return domain.NewRuntimeError(domain.CodeStreamError, "stream line exceeds maximum size", err)
	}
	return classifyBodyError(ctx, err)
}
