package stream

import (
	"bufio"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/openai/openai-go/v2"
	"github.com/valyala/fasthttp"
)

// ChunkStream is the subset of an openai-go SSE stream used for relaying.
type ChunkStream interface {
	Next() bool
	Current() openai.ChatCompletionChunk
	Err() error
	Close() error
}

// Relay copies chunks from s to w, waiting rate between chunks, and finishes
// with [DONE]. Provider failures are reported to the client as an error event.
func Relay(w *Writer, s ChunkStream, rate time.Duration) error {
	defer s.Close()

	first := true
	for s.Next() {
		if !first && rate > 0 {
			time.Sleep(rate)
		}
		first = false

		chunk := s.Current()
		payload := []byte(chunk.RawJSON())
		if len(payload) == 0 {
			var err error
			if payload, err = json.Marshal(chunk); err != nil {
				return newInternalError(w.requestID, "marshal chunk", err)
			}
		}
		if err := w.WriteEvent(payload); err != nil {
			return err
		}
	}

	if err := s.Err(); err != nil {
		payload, _ := json.Marshal(fiber.Map{
			"error": fiber.Map{"message": err.Error(), "type": "provider"},
		})
		if writeErr := w.WriteEvent(payload); writeErr != nil {
			return writeErr
		}
		return newProviderError(w.requestID, err)
	}

	return w.WriteDone()
}

// SetHeaders marks the response as an event stream.
func SetHeaders(c *fiber.Ctx) {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")
	c.Set("X-Accel-Buffering", "no")
}

// HandleChat streams s to the client of c as server-sent events.
func HandleChat(c *fiber.Ctx, s ChunkStream, requestID string, rate time.Duration) error {
	SetHeaders(c)
	fasthttpCtx := c.Context()

	fasthttpCtx.SetBodyStreamWriter(fasthttp.StreamWriter(func(bw *bufio.Writer) {
		start := time.Now()
		w := NewWriter(bw, NewFastHTTPConnectionState(fasthttpCtx), requestID)

		if err := Relay(w, s, rate); err != nil {
			if IsExpected(err) {
				fiberlog.Infof("[%s] Stream ended: %v", requestID, err)
			} else {
				fiberlog.Errorf("[%s] Stream error: %v", requestID, err)
			}
			return
		}
		fiberlog.Debugf("[%s] Stream finished, %d bytes in %s", requestID, w.TotalBytes(), time.Since(start))
	}))

	return nil
}
