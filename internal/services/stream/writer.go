package stream

import (
	"bufio"

	"github.com/Egham-7/custom-endpoint-proxy/internal/utils"

	"github.com/valyala/fasthttp"
)

var doneEvent = []byte("data: [DONE]\n\n")

// ConnectionState reports whether the client is still reading.
type ConnectionState interface {
	IsConnected() bool
}

// Writer frames payloads as server-sent events.
type Writer struct {
	writer     *bufio.Writer
	connState  ConnectionState
	requestID  string
	totalBytes int64
}

func NewWriter(w *bufio.Writer, connState ConnectionState, requestID string) *Writer {
	return &Writer{writer: w, connState: connState, requestID: requestID}
}

// WriteEvent writes one "data: <payload>" event and flushes it.
func (w *Writer) WriteEvent(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}

	buf := utils.FrameEvent(payload)
	defer utils.ReleaseEvent(buf)

	return w.write(buf.B)
}

// WriteDone terminates the stream with the OpenAI [DONE] sentinel.
func (w *Writer) WriteDone() error {
	return w.write(doneEvent)
}

func (w *Writer) TotalBytes() int64 {
	return w.totalBytes
}

func (w *Writer) write(data []byte) error {
	if !w.connState.IsConnected() {
		return newDisconnectError(w.requestID)
	}

	n, err := w.writer.Write(data)
	w.totalBytes += int64(n)
	if err == nil {
		err = w.writer.Flush()
	}
	if err != nil {
		if isConnectionClosed(err) {
			return newDisconnectError(w.requestID)
		}
		return newInternalError(w.requestID, "write failed", err)
	}
	return nil
}

// FastHTTPConnectionState tracks the client of a fasthttp request.
type FastHTTPConnectionState struct {
	ctx *fasthttp.RequestCtx
}

func NewFastHTTPConnectionState(ctx *fasthttp.RequestCtx) *FastHTTPConnectionState {
	return &FastHTTPConnectionState{ctx: ctx}
}

func (c *FastHTTPConnectionState) IsConnected() bool {
	if c.ctx == nil {
		return false
	}
	select {
	case <-c.ctx.Done():
		return false
	default:
		return true
	}
}
