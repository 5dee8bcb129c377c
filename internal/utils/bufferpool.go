package utils

import (
	"github.com/valyala/bytebufferpool"
)

var (
	dataPrefix = []byte("data: ")
	eventEnd   = []byte("\n\n")
)

// eventPool backs the frames of relayed chat streams. bytebufferpool calibrates
// buffer sizes to the chunk sizes it sees.
var eventPool bytebufferpool.Pool

// FrameEvent returns a pooled buffer holding payload as one server-sent event.
// Release it with ReleaseEvent once written.
func FrameEvent(payload []byte) *bytebufferpool.ByteBuffer {
	buf := eventPool.Get()
	_, _ = buf.Write(dataPrefix)
	_, _ = buf.Write(payload)
	_, _ = buf.Write(eventEnd)
	return buf
}

// ReleaseEvent returns a buffer from FrameEvent to the pool.
func ReleaseEvent(buf *bytebufferpool.ByteBuffer) {
	eventPool.Put(buf)
}
