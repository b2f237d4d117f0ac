package wsutil

import "log/slog"

// SafeSend queues data on ch without blocking. It reports false when the
// channel is full or already closed; a send on a closed channel is recovered.
func SafeSend(ch chan []byte, data []byte) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("send on closed channel", "tag", "wsutil", "panic", r)
			sent = false
		}
	}()
	select {
	case ch <- data:
		return true
	default:
		return false
	}
}
