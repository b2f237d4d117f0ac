package wsutil

import "testing"

func TestSafeSend(t *testing.T) {
	ch := make(chan []byte, 1)
	if !SafeSend(ch, []byte("a")) {
		t.Fatal("expected first send to succeed")
	}
	if SafeSend(ch, []byte("b")) {
		t.Error("expected send on full channel to be dropped")
	}
	<-ch
	close(ch)
	if SafeSend(ch, []byte("c")) {
		t.Error("expected send on closed channel to report false")
	}
}
