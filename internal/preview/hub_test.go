package preview

import (
	"encoding/binary"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Julusian/rpi-ws281x-artnet/internal/framestore"
	"github.com/Julusian/rpi-ws281x-artnet/internal/pixel"
)

func frame(seq uint64) framestore.Frame {
	return framestore.Frame{
		Seq:        seq,
		Brightness: 64,
		Pixels:     []pixel.Color{pixel.RGB(10, 20, 30), pixel.RGB(40, 50, 60)},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestEncode(t *testing.T) {
	msg := Encode(frame(0x0102030405060708))

	if len(msg) != HeaderSize+6 {
		t.Fatalf("len = %d, want %d", len(msg), HeaderSize+6)
	}
	if seq := binary.BigEndian.Uint64(msg[0:8]); seq != 0x0102030405060708 {
		t.Errorf("seq = %x", seq)
	}
	if msg[8] != 64 {
		t.Errorf("brightness = %d, want 64", msg[8])
	}
	if string(msg[9:]) != string([]byte{10, 20, 30, 40, 50, 60}) {
		t.Errorf("pixels = %v", msg[9:])
	}
}

func TestSlotLatestWins(t *testing.T) {
	s := newSlot()

	s.put(1, []byte{1})
	s.put(2, []byte{2})
	s.put(3, []byte{3})

	msg, ok := s.next()
	if !ok || msg[0] != 3 {
		t.Fatalf("next() = %v/%v, want [3]/true", msg, ok)
	}
	if d := s.dropped(); d != 2 {
		t.Errorf("dropped = %d, want 2", d)
	}

	done := make(chan bool)
	go func() {
		_, ok := s.next()
		done <- ok
	}()

	s.close()
	select {
	case ok := <-done:
		if ok {
			t.Error("next() returned ok after close")
		}
	case <-time.After(time.Second):
		t.Fatal("close did not wake the consumer")
	}

	s.put(4, []byte{4}) // no-op after close
}

func TestHubStreamsFrames(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitFor(t, "client registered", func() bool { return hub.Stats().Clients == 1 })

	hub.Publish(frame(5))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Errorf("message type = %d, want binary", kind)
	}
	if seq := binary.BigEndian.Uint64(msg[0:8]); seq != 5 {
		t.Errorf("seq = %d, want 5", seq)
	}

	if st := hub.Stats(); st.Published != 1 {
		t.Errorf("Published = %d, want 1", st.Published)
	}

	conn.Close()
	waitFor(t, "client unregistered", func() bool { return hub.Stats().Clients == 0 })
}

func TestPublishWithoutClients(t *testing.T) {
	hub := NewHub(nil)
	hub.Publish(frame(1))
	if st := hub.Stats(); st.Published != 0 || st.Clients != 0 {
		t.Errorf("Stats = %+v, want zero", st)
	}
}
