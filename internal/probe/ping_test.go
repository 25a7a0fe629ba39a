package probe

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"
)

// fakeStatusServer accepts one connection, performs the status
// handshake, and answers with the given JSON document.
func fakeStatusServer(t *testing.T, statusJSON string) (host string, port int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		// Consume handshake and status request frames.
		for i := 0; i < 2; i++ {
			length, err := readVarIntConn(conn)
			if err != nil {
				return
			}
			if _, err := io.CopyN(io.Discard, conn, int64(length)); err != nil {
				return
			}
		}

		var payload bytes.Buffer
		writeVarInt(&payload, 0x00)
		writeString(&payload, statusJSON)
		_ = writeFrame(conn, payload.Bytes())
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func TestPingProber_Probe(t *testing.T) {
	doc := `{"players":{"online":3,"max":20,"sample":[{"name":"alice"},{"name":"bob"}]},"version":{"name":"1.21.4"}}`
	host, port := fakeStatusServer(t, doc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := NewPingProber(host, port).Probe(ctx)
	if err != nil {
		t.Fatalf("Probe() error: %v", err)
	}
	if !status.Online {
		t.Error("expected Online=true")
	}
	if status.Players != 3 || status.MaxPlayers != 20 {
		t.Errorf("players = %d/%d, want 3/20", status.Players, status.MaxPlayers)
	}
	if len(status.PlayerNames) != 2 || status.PlayerNames[0] != "alice" {
		t.Errorf("unexpected player names: %v", status.PlayerNames)
	}
	if status.Version != "1.21.4" {
		t.Errorf("version = %q, want 1.21.4", status.Version)
	}
	if status.Latency <= 0 {
		t.Error("expected positive latency")
	}
}

func TestPingProber_Refused(t *testing.T) {
	// Grab a free port and close the listener so the dial is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := NewPingProber("127.0.0.1", port).Probe(ctx); err == nil {
		t.Fatal("expected error probing closed port")
	}
}

func TestVarIntRoundTrip(t *testing.T) {
	values := []int32{0, 1, 127, 128, 255, 300, 25565, 2147483647, -1}
	for _, v := range values {
		var buf bytes.Buffer
		writeVarInt(&buf, v)
		got, err := readVarInt(&buf)
		if err != nil {
			t.Fatalf("readVarInt(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d = %d", v, got)
		}
	}
}

func TestHandshakePortEncoding(t *testing.T) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint16(25565)); err != nil {
		t.Fatal(err)
	}
	if got := buf.Bytes(); got[0] != 0x63 || got[1] != 0xDD {
		t.Errorf("port bytes = %x, want 63dd", got)
	}
}
