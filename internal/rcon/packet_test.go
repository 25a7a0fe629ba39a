package rcon

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

func TestEncodeLayout(t *testing.T) {
	frame := Encode(7, TypeExecCommand, "list")

	// size prefix excludes itself: 4 (body) + 10 (overhead) = 14.
	if got := binary.LittleEndian.Uint32(frame[0:4]); got != 14 {
		t.Errorf("size prefix = %d, want 14", got)
	}
	if got := int32(binary.LittleEndian.Uint32(frame[4:8])); got != 7 {
		t.Errorf("id = %d, want 7", got)
	}
	if got := int32(binary.LittleEndian.Uint32(frame[8:12])); got != TypeExecCommand {
		t.Errorf("type = %d, want %d", got, TypeExecCommand)
	}
	if !bytes.Equal(frame[12:16], []byte("list")) {
		t.Errorf("body bytes = %q, want list", frame[12:16])
	}
	if frame[16] != 0 || frame[17] != 0 {
		t.Error("missing NUL terminators")
	}
	if len(frame) != 18 {
		t.Errorf("frame length = %d, want 18", len(frame))
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		id   int32
		typ  int32
		body string
	}{
		{"empty body", 1, TypeAuth, ""},
		{"simple command", 42, TypeExecCommand, "say hello"},
		{"auth failure id", -1, TypeAuthResponse, ""},
		{"utf8 body", 9, TypeResponseValue, "§aThere are 0/20 players online"},
		{"long body", 100, TypeResponseValue, strings.Repeat("x", 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt, err := Decode(Encode(tt.id, tt.typ, tt.body))
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if pkt.ID != tt.id {
				t.Errorf("ID = %d, want %d", pkt.ID, tt.id)
			}
			if pkt.Type != tt.typ {
				t.Errorf("Type = %d, want %d", pkt.Type, tt.typ)
			}
			if pkt.Body != tt.body {
				t.Errorf("Body = %q, want %q", pkt.Body, tt.body)
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated header", []byte{0x0a, 0x00, 0x00, 0x00, 0x01, 0x00}},
		{"eleven bytes", make([]byte, 11)},
		{"size exceeds frame", append(binary.LittleEndian.AppendUint32(nil, 100), make([]byte, 8)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data); !errors.Is(err, ErrMalformedPacket) {
				t.Errorf("Decode() error = %v, want ErrMalformedPacket", err)
			}
		})
	}
}
