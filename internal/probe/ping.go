package probe

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

// statusProtocolVersion is the wire protocol version sent in the
// handshake. -1 asks the server to answer regardless of its own version.
const statusProtocolVersion = -1

// maxStatusPayload bounds the JSON status document. Modded servers with
// long mod lists produce large payloads; 1 MiB is far above anything
// observed in practice.
const maxStatusPayload = 1 << 20

// PingProber queries the server list ping endpoint on the game port:
// a VarInt-framed TCP handshake followed by a JSON status exchange.
type PingProber struct {
	Host string
	Port int
}

// NewPingProber creates a prober for the given game host and port.
func NewPingProber(host string, port int) *PingProber {
	return &PingProber{Host: host, Port: port}
}

// Probe performs the status handshake. The context deadline covers the
// dial and the full exchange.
func (p *PingProber) Probe(ctx context.Context) (*Status, error) {
	start := time.Now()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(p.Host, strconv.Itoa(p.Port)))
	if err != nil {
		return nil, fmt.Errorf("probe: dial: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	// Handshake: packet id 0x00, protocol version, server address,
	// server port, next state 1 (status).
	var handshake bytes.Buffer
	writeVarInt(&handshake, 0x00)
	writeVarInt(&handshake, statusProtocolVersion)
	writeString(&handshake, p.Host)
	_ = binary.Write(&handshake, binary.BigEndian, uint16(p.Port))
	writeVarInt(&handshake, 1)
	if err := writeFrame(conn, handshake.Bytes()); err != nil {
		return nil, fmt.Errorf("probe: handshake: %w", err)
	}

	// Status request: empty packet id 0x00.
	var request bytes.Buffer
	writeVarInt(&request, 0x00)
	if err := writeFrame(conn, request.Bytes()); err != nil {
		return nil, fmt.Errorf("probe: status request: %w", err)
	}

	payload, err := readFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("probe: status response: %w", err)
	}

	reader := bytes.NewReader(payload)
	packetID, err := readVarInt(reader)
	if err != nil || packetID != 0x00 {
		return nil, fmt.Errorf("probe: unexpected status packet id %d", packetID)
	}
	docLen, err := readVarInt(reader)
	if err != nil || docLen < 0 || int(docLen) > reader.Len() {
		return nil, fmt.Errorf("probe: bad status document length")
	}

	doc := make([]byte, docLen)
	if _, err := io.ReadFull(reader, doc); err != nil {
		return nil, fmt.Errorf("probe: short status document: %w", err)
	}

	var parsed struct {
		Players struct {
			Online int `json:"online"`
			Max    int `json:"max"`
			Sample []struct {
				Name string `json:"name"`
			} `json:"sample"`
		} `json:"players"`
		Version struct {
			Name string `json:"name"`
		} `json:"version"`
	}
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return nil, fmt.Errorf("probe: decode status: %w", err)
	}

	status := &Status{
		Online:     true,
		Players:    parsed.Players.Online,
		MaxPlayers: parsed.Players.Max,
		Version:    parsed.Version.Name,
		Latency:    time.Since(start),
	}
	for _, s := range parsed.Players.Sample {
		status.PlayerNames = append(status.PlayerNames, s.Name)
	}
	return status, nil
}

// writeFrame sends a VarInt length prefix followed by the payload.
func writeFrame(conn net.Conn, payload []byte) error {
	var frame bytes.Buffer
	writeVarInt(&frame, int32(len(payload)))
	frame.Write(payload)
	_, err := conn.Write(frame.Bytes())
	return err
}

// readFrame reads one VarInt length-prefixed frame.
func readFrame(conn net.Conn) ([]byte, error) {
	length, err := readVarIntConn(conn)
	if err != nil {
		return nil, err
	}
	if length <= 0 || length > maxStatusPayload {
		return nil, fmt.Errorf("frame length %d out of range", length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func writeVarInt(buf *bytes.Buffer, value int32) {
	v := uint32(value)
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

func writeString(buf *bytes.Buffer, s string) {
	writeVarInt(buf, int32(len(s)))
	buf.WriteString(s)
}

func readVarInt(r io.ByteReader) (int32, error) {
	var result uint32
	for i := 0; i < 5; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return int32(result), nil
		}
	}
	return 0, fmt.Errorf("varint too long")
}

func readVarIntConn(conn net.Conn) (int32, error) {
	var result uint32
	buf := make([]byte, 1)
	for i := 0; i < 5; i++ {
		if _, err := io.ReadFull(conn, buf); err != nil {
			return 0, err
		}
		result |= uint32(buf[0]&0x7F) << (7 * i)
		if buf[0]&0x80 == 0 {
			return int32(result), nil
		}
	}
	return 0, fmt.Errorf("varint too long")
}
