package rcon

import (
	"encoding/binary"
	"fmt"
)

// Packet types defined by the Source RCON protocol. AuthResponse shares
// the value 2 with ExecCommand; direction disambiguates them.
const (
	TypeResponseValue int32 = 0
	TypeExecCommand   int32 = 2
	TypeAuthResponse  int32 = 2
	TypeAuth          int32 = 3
)

// packetOverhead is id (4) + type (4) + the two NUL terminators. The
// 4-byte size prefix counts this overhead plus the body, but not itself.
const packetOverhead = 10

// maxPacketSize bounds a single frame. The protocol caps bodies at 4096
// bytes; anything larger is treated as stream corruption.
const maxPacketSize = 4096 + packetOverhead

// Packet is one framed RCON message.
type Packet struct {
	ID   int32
	Type int32
	Body string
}

// Encode frames a packet: little-endian size, id, type, UTF-8 body and
// two trailing NUL bytes.
func Encode(id, packetType int32, body string) []byte {
	bodyBytes := []byte(body)
	size := len(bodyBytes) + packetOverhead

	buf := make([]byte, 0, size+4)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(size))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(id))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(packetType))
	buf = append(buf, bodyBytes...)
	buf = append(buf, 0x00, 0x00)

	return buf
}

// Decode parses a complete frame, size prefix included. Frames shorter
// than size+id+type fail with ErrMalformedPacket.
func Decode(data []byte) (Packet, error) {
	if len(data) < 12 {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrMalformedPacket, len(data))
	}

	size := int32(binary.LittleEndian.Uint32(data[0:4]))
	if int(size) > len(data)-4 {
		return Packet{}, fmt.Errorf("%w: size prefix %d exceeds frame", ErrMalformedPacket, size)
	}

	pkt := Packet{
		ID:   int32(binary.LittleEndian.Uint32(data[4:8])),
		Type: int32(binary.LittleEndian.Uint32(data[8:12])),
	}

	// Body sits between the header and the two terminator bytes.
	end := 4 + int(size)
	if end-2 > 12 {
		pkt.Body = string(data[12 : end-2])
	}

	return pkt, nil
}
