package artnet

import (
	"encoding/binary"
	"fmt"
)

const outputHeaderSize = 18

// OutputPacket is an ArtDmx packet carrying one universe of DMX data.
type OutputPacket struct {
	Sequence uint8
	Physical uint8
	Port     PortAddress
	// Data holds exactly Length bytes of DMX payload.
	Data []byte
}

// OpCode implements Packet.
func (p *OutputPacket) OpCode() OpCode { return OpOutput }

// Universe returns the port address as a plain universe number.
func (p *OutputPacket) Universe() int { return int(p.Port) }

func (p *OutputPacket) unmarshal(b []byte) error {
	if len(b) < outputHeaderSize {
		return fmt.Errorf("%w: ArtDmx header truncated (%d bytes)", ErrInvalidPacket, len(b))
	}

	p.Sequence = b[12]
	p.Physical = b[13]
	p.Port = PortAddress(uint16(b[15]&0x7f)<<8 | uint16(b[14]))

	length := int(binary.BigEndian.Uint16(b[16:18]))
	if length > MaxDMX {
		return fmt.Errorf("%w: ArtDmx length %d exceeds %d", ErrInvalidPacket, length, MaxDMX)
	}
	if outputHeaderSize+length > len(b) {
		return fmt.Errorf("%w: ArtDmx length %d exceeds datagram (%d data bytes)",
			ErrInvalidPacket, length, len(b)-outputHeaderSize)
	}

	// Copy: the receive buffer is reused by the listener.
	p.Data = make([]byte, length)
	copy(p.Data, b[outputHeaderSize:outputHeaderSize+length])

	return nil
}

// MarshalBinary encodes the packet. Data longer than 512 bytes is rejected.
func (p *OutputPacket) MarshalBinary() ([]byte, error) {
	if len(p.Data) > MaxDMX {
		return nil, fmt.Errorf("%w: %d data bytes", ErrInvalidPacket, len(p.Data))
	}

	b := make([]byte, outputHeaderSize+len(p.Data))
	writeHeader(b, OpOutput)
	binary.BigEndian.PutUint16(b[10:12], ProtocolVersion)
	b[12] = p.Sequence
	b[13] = p.Physical
	b[14] = p.Port.SubUni()
	b[15] = p.Port.Net()
	binary.BigEndian.PutUint16(b[16:18], uint16(len(p.Data)))
	copy(b[outputHeaderSize:], p.Data)

	return b, nil
}
