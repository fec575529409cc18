// Package artnet decodes and encodes the subset of Art-Net 4 used by a
// pixel node: ArtDmx (OpOutput), ArtPoll and ArtPollReply.
//
// # Packet Header
//
// Every Art-Net datagram starts with the same 10 bytes:
//
//	┌─────────────────────────────────────────────────────────┐
//	│  ID (8 bytes) - "Art-Net\x00"                           │
//	├─────────────────────────────────────────────────────────┤
//	│  OpCode (2 bytes) - little-endian                       │
//	└─────────────────────────────────────────────────────────┘
//
// # Byte Order (Endianness)
//
// OpCode and the ArtPollReply Port field are LITTLE-ENDIAN. Everything else
// that spans two bytes (protocol version, ArtDmx length, NumPorts) is sent
// high byte first.
//
// # ArtDmx Layout
//
//	┌─────────────────────────────────────────────────────────┐
//	│  Header (10 bytes)                                      │
//	├─────────────────────────────────────────────────────────┤
//	│  ProtVerHi, ProtVerLo (2 bytes) - 14                    │
//	├─────────────────────────────────────────────────────────┤
//	│  Sequence (1 byte), Physical (1 byte)                   │
//	├─────────────────────────────────────────────────────────┤
//	│  SubUni (1 byte), Net (1 byte) - 15-bit port address    │
//	├─────────────────────────────────────────────────────────┤
//	│  Length (2 bytes) - big-endian, even, 2..512            │
//	├─────────────────────────────────────────────────────────┤
//	│  Data (Length bytes)                                    │
//	└─────────────────────────────────────────────────────────┘
//
// # Reference
//
// Art-Net 4 Protocol Release V1.4, Artistic Licence Holdings Ltd.
package artnet

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// DefaultPort is the UDP port reserved for Art-Net.
const DefaultPort = 6454

// ProtocolVersion is the Art-Net protocol revision we speak.
const ProtocolVersion = 14

// HeaderSize is the size of ID + OpCode.
const HeaderSize = 10

// MaxDMX is the largest DMX payload an ArtDmx packet can carry.
const MaxDMX = 512

// MaxPacketSize bounds any datagram we expect to read.
const MaxPacketSize = 1024

// OpCode identifies the packet type.
type OpCode uint16

// Opcodes handled by this package.
const (
	OpPoll      OpCode = 0x2000
	OpPollReply OpCode = 0x2100
	OpOutput    OpCode = 0x5000
)

func (o OpCode) String() string {
	switch o {
	case OpPoll:
		return "OpPoll"
	case OpPollReply:
		return "OpPollReply"
	case OpOutput:
		return "OpOutput"
	default:
		return fmt.Sprintf("OpCode(0x%04x)", uint16(o))
	}
}

var id = [8]byte{'A', 'r', 't', '-', 'N', 'e', 't', 0}

var (
	// ErrInvalidPacket is returned when a datagram is not well-formed Art-Net.
	ErrInvalidPacket = errors.New("invalid art-net packet")
	// ErrUnsupportedOpCode is returned for valid Art-Net packets we do not handle.
	ErrUnsupportedOpCode = errors.New("unsupported art-net opcode")
)

// Packet is a decoded Art-Net packet.
type Packet interface {
	OpCode() OpCode
}

// PortAddress is the 15-bit Art-Net universe address (Net:SubNet:Universe).
type PortAddress uint16

// Net returns the 7-bit net part.
func (p PortAddress) Net() uint8 { return uint8(p>>8) & 0x7f }

// SubUni returns the low byte (sub-net nibble + universe nibble).
func (p PortAddress) SubUni() uint8 { return uint8(p) }

// Unmarshal decodes one datagram.
//
// Errors wrap ErrInvalidPacket for malformed input and ErrUnsupportedOpCode
// for well-formed packets of other types.
func Unmarshal(b []byte) (Packet, error) {
	op, err := readHeader(b)
	if err != nil {
		return nil, err
	}

	switch op {
	case OpOutput:
		p := &OutputPacket{}
		if err := p.unmarshal(b); err != nil {
			return nil, err
		}
		return p, nil
	case OpPoll:
		p := &PollPacket{}
		if err := p.unmarshal(b); err != nil {
			return nil, err
		}
		return p, nil
	case OpPollReply:
		p := &PollReply{}
		if err := p.unmarshal(b); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOpCode, op)
	}
}

func readHeader(b []byte) (OpCode, error) {
	if len(b) < HeaderSize {
		return 0, fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidPacket, len(b))
	}
	if [8]byte(b[:8]) != id {
		return 0, fmt.Errorf("%w: bad id", ErrInvalidPacket)
	}
	return OpCode(binary.LittleEndian.Uint16(b[8:10])), nil
}

func writeHeader(b []byte, op OpCode) {
	copy(b[:8], id[:])
	binary.LittleEndian.PutUint16(b[8:10], uint16(op))
}
