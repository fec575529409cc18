package artnet

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Older controllers send ArtPoll without the DiagPriority byte.
const pollMinSize = 12

// PollPacket is an ArtPoll discovery request.
type PollPacket struct {
	Flags        uint8
	DiagPriority uint8
}

// OpCode implements Packet.
func (p *PollPacket) OpCode() OpCode { return OpPoll }

func (p *PollPacket) unmarshal(b []byte) error {
	if len(b) < pollMinSize {
		return fmt.Errorf("%w: ArtPoll truncated (%d bytes)", ErrInvalidPacket, len(b))
	}
	if len(b) > 12 {
		p.Flags = b[12]
	}
	if len(b) > 13 {
		p.DiagPriority = b[13]
	}
	return nil
}

// MarshalBinary encodes the packet.
func (p *PollPacket) MarshalBinary() ([]byte, error) {
	b := make([]byte, 14)
	writeHeader(b, OpPoll)
	binary.BigEndian.PutUint16(b[10:12], ProtocolVersion)
	b[12] = p.Flags
	b[13] = p.DiagPriority
	return b, nil
}

// PollReplySize is the fixed size of an ArtPollReply.
const PollReplySize = 239

// Field offsets inside ArtPollReply.
const (
	prIP         = 10
	prPort       = 14
	prVersion    = 16
	prNetSwitch  = 18
	prSubSwitch  = 19
	prOem        = 20
	prStatus1    = 23
	prEsta       = 24
	prShortName  = 26
	prLongName   = 44
	prNodeReport = 108
	prNumPorts   = 172
	prPortTypes  = 174
	prGoodInput  = 178
	prGoodOutput = 182
	prSwIn       = 186
	prSwOut      = 190
	prStyle      = 200
	prMAC        = 201
	prBindIP     = 207
	prBindIndex  = 211
	prStatus2    = 212
)

const (
	shortNameLen  = 18
	longNameLen   = 64
	nodeReportLen = 64
)

// PortTypeOutputDMX marks a port that outputs DMX512 data from Art-Net.
const PortTypeOutputDMX = 0x80

// StyleNode is the ArtPollReply style code of a DMX to/from Art-Net device.
const StyleNode = 0x00

// PollReply is an ArtPollReply advertising a node.
//
// Only the fields a simple output node needs are modelled. Everything else
// (OEM, ESTA, input ports, RDM) is sent as zero.
type PollReply struct {
	IP         net.IP
	Port       uint16
	Version    uint16
	NetSwitch  uint8
	SubSwitch  uint8
	Status1    uint8
	ShortName  string
	LongName   string
	NodeReport string
	// NumPorts is capped at 4 by the protocol.
	NumPorts   int
	PortTypes  [4]uint8
	GoodOutput [4]uint8
	SwOut      [4]uint8
	Style      uint8
	MAC        net.HardwareAddr
	BindIP     net.IP
	BindIndex  uint8
	Status2    uint8
}

// OpCode implements Packet.
func (p *PollReply) OpCode() OpCode { return OpPollReply }

// MarshalBinary encodes the reply into its fixed 239-byte layout.
func (p *PollReply) MarshalBinary() ([]byte, error) {
	ip := p.IP.To4()
	if ip == nil {
		return nil, fmt.Errorf("%w: poll reply needs an IPv4 address, got %v", ErrInvalidPacket, p.IP)
	}
	if p.NumPorts < 0 || p.NumPorts > 4 {
		return nil, fmt.Errorf("%w: %d ports (max 4)", ErrInvalidPacket, p.NumPorts)
	}

	b := make([]byte, PollReplySize)
	writeHeader(b, OpPollReply)

	copy(b[prIP:prIP+4], ip)
	binary.LittleEndian.PutUint16(b[prPort:prPort+2], p.Port)
	binary.BigEndian.PutUint16(b[prVersion:prVersion+2], p.Version)
	b[prNetSwitch] = p.NetSwitch
	b[prSubSwitch] = p.SubSwitch
	b[prStatus1] = p.Status1

	putString(b[prShortName:prShortName+shortNameLen], p.ShortName)
	putString(b[prLongName:prLongName+longNameLen], p.LongName)
	putString(b[prNodeReport:prNodeReport+nodeReportLen], p.NodeReport)

	binary.BigEndian.PutUint16(b[prNumPorts:prNumPorts+2], uint16(p.NumPorts))
	copy(b[prPortTypes:prPortTypes+4], p.PortTypes[:])
	copy(b[prGoodOutput:prGoodOutput+4], p.GoodOutput[:])
	copy(b[prSwOut:prSwOut+4], p.SwOut[:])

	b[prStyle] = p.Style
	if len(p.MAC) == 6 {
		copy(b[prMAC:prMAC+6], p.MAC)
	}
	if bind := p.BindIP.To4(); bind != nil {
		copy(b[prBindIP:prBindIP+4], bind)
	}
	b[prBindIndex] = p.BindIndex
	b[prStatus2] = p.Status2

	return b, nil
}

func (p *PollReply) unmarshal(b []byte) error {
	if len(b) < PollReplySize {
		return fmt.Errorf("%w: ArtPollReply truncated (%d bytes)", ErrInvalidPacket, len(b))
	}

	p.IP = net.IPv4(b[prIP], b[prIP+1], b[prIP+2], b[prIP+3]).To4()
	p.Port = binary.LittleEndian.Uint16(b[prPort : prPort+2])
	p.Version = binary.BigEndian.Uint16(b[prVersion : prVersion+2])
	p.NetSwitch = b[prNetSwitch]
	p.SubSwitch = b[prSubSwitch]
	p.Status1 = b[prStatus1]
	p.ShortName = getString(b[prShortName : prShortName+shortNameLen])
	p.LongName = getString(b[prLongName : prLongName+longNameLen])
	p.NodeReport = getString(b[prNodeReport : prNodeReport+nodeReportLen])
	p.NumPorts = int(binary.BigEndian.Uint16(b[prNumPorts : prNumPorts+2]))
	copy(p.PortTypes[:], b[prPortTypes:prPortTypes+4])
	copy(p.GoodOutput[:], b[prGoodOutput:prGoodOutput+4])
	copy(p.SwOut[:], b[prSwOut:prSwOut+4])
	p.Style = b[prStyle]
	p.MAC = net.HardwareAddr(append([]byte(nil), b[prMAC:prMAC+6]...))
	p.BindIP = net.IPv4(b[prBindIP], b[prBindIP+1], b[prBindIP+2], b[prBindIP+3]).To4()
	p.BindIndex = b[prBindIndex]
	p.Status2 = b[prStatus2]

	return nil
}

// putString writes a NUL-terminated ASCII string, truncating to fit.
func putString(dst []byte, s string) {
	n := copy(dst[:len(dst)-1], s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func getString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
