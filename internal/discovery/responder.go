// Package discovery answers ArtPoll broadcasts so controllers can find the node.
package discovery

import (
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/Julusian/rpi-ws281x-artnet/internal/artnet"
	"github.com/Julusian/rpi-ws281x-artnet/internal/pixel"
)

// Default node names advertised in ArtPollReply.
const (
	DefaultShortName = "ws281x-artnet"
	DefaultLongName  = "Raspberry Pi WS281x Art-Net bridge"
)

// firmwareVersion is reported in the VersInfo field.
const firmwareVersion = 1

// PacketWriter is the sending half of a UDP socket. *net.UDPConn satisfies it.
type PacketWriter interface {
	WriteTo(p []byte, addr net.Addr) (int, error)
}

// Responder builds one ArtPollReply per local IPv4 address.
type Responder struct {
	ShortName string
	LongName  string
	Topology  pixel.Topology
	Port      uint16

	// Interfaces lists the addresses to advertise. Defaults to LocalIPv4.
	Interfaces func() ([]net.IP, error)

	Logger *slog.Logger
}

// NewResponder returns a responder advertising topo on port with default names.
func NewResponder(topo pixel.Topology, port uint16) *Responder {
	return &Responder{
		ShortName:  DefaultShortName,
		LongName:   DefaultLongName,
		Topology:   topo,
		Port:       port,
		Interfaces: LocalIPv4,
	}
}

// Reply sends one ArtPollReply per local IPv4 address to the poll sender.
//
// Returns the number of replies sent. A failed send aborts the burst; the
// replies already sent stay sent.
func (r *Responder) Reply(w PacketWriter, to net.Addr) (int, error) {
	list := r.Interfaces
	if list == nil {
		list = LocalIPv4
	}
	ips, err := list()
	if err != nil {
		return 0, fmt.Errorf("failed to enumerate interfaces: %w", err)
	}

	sent := 0
	for _, ip := range ips {
		b, err := r.reply(ip).MarshalBinary()
		if err != nil {
			return sent, err
		}
		if _, err := w.WriteTo(b, to); err != nil {
			return sent, fmt.Errorf("failed to send poll reply to %s: %w", to, err)
		}
		sent++
	}

	r.logger().Debug("answered poll", "to", to.String(), "replies", sent)
	return sent, nil
}

func (r *Responder) reply(ip net.IP) *artnet.PollReply {
	ports := r.Topology.UniverseCount
	if ports > 4 {
		ports = 4
	}

	// Universes 1..ports share Net and Sub-Net; SwOut carries the low nibble.
	first := artnet.PortAddress(pixel.PrimaryUniverse)
	rep := &artnet.PollReply{
		IP:        ip,
		Port:      r.Port,
		Version:   firmwareVersion,
		NetSwitch: first.Net(),
		SubSwitch: first.SubUni() >> 4,
		ShortName: r.ShortName,
		LongName:  r.LongName,
		NumPorts:  ports,
		Style:     artnet.StyleNode,
		BindIP:    ip,
	}
	for i := 0; i < ports; i++ {
		rep.PortTypes[i] = artnet.PortTypeOutputDMX
		rep.SwOut[i] = uint8(pixel.PrimaryUniverse+i) & 0x0f
	}
	return rep
}

func (r *Responder) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// ErrNoInterfaces is returned by LocalIPv4 when the host has no usable IPv4 address.
var ErrNoInterfaces = errors.New("no active IPv4 interface")

// LocalIPv4 lists the IPv4 addresses of interfaces that are up. Loopback
// addresses are listed only when no other interface has an IPv4 address,
// so a node on an isolated host still answers local controllers.
func LocalIPv4() ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var found []ifaceAddrs
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		found = append(found, ifaceAddrs{flags: iface.Flags, addrs: addrs})
	}

	ips := selectIPv4(found)
	if len(ips) == 0 {
		return nil, ErrNoInterfaces
	}
	return ips, nil
}

type ifaceAddrs struct {
	flags net.Flags
	addrs []net.Addr
}

func selectIPv4(ifaces []ifaceAddrs) []net.IP {
	var ips, loopback []net.IP
	for _, iface := range ifaces {
		if iface.flags&net.FlagUp == 0 {
			continue
		}
		for _, a := range iface.addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			v4 := ipnet.IP.To4()
			if v4 == nil {
				continue
			}
			if iface.flags&net.FlagLoopback != 0 || v4.IsLoopback() {
				loopback = append(loopback, v4)
				continue
			}
			ips = append(ips, v4)
		}
	}

	if len(ips) == 0 {
		return loopback
	}
	return ips
}
