package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Julusian/rpi-ws281x-artnet/internal/artnet"
	"github.com/Julusian/rpi-ws281x-artnet/internal/pixel"
)

// SendCmd fills one universe with a solid color.
type SendCmd struct {
	Target     string `arg:"" optional:"" default:"127.0.0.1:6454" help:"host:port of the bridge."`
	Universe   int    `short:"u" default:"1" help:"Universe (port address) to send."`
	Color      string `default:"255,255,255" help:"Color as r,g,b."`
	Pixels     int    `default:"170" help:"Pixels to fill (max 170)."`
	Brightness int    `short:"b" default:"-1" help:"Brightness 0-255, sent in slot 512 (universe 1 only). -1 leaves it unchanged."`
}

func (c *SendCmd) Run() error {
	color, err := parseColor(c.Color)
	if err != nil {
		return err
	}
	if c.Pixels < 0 || c.Pixels > 170 {
		return fmt.Errorf("pixels must be 0..170, got %d", c.Pixels)
	}
	if c.Brightness > 255 {
		return fmt.Errorf("brightness must be 0..255, got %d", c.Brightness)
	}

	data := make([]pixel.Color, c.Pixels)
	for i := range data {
		data[i] = color
	}
	payload := pixel.PackRGB(data)

	if c.Brightness >= 0 {
		full := make([]byte, artnet.MaxDMX)
		copy(full, payload)
		full[artnet.MaxDMX-1] = byte(c.Brightness)
		payload = full
	}

	pkt, err := (&artnet.OutputPacket{Port: artnet.PortAddress(c.Universe), Data: payload}).MarshalBinary()
	if err != nil {
		return err
	}

	conn, err := net.Dial("udp4", c.Target)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", c.Target, err)
	}
	defer conn.Close()

	if _, err := conn.Write(pkt); err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}

	slog.Info("artdmx sent",
		"target", c.Target,
		"universe", c.Universe,
		"pixels", c.Pixels,
		"bytes", len(payload),
	)
	return nil
}

func parseColor(s string) (pixel.Color, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return pixel.EmptyColor, fmt.Errorf("color must be r,g,b, got %q", s)
	}
	var rgb [3]uint8
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return pixel.EmptyColor, fmt.Errorf("color component %q: %w", p, err)
		}
		rgb[i] = uint8(v)
	}
	return pixel.RGB(rgb[0], rgb[1], rgb[2]), nil
}

// DiscoverCmd sends an ArtPoll and prints every ArtPollReply.
type DiscoverCmd struct {
	Target  string        `arg:"" optional:"" default:"255.255.255.255:6454" help:"Address to poll (broadcast by default)."`
	Timeout time.Duration `default:"2s" help:"How long to collect replies."`
}

func (c *DiscoverCmd) Run() error {
	to, err := net.ResolveUDPAddr("udp4", c.Target)
	if err != nil {
		return fmt.Errorf("invalid target %q: %w", c.Target, err)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return fmt.Errorf("failed to open socket: %w", err)
	}
	defer conn.Close()

	poll, err := (&artnet.PollPacket{}).MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := conn.WriteTo(poll, to); err != nil {
		return fmt.Errorf("failed to send poll: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FROM\tIP\tSHORT NAME\tLONG NAME\tPORTS\tUNIVERSES")

	found := 0
	buf := make([]byte, artnet.MaxPacketSize)
	conn.SetReadDeadline(time.Now().Add(c.Timeout))
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				break
			}
			return fmt.Errorf("failed to read reply: %w", err)
		}

		pkt, err := artnet.Unmarshal(buf[:n])
		if err != nil {
			slog.Debug("ignoring datagram", "from", from, "error", err)
			continue
		}
		reply, ok := pkt.(*artnet.PollReply)
		if !ok {
			continue
		}

		// Other vendors' nodes may report more ports than the reply can describe.
		ports := min(max(reply.NumPorts, 0), len(reply.SwOut))

		found++
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%v\n",
			from, reply.IP, reply.ShortName, reply.LongName, reply.NumPorts, reply.SwOut[:ports])
	}
	w.Flush()

	slog.Info("discovery finished", "nodes", found)
	return nil
}
