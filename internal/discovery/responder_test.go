package discovery

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/Julusian/rpi-ws281x-artnet/internal/artnet"
	"github.com/Julusian/rpi-ws281x-artnet/internal/pixel"
)

func staticIPs(ips ...string) func() ([]net.IP, error) {
	return func() ([]net.IP, error) {
		out := make([]net.IP, len(ips))
		for i, s := range ips {
			out[i] = net.ParseIP(s).To4()
		}
		return out, nil
	}
}

// A Poll from address A yields exactly one reply to A per IPv4 interface.
func TestReplyOnePerInterface(t *testing.T) {
	sender, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen sender: %v", err)
	}
	defer sender.Close()

	controller, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen controller: %v", err)
	}
	defer controller.Close()

	r := NewResponder(pixel.DefaultTopology(), artnet.DefaultPort)
	r.Interfaces = staticIPs("10.0.0.5", "192.168.1.20")

	n, err := r.Reply(sender, controller.LocalAddr())
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("Reply sent %d, want 2", n)
	}

	var got []string
	buf := make([]byte, artnet.MaxPacketSize)
	controller.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < 2; i++ {
		m, from, err := controller.ReadFrom(buf)
		if err != nil {
			t.Fatalf("read reply %d: %v", i, err)
		}
		if from.String() != sender.LocalAddr().String() {
			t.Errorf("reply from %s, want %s", from, sender.LocalAddr())
		}

		pkt, err := artnet.Unmarshal(buf[:m])
		if err != nil {
			t.Fatalf("decode reply: %v", err)
		}
		rep, ok := pkt.(*artnet.PollReply)
		if !ok {
			t.Fatalf("got %T, want *artnet.PollReply", pkt)
		}
		got = append(got, rep.IP.String())

		if rep.Port != artnet.DefaultPort {
			t.Errorf("Port = %d, want %d", rep.Port, artnet.DefaultPort)
		}
		if rep.ShortName != DefaultShortName || rep.LongName != DefaultLongName {
			t.Errorf("names = %q / %q", rep.ShortName, rep.LongName)
		}
		if rep.NumPorts != 3 || rep.SwOut != [4]uint8{1, 2, 3, 0} {
			t.Errorf("NumPorts=%d SwOut=%v, want 3 [1 2 3 0]", rep.NumPorts, rep.SwOut)
		}
		if rep.GoodOutput != [4]uint8{} || rep.Status1 != 0 {
			t.Errorf("capability fields not zeroed: GoodOutput=%v Status1=%d", rep.GoodOutput, rep.Status1)
		}
	}

	if got[0] != "10.0.0.5" || got[1] != "192.168.1.20" {
		t.Errorf("advertised IPs = %v", got)
	}

	controller.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	if _, _, err := controller.ReadFrom(buf); err == nil {
		t.Error("received more replies than interfaces")
	}
}

func TestReplyCapsPorts(t *testing.T) {
	r := NewResponder(pixel.Topology{PixelsPerUniverse: 170, UniverseCount: 8}, artnet.DefaultPort)
	rep := r.reply(net.IPv4(10, 0, 0, 1))
	if rep.NumPorts != 4 {
		t.Errorf("NumPorts = %d, want 4", rep.NumPorts)
	}
	if rep.SwOut != [4]uint8{1, 2, 3, 4} {
		t.Errorf("SwOut = %v", rep.SwOut)
	}
}

type recordingWriter struct {
	sent []net.Addr
	err  error
}

func (w *recordingWriter) WriteTo(p []byte, addr net.Addr) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	w.sent = append(w.sent, addr)
	return len(p), nil
}

func TestReplyErrors(t *testing.T) {
	to := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 9), Port: 6454}

	t.Run("interfaces", func(t *testing.T) {
		r := NewResponder(pixel.DefaultTopology(), artnet.DefaultPort)
		r.Interfaces = func() ([]net.IP, error) { return nil, ErrNoInterfaces }

		w := &recordingWriter{}
		if _, err := r.Reply(w, to); !errors.Is(err, ErrNoInterfaces) {
			t.Errorf("Reply() error = %v, want ErrNoInterfaces", err)
		}
		if len(w.sent) != 0 {
			t.Errorf("sent %d replies on enumeration failure", len(w.sent))
		}
	})

	t.Run("send", func(t *testing.T) {
		r := NewResponder(pixel.DefaultTopology(), artnet.DefaultPort)
		r.Interfaces = staticIPs("10.0.0.5")

		boom := errors.New("network unreachable")
		if _, err := r.Reply(&recordingWriter{err: boom}, to); !errors.Is(err, boom) {
			t.Errorf("Reply() error = %v, want %v", err, boom)
		}
	})
}

func TestSelectIPv4(t *testing.T) {
	cidr := func(s string) net.Addr {
		ip, ipnet, err := net.ParseCIDR(s)
		if err != nil {
			t.Fatalf("ParseCIDR(%q): %v", s, err)
		}
		ipnet.IP = ip
		return ipnet
	}
	lo := ifaceAddrs{
		flags: net.FlagUp | net.FlagLoopback,
		addrs: []net.Addr{cidr("127.0.0.1/8"), cidr("::1/128")},
	}
	eth := ifaceAddrs{
		flags: net.FlagUp,
		addrs: []net.Addr{cidr("192.168.1.20/24"), cidr("fe80::1/64")},
	}
	down := ifaceAddrs{addrs: []net.Addr{cidr("10.0.0.5/8")}}

	tests := []struct {
		name   string
		ifaces []ifaceAddrs
		want   []string
	}{
		{"loopback skipped when a network exists", []ifaceAddrs{lo, eth}, []string{"192.168.1.20"}},
		{"loopback only", []ifaceAddrs{lo}, []string{"127.0.0.1"}},
		{"down interfaces ignored", []ifaceAddrs{lo, down}, []string{"127.0.0.1"}},
		{"nothing usable", []ifaceAddrs{down}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := selectIPv4(tt.ifaces)
			if len(got) != len(tt.want) {
				t.Fatalf("selectIPv4 = %v, want %v", got, tt.want)
			}
			for i, ip := range got {
				if ip.String() != tt.want[i] {
					t.Errorf("ip[%d] = %s, want %s", i, ip, tt.want[i])
				}
			}
		})
	}
}
