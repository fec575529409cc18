// Package listener receives Art-Net datagrams and feeds the frame store.
//
// Pipeline per datagram:
//
//	UDP ─► artnet.Unmarshal ─┬─ OutputPacket ─► pixel.Decode ─► store.Merge
//	                         ├─ PollPacket   ─► Replier.Reply (optional)
//	                         └─ anything else ─► counted, skipped
//
// The socket is read with a short deadline instead of blocking forever, so
// the loop notices context cancellation within one PollInterval. The
// listener never touches the strip; the renderer picks up merged frames.
package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Julusian/rpi-ws281x-artnet/internal/artnet"
	"github.com/Julusian/rpi-ws281x-artnet/internal/discovery"
	"github.com/Julusian/rpi-ws281x-artnet/internal/framestore"
	"github.com/Julusian/rpi-ws281x-artnet/internal/pixel"
)

// DefaultPollInterval bounds how long one read blocks.
const DefaultPollInterval = 100 * time.Millisecond

// DecodePolicy decides what a malformed datagram does to the listener.
type DecodePolicy string

const (
	// DecodeSkip logs and counts the datagram, then keeps listening.
	DecodeSkip DecodePolicy = "skip"
	// DecodeFatal stops the listener with the decode error.
	DecodeFatal DecodePolicy = "fatal"
)

// ErrDecode wraps a malformed datagram under DecodeFatal.
var ErrDecode = errors.New("undecodable datagram")

// Replier answers discovery polls. *discovery.Responder implements it.
type Replier interface {
	Reply(w discovery.PacketWriter, to net.Addr) (int, error)
}

// Options configures a Listener.
type Options struct {
	// Addr is the UDP address to bind, e.g. ":6454".
	Addr string

	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration

	// DecodeErrors defaults to DecodeSkip.
	DecodeErrors DecodePolicy

	// Responder is optional; without it polls are counted and ignored.
	Responder Replier

	Logger *slog.Logger
}

// Stats is a snapshot of listener counters.
type Stats struct {
	Packets      uint64
	Outputs      uint64
	Polls        uint64
	PollReplies  uint64
	Ignored      uint64 // outputs for universes outside the topology
	DecodeErrors uint64
	Unsupported  uint64
	LastPacketAt time.Time
}

// Listener owns the Art-Net UDP socket.
type Listener struct {
	store *framestore.Store
	topo  pixel.Topology
	opts  Options
	log   *slog.Logger

	mu   sync.Mutex
	conn net.PacketConn

	packets      atomic.Uint64
	outputs      atomic.Uint64
	polls        atomic.Uint64
	pollReplies  atomic.Uint64
	ignored      atomic.Uint64
	decodeErrors atomic.Uint64
	unsupported  atomic.Uint64
	lastPacketAt atomic.Int64

	// fps log state, touched only by the Run goroutine
	fpsStart  time.Time
	fpsFrames int
}

// New creates a listener merging into store. Call Listen (or Run) to bind.
func New(store *framestore.Store, opts Options) *Listener {
	if opts.Addr == "" {
		opts.Addr = fmt.Sprintf(":%d", artnet.DefaultPort)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.DecodeErrors == "" {
		opts.DecodeErrors = DecodeSkip
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Listener{
		store: store,
		topo:  store.Topology(),
		opts:  opts,
		log:   opts.Logger.With("component", "listener"),
	}
}

// Listen binds the socket and returns the local address. Idempotent.
// A bind failure is fatal for the service.
func (l *Listener) Listen() (net.Addr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		return l.conn.LocalAddr(), nil
	}

	conn, err := net.ListenPacket("udp4", l.opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind art-net socket %s: %w", l.opts.Addr, err)
	}
	l.conn = conn

	l.log.Info("bound socket for artnet",
		"addr", conn.LocalAddr().String(),
		"poll_interval", l.opts.PollInterval,
		"decode_errors", string(l.opts.DecodeErrors),
		"discovery", l.opts.Responder != nil,
	)
	return conn.LocalAddr(), nil
}

// Addr returns the bound address, or nil before Listen.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Run receives datagrams until ctx is cancelled. The socket is closed on return.
func (l *Listener) Run(ctx context.Context) error {
	if _, err := l.Listen(); err != nil {
		return err
	}

	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.conn.Close()
		l.conn = nil
		l.mu.Unlock()
	}()

	l.fpsStart = time.Now()
	buf := make([]byte, artnet.MaxPacketSize)

	for {
		if ctx.Err() != nil {
			l.log.Info("listener stopped", "packets", l.packets.Load())
			return nil
		}

		if err := conn.SetReadDeadline(time.Now().Add(l.opts.PollInterval)); err != nil {
			return fmt.Errorf("failed to set read deadline: %w", err)
		}

		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("art-net receive failed: %w", err)
		}

		if err := l.handle(conn, buf[:n], from); err != nil {
			return err
		}
	}
}

func (l *Listener) handle(conn net.PacketConn, b []byte, from net.Addr) error {
	l.packets.Add(1)
	l.lastPacketAt.Store(time.Now().UnixNano())

	pkt, err := artnet.Unmarshal(b)
	if err != nil {
		if errors.Is(err, artnet.ErrUnsupportedOpCode) {
			l.unsupported.Add(1)
			return nil
		}

		l.decodeErrors.Add(1)
		if l.opts.DecodeErrors == DecodeFatal {
			return fmt.Errorf("%w from %s: %w", ErrDecode, from, err)
		}
		l.log.Debug("skipping undecodable datagram",
			"from", from.String(),
			"size", len(b),
			"error", err,
		)
		return nil
	}

	switch p := pkt.(type) {
	case *artnet.OutputPacket:
		l.output(p)
	case *artnet.PollPacket:
		l.poll(conn, from)
	default:
		// Replies from other nodes on the network.
		l.unsupported.Add(1)
	}
	return nil
}

func (l *Listener) output(p *artnet.OutputPacket) {
	l.outputs.Add(1)
	l.tickFPS()

	seg, ok := pixel.Decode(l.topo, p.Universe(), p.Data)
	if !ok {
		l.ignored.Add(1)
		return
	}
	l.store.Merge(seg)
}

func (l *Listener) poll(conn net.PacketConn, from net.Addr) {
	l.polls.Add(1)
	if l.opts.Responder == nil {
		return
	}

	n, err := l.opts.Responder.Reply(conn, from)
	l.pollReplies.Add(uint64(n))
	if err != nil {
		l.log.Warn("poll reply failed", "to", from.String(), "sent", n, "error", err)
	}
}

// tickFPS logs the ArtDmx rate once per second.
func (l *Listener) tickFPS() {
	l.fpsFrames++
	if elapsed := time.Since(l.fpsStart); elapsed >= time.Second {
		l.log.Debug("artnet input rate", "fps", l.fpsFrames, "window", elapsed.Round(time.Millisecond))
		l.fpsStart = time.Now()
		l.fpsFrames = 0
	}
}

// Stats returns a snapshot. Safe to call from any goroutine.
func (l *Listener) Stats() Stats {
	s := Stats{
		Packets:      l.packets.Load(),
		Outputs:      l.outputs.Load(),
		Polls:        l.polls.Load(),
		PollReplies:  l.pollReplies.Load(),
		Ignored:      l.ignored.Load(),
		DecodeErrors: l.decodeErrors.Load(),
		Unsupported:  l.unsupported.Load(),
	}
	if ns := l.lastPacketAt.Load(); ns != 0 {
		s.LastPacketAt = time.Unix(0, ns)
	}
	return s
}
