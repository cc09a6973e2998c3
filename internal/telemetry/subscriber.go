package telemetry

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/ipv4"
)

// Handler is invoked once per received packet, on the subscriber's
// own worker goroutine — never the ingress thread.
type Handler func(Packet)

// Subscriber joins the multicast group and drains packets on a
// dedicated goroutine until Close is called. A 1-second receive
// timeout keeps shutdown responsive without a second signaling
// channel on the read path.
type Subscriber struct {
	conn    *net.UDPConn
	pc      *ipv4.PacketConn
	handler Handler

	lastSeq       uint32
	haveFirst     bool
	packetsDropped uint64

	mu      sync.Mutex
	closed  bool
	stopped chan struct{}
}

// NewSubscriber binds to port on INADDR_ANY (SO_REUSEADDR is not set
// on the socket), joins the multicast group on iface (nil selects the default
// interface), and starts the worker goroutine that calls handler for
// every packet received.
func NewSubscriber(group string, port int, iface *net.Interface, handler Handler) (*Subscriber, error) {
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, err
	}

	pc := ipv4.NewPacketConn(conn)
	groupAddr := &net.UDPAddr{IP: net.ParseIP(group)}
	if err := pc.JoinGroup(iface, groupAddr); err != nil {
		conn.Close()
		return nil, err
	}

	s := &Subscriber{
		conn:    conn,
		pc:      pc,
		handler: handler,
		stopped: make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func (s *Subscriber) run() {
	buf := make([]byte, PacketSize*2)
	for {
		s.conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if s.isClosed() {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			log.Warn().Err(err).Msg("telemetry subscriber read error")
			continue
		}

		pkt, ok := Unmarshal(buf[:n])
		if !ok {
			continue
		}
		s.trackSequence(pkt.Sequence)
		if s.handler != nil {
			s.handler(pkt)
		}
	}
}

func (s *Subscriber) trackSequence(seq uint32) {
	if !s.haveFirst {
		s.haveFirst = true
		s.lastSeq = seq
		return
	}
	expected := s.lastSeq + 1
	if seq != expected {
		gap := uint64(seq - expected) // wraps correctly mod 2^32
		atomic.AddUint64(&s.packetsDropped, gap)
	}
	s.lastSeq = seq
}

// PacketsDropped returns the cumulative count of sequence gaps
// observed since the subscriber started.
func (s *Subscriber) PacketsDropped() uint64 {
	return atomic.LoadUint64(&s.packetsDropped)
}

func (s *Subscriber) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops the worker goroutine and releases the socket.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.conn.Close()
}
