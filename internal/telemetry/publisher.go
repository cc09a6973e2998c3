package telemetry

import (
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultGroup and DefaultPort are the wire-format defaults.
const (
	DefaultGroup = "239.255.0.1"
	DefaultPort  = 5555
)

// Publisher opens a non-blocking UDP multicast socket and stamps
// every packet with a monotonic timestamp and a per-publisher
// sequence counter. Send errors are silently dropped: the channel is
// fire-and-forget by design, never a backpressure source for the
// ingress thread.
type Publisher struct {
	conn     *net.UDPConn
	sequence uint32
	start    time.Time
	loopback bool
}

// PublisherOption configures a Publisher at construction.
type PublisherOption func(*publisherConfig)

type publisherConfig struct {
	group    string
	port     int
	ttl      int
	loopback bool
}

// WithLoopback enables multicast loopback — off by default (disabled
// on the publisher per the wire spec), on for local test harnesses.
func WithLoopback(enabled bool) PublisherOption {
	return func(c *publisherConfig) { c.loopback = enabled }
}

// WithGroupPort overrides the default multicast group/port.
func WithGroupPort(group string, port int) PublisherOption {
	return func(c *publisherConfig) { c.group = group; c.port = port }
}

// NewPublisher opens the multicast socket with TTL 1 and loopback
// disabled unless WithLoopback(true) is passed.
func NewPublisher(opts ...PublisherOption) (*Publisher, error) {
	cfg := publisherConfig{group: DefaultGroup, port: DefaultPort, ttl: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(cfg.group, strconv.Itoa(cfg.port)))
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return nil, err
	}

	// TTL 1 keeps multicast traffic on the local segment; loopback is
	// disabled unless a caller opts in via WithLoopback(true) for a
	// local test harness.
	if err := setSocketOptions(conn, cfg.ttl, cfg.loopback); err != nil {
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, start: time.Now(), loopback: cfg.loopback}, nil
}

// Publish stamps pkt with the current monotonic timestamp and the
// next sequence number, then sends it non-blocking. A send failure is
// logged at Debug and otherwise ignored. The stamped packet is
// returned so callers (and tests) can observe the assigned sequence;
// the hot path is free to discard it.
func (p *Publisher) Publish(pkt Packet) Packet {
	pkt.TimestampNs = uint64(time.Since(p.start).Nanoseconds())
	pkt.Sequence = atomic.AddUint32(&p.sequence, 1) - 1

	wire := pkt.Marshal()
	if _, err := p.conn.Write(wire[:]); err != nil {
		log.Debug().Err(err).Msg("telemetry publish dropped")
	}
	return pkt
}

// Close releases the socket.
func (p *Publisher) Close() error {
	return p.conn.Close()
}
