// Package broker implements the server-side concurrent map of parked data
// connections awaiting a client claim.
package broker

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TTL is how long a parked connection survives without being claimed.
const TTL = 10 * time.Second

// Broker parks accepted TCP connections under a correlation id until the
// client claims them with Accept(id), or the janitor evicts them after TTL.
// sync.Map's LoadAndDelete makes the claim-vs-janitor race atomic: whichever
// side removes the entry first owns the connection.
type Broker struct {
	conns sync.Map // uuid.UUID -> net.Conn
	log   zerolog.Logger
}

// New creates an empty broker. log is used to report stale evictions.
func New(log zerolog.Logger) *Broker {
	return &Broker{log: log.With().Str("component", "broker").Logger()}
}

// Park stores conn under id and schedules its eviction after TTL if it is
// never claimed.
func (b *Broker) Park(id uuid.UUID, conn net.Conn) {
	b.conns.Store(id, conn)
	go b.evictAfterTTL(id)
}

func (b *Broker) evictAfterTTL(id uuid.UUID) {
	time.Sleep(TTL)
	if v, ok := b.conns.LoadAndDelete(id); ok {
		_ = v.(net.Conn).Close()
		b.log.Warn().Str("id", id.String()).Msg("removed stale connection")
	}
}

// Claim removes and returns the connection parked under id, if still
// present. The first caller to remove an id — claim path or janitor — wins;
// the loser's Claim (or the janitor's eviction) observes absence.
func (b *Broker) Claim(id uuid.UUID) (net.Conn, bool) {
	v, ok := b.conns.LoadAndDelete(id)
	if !ok {
		return nil, false
	}
	return v.(net.Conn), true
}
