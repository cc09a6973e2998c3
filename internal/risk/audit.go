package risk

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// AuditLog persists halt events and daily-loss/drawdown breaches to
// Postgres for later incident review. It is deliberately narrow: it
// never writes fills (fill persistence is out of scope), only the
// risk manager's latched state transitions.
//
// Writes happen off the ingress thread: Manager.OnHalt's callback
// only enqueues, this type's background writer drains. A write
// failure is logged and dropped, matching the engine's rule that the
// hot path is never blocked by I/O.
type AuditLog struct {
	db     *sqlx.DB
	events chan auditEvent
	done   chan struct{}
}

type auditEvent struct {
	Reason string
	At     time.Time
}

// OpenAuditLog ensures the halt_events table exists on an already
// opened db and starts the background writer. Pass a *sqlx.DB built
// over "sqlmock" in tests.
func OpenAuditLog(db *sqlx.DB) (*AuditLog, error) {
	const schema = `
CREATE TABLE IF NOT EXISTS halt_events (
	id SERIAL PRIMARY KEY,
	reason TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
)`
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}

	a := &AuditLog{
		db:     db,
		events: make(chan auditEvent, 64),
		done:   make(chan struct{}),
	}
	go a.run()
	return a, nil
}

// Record is the callback shape expected by Manager.OnHalt. It never
// blocks: a full event channel drops the event (fire-and-forget, like
// the telemetry channel).
func (a *AuditLog) Record(reason string) {
	select {
	case a.events <- auditEvent{Reason: reason, At: time.Now()}:
	default:
		log.Warn().Str("reason", reason).Msg("audit log queue full, dropping halt event")
	}
}

func (a *AuditLog) run() {
	for {
		select {
		case ev := <-a.events:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_, err := a.db.ExecContext(ctx,
				`INSERT INTO halt_events (reason, occurred_at) VALUES ($1, $2)`,
				ev.Reason, ev.At)
			cancel()
			if err != nil {
				log.Error().Err(err).Str("reason", ev.Reason).Msg("failed to persist halt event")
			}
		case <-a.done:
			return
		}
	}
}

// Close stops the background writer.
func (a *AuditLog) Close() {
	close(a.done)
}
