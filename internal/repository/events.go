package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// TurnEvent is one archived conversation turn, written to ClickHouse for the
// dashboard analytics views. Best-effort: losing a row never affects the
// conversation itself.
type TurnEvent struct {
	Timestamp     time.Time `db:"ts"`
	LeadCode      string    `db:"lead_code"`
	Phone         string    `db:"phone"`
	Direction     string    `db:"direction"` // inbound|outbound
	StatusFrom    string    `db:"status_from"`
	StatusTo      string    `db:"status_to"`
	Intent        string    `db:"intent"`
	ObjectionType string    `db:"objection_type"`
	Sentiment     string    `db:"sentiment"`
	Chars         uint32    `db:"chars"`
}

// EventsRepository archives and lists conversation turns in ClickHouse.
type EventsRepository interface {
	Insert(ctx context.Context, ev TurnEvent) error
	ListByPhone(ctx context.Context, phone string, limit, offset int) ([]TurnEvent, error)
}

type eventsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewEventsRepository(ch *sqlx.DB) EventsRepository {
	return &eventsRepository{ch: ch}
}

func (r *eventsRepository) Insert(ctx context.Context, ev TurnEvent) error {
	const q = `
		INSERT INTO smsbot.conversation_events
		    (ts, lead_code, phone, direction, status_from, status_to, intent, objection_type, sentiment, chars)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.ch.ExecContext(ctx, q,
		ev.Timestamp, ev.LeadCode, ev.Phone, ev.Direction,
		ev.StatusFrom, ev.StatusTo, ev.Intent, ev.ObjectionType, ev.Sentiment, ev.Chars)
	return err
}

func (r *eventsRepository) ListByPhone(ctx context.Context, phone string, limit, offset int) ([]TurnEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT ts, lead_code, phone, direction, status_from, status_to, intent, objection_type, sentiment, chars
		FROM smsbot.conversation_events
	`
	args := []any{}

	if phone != "" {
		q += " WHERE phone = ?"
		args = append(args, phone)
	}

	q += " ORDER BY ts DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []TurnEvent
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
