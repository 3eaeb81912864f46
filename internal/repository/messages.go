package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/edgetalent/smsbot/internal/model"
	"github.com/edgetalent/smsbot/internal/util"
)

// MessagesRepository defines persistence for the append-only messages table.
type MessagesRepository interface {
	Append(ctx context.Context, leadID int64, sender model.SenderType, content string, isTest bool) (*model.Message, error)
	Recent(ctx context.Context, leadID int64, limit int) ([]model.Message, error)
	LastFromLead(ctx context.Context, leadID int64) (*model.Message, error)
}

type MessagesRepositoryImpl struct {
	db *sqlx.DB
}

func NewMessagesRepository(db *sqlx.DB) *MessagesRepositoryImpl {
	return &MessagesRepositoryImpl{db: db}
}

var _ MessagesRepository = (*MessagesRepositoryImpl)(nil)

// Append inserts one message row. The row id is a ULID so the log stays
// time-ordered even when created_at granularity ties.
func (r *MessagesRepositoryImpl) Append(ctx context.Context, leadID int64, sender model.SenderType, content string, isTest bool) (*model.Message, error) {
	msg := model.Message{
		ID:         util.NewMessageID(),
		LeadID:     leadID,
		SenderType: sender,
		Content:    content,
		IsTest:     isTest,
	}
	const q = `
		INSERT INTO messages (id, lead_id, sender_type, content, is_test, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`
	err := r.db.GetContext(ctx, &msg.CreatedAt, q,
		msg.ID, msg.LeadID, msg.SenderType.String(), msg.Content, msg.IsTest)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Recent returns up to limit messages for a lead in chronological order,
// oldest first.
func (r *MessagesRepositoryImpl) Recent(ctx context.Context, leadID int64, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 10
	}
	var msgs []model.Message
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT id, lead_id, sender_type, content, is_test, created_at
		  FROM (
		        SELECT id, lead_id, sender_type, content, is_test, created_at
		          FROM messages
		         WHERE lead_id = $1
		         ORDER BY created_at DESC, id DESC
		         LIMIT $2
		       ) latest
		 ORDER BY created_at ASC, id ASC`,
		leadID, limit)
	return msgs, err
}

// LastFromLead returns the most recent lead-authored message, or nil when
// the lead never wrote anything.
func (r *MessagesRepositoryImpl) LastFromLead(ctx context.Context, leadID int64) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		SELECT id, lead_id, sender_type, content, is_test, created_at
		  FROM messages
		 WHERE lead_id = $1 AND sender_type = $2
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		leadID, model.SenderLead)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
