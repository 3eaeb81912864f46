package model

import (
	"strings"
	"time"
)

type SenderType string

const (
	SenderLead  SenderType = "lead"
	SenderBot   SenderType = "bot"
	SenderHuman SenderType = "human"
)

func (s SenderType) String() string { return string(s) }

func (s SenderType) Valid() bool {
	return s == SenderLead || s == SenderBot || s == SenderHuman
}

// ParseSenderType normalizes input. Returns (value, true) if valid;
// otherwise (lead, false).
func ParseSenderType(s string) (SenderType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lead":
		return SenderLead, true
	case "bot":
		return SenderBot, true
	case "human":
		return SenderHuman, true
	default:
		return SenderLead, false
	}
}

// Message is the DB entity persisted in the messages table. Rows are
// append-only: never mutated, never deleted.
type Message struct {
	ID         string     `db:"id"`
	LeadID     int64      `db:"lead_id"`
	SenderType SenderType `db:"sender_type"`
	Content    string     `db:"content"`
	IsTest     bool       `db:"is_test"`
	CreatedAt  time.Time  `db:"created_at"`
}
