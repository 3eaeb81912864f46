package model

import (
	"database/sql"
	"strings"
	"time"
)

type LeadStatus string

const (
	StatusNew               LeadStatus = "New"
	StatusQualifying        LeadStatus = "Qualifying"
	StatusBookingOffered    LeadStatus = "Booking_Offered"
	StatusBooked            LeadStatus = "Booked"
	StatusObjectionDistance LeadStatus = "Objection_Distance"
	StatusHumanRequired     LeadStatus = "Human_Required"
)

func (s LeadStatus) String() string { return string(s) }

func (s LeadStatus) Valid() bool {
	switch s {
	case StatusNew, StatusQualifying, StatusBookingOffered,
		StatusBooked, StatusObjectionDistance, StatusHumanRequired:
		return true
	}
	return false
}

// ParseLeadStatus normalizes input; empty => New.
// Returns (value, true) if valid; otherwise (New, false).
func ParseLeadStatus(s string) (LeadStatus, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return StatusNew, true
	}
	st := LeadStatus(raw)
	if st.Valid() {
		return st, true
	}
	return StatusNew, false
}

// Lead is the DB entity persisted in the leads table. A lead is created on
// the first inbound message from an unseen phone number and never deleted.
type Lead struct {
	ID              int64          `db:"id"`
	Phone           string         `db:"phone"`
	LeadCode        string         `db:"lead_code"`
	Name            sql.NullString `db:"name"`
	Status          LeadStatus     `db:"status"`
	IsManualMode    bool           `db:"is_manual_mode"`
	IsTest          bool           `db:"is_test"`
	FollowUpCount   int            `db:"follow_up_count"`
	LastContactedAt sql.NullTime   `db:"last_contacted_at"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// DisplayName returns the recorded name, or "" when unknown.
func (l *Lead) DisplayName() string {
	if l.Name.Valid {
		return l.Name.String
	}
	return ""
}
