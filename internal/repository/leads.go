package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/edgetalent/smsbot/internal/model"
	"github.com/edgetalent/smsbot/internal/util"
)

// ErrLeadNotFound is returned when a lookup by id or phone matches nothing.
var ErrLeadNotFound = errors.New("lead not found")

const leadCodeAttempts = 5

// LeadsRepository defines persistence for the leads table.
type LeadsRepository interface {
	GetOrCreate(ctx context.Context, phone string) (*model.Lead, error)
	GetByID(ctx context.Context, id int64) (*model.Lead, error)
	GetByPhone(ctx context.Context, phone string) (*model.Lead, error)
	CreateTest(ctx context.Context, phone, name string) (*model.Lead, error)
	UpdateStatus(ctx context.Context, id int64, status model.LeadStatus) error
	UpdateName(ctx context.Context, id int64, name string) error
	SetManualMode(ctx context.Context, id int64, enabled bool) error
	TouchLastContacted(ctx context.Context, id int64) error
	IncrementFollowUp(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]model.Lead, error)
	ListStale(ctx context.Context, before time.Time, limit int) ([]model.Lead, error)
}

type LeadsRepositoryImpl struct {
	db *sqlx.DB
}

func NewLeadsRepository(db *sqlx.DB) *LeadsRepositoryImpl {
	return &LeadsRepositoryImpl{db: db}
}

var _ LeadsRepository = (*LeadsRepositoryImpl)(nil)

const leadColumns = `id, phone, lead_code, name, status, is_manual_mode, is_test,
       follow_up_count, last_contacted_at, created_at, updated_at`

// GetOrCreate returns the lead for a phone number, creating it with status
// New when unseen. Lead-code collisions are retried with a fresh code.
func (r *LeadsRepositoryImpl) GetOrCreate(ctx context.Context, phone string) (*model.Lead, error) {
	if lead, err := r.GetByPhone(ctx, phone); err == nil {
		return lead, nil
	} else if !errors.Is(err, ErrLeadNotFound) {
		return nil, err
	}

	const q = `
		INSERT INTO leads (phone, lead_code, status, is_manual_mode, is_test, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, FALSE, NOW(), NOW())
		ON CONFLICT (phone) DO NOTHING
		RETURNING ` + leadColumns

	var lastErr error
	for i := 0; i < leadCodeAttempts; i++ {
		var lead model.Lead
		err := r.db.GetContext(ctx, &lead, q, phone, util.NewLeadCode(), model.StatusNew)
		if err == nil {
			return &lead, nil
		}
		if errors.Is(err, sql.ErrNoRows) {
			// lost the insert race on phone: the row exists now
			return r.GetByPhone(ctx, phone)
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			lastErr = err
			continue // lead_code collision, try another code
		}
		return nil, err
	}
	return nil, fmt.Errorf("create lead after %d attempts: %w", leadCodeAttempts, lastErr)
}

func (r *LeadsRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Lead, error) {
	var lead model.Lead
	err := r.db.GetContext(ctx, &lead, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *LeadsRepositoryImpl) GetByPhone(ctx context.Context, phone string) (*model.Lead, error) {
	var lead model.Lead
	err := r.db.GetContext(ctx, &lead, `SELECT `+leadColumns+` FROM leads WHERE phone = $1`, phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// CreateTest inserts a sandbox lead (is_test = TRUE). Test leads share the
// funnel but are excluded from follow-ups.
func (r *LeadsRepositoryImpl) CreateTest(ctx context.Context, phone, name string) (*model.Lead, error) {
	const q = `
		INSERT INTO leads (phone, lead_code, name, status, is_manual_mode, is_test, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, FALSE, TRUE, NOW(), NOW())
		RETURNING ` + leadColumns

	var lastErr error
	for i := 0; i < leadCodeAttempts; i++ {
		var lead model.Lead
		err := r.db.GetContext(ctx, &lead, q, phone, util.NewLeadCode(), name, model.StatusNew)
		if err == nil {
			return &lead, nil
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" && pqErr.Constraint == "leads_lead_code_key" {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("create test lead after %d attempts: %w", leadCodeAttempts, lastErr)
}

func (r *LeadsRepositoryImpl) UpdateStatus(ctx context.Context, id int64, status model.LeadStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE leads SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	return err
}

func (r *LeadsRepositoryImpl) UpdateName(ctx context.Context, id int64, name string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE leads SET name = $1, updated_at = NOW() WHERE id = $2`, name, id)
	return err
}

func (r *LeadsRepositoryImpl) SetManualMode(ctx context.Context, id int64, enabled bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE leads SET is_manual_mode = $1, updated_at = NOW() WHERE id = $2`, enabled, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrLeadNotFound
	}
	return nil
}

func (r *LeadsRepositoryImpl) TouchLastContacted(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE leads SET last_contacted_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *LeadsRepositoryImpl) IncrementFollowUp(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE leads SET follow_up_count = follow_up_count + 1, last_contacted_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *LeadsRepositoryImpl) List(ctx context.Context, limit, offset int) ([]model.Lead, error) {
	var leads []model.Lead
	err := r.db.SelectContext(ctx, &leads,
		`SELECT `+leadColumns+` FROM leads ORDER BY updated_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	return leads, err
}

// ListStale returns follow-up candidates: real leads outside terminal
// statuses, not taken over, last contacted before the cutoff. Oldest first
// so the most neglected leads go out first.
func (r *LeadsRepositoryImpl) ListStale(ctx context.Context, before time.Time, limit int) ([]model.Lead, error) {
	var leads []model.Lead
	err := r.db.SelectContext(ctx, &leads, `
		SELECT `+leadColumns+`
		  FROM leads
		 WHERE status NOT IN ($1, $2)
		   AND is_manual_mode = FALSE
		   AND is_test = FALSE
		   AND follow_up_count < 3
		   AND COALESCE(last_contacted_at, created_at) < $3
		 ORDER BY COALESCE(last_contacted_at, created_at) ASC
		 LIMIT $4`,
		model.StatusBooked, model.StatusHumanRequired, before, limit)
	return leads, err
}
