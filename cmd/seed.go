package cmd

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/edgetalent/smsbot/internal/config"
	"github.com/edgetalent/smsbot/internal/db"
	"github.com/edgetalent/smsbot/internal/model"
	"github.com/edgetalent/smsbot/internal/util"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// 2) connect Postgres
		sqlDB, err := db.NewPostgresConnection(cfg.Postgres.DSN, db.PostgresOpts{
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Postgres.ConnMaxIdleTime,
			PingTimeout:     cfg.Postgres.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("postgres connect: %w", err)
		}
		defer sqlDB.Close()

		log.Println(">> Seeding demo leads...")

		if err := seedLeads(sqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

type seedLead struct {
	phone  string
	name   string
	status model.LeadStatus
	isTest bool
}

// seedLeads inserts deterministic demo leads, one per funnel stage
// (idempotent on phone).
func seedLeads(dbx *sqlx.DB) error {
	leads := []seedLead{
		{phone: "+447700900001", name: "Maya", status: model.StatusNew},
		{phone: "+447700900002", name: "Josh", status: model.StatusQualifying},
		{phone: "+447700900003", name: "Priya", status: model.StatusBookingOffered},
		{phone: "+447700900004", name: "Elena", status: model.StatusBooked},
		{phone: "+447700900005", name: "Tom", status: model.StatusObjectionDistance},
		{phone: "+447700900006", name: "", status: model.StatusHumanRequired},
		{phone: "+447700909001", name: "Sandbox Sam", status: model.StatusNew, isTest: true},
	}

	// idempotent upsert on phone (UNIQUE)
	const q = `
INSERT INTO leads
    (phone, lead_code, name, status, is_manual_mode, is_test, created_at, updated_at)
VALUES
    ($1, $2, NULLIF($3, ''), $4, FALSE, $5, NOW(), NOW())
ON CONFLICT (phone) DO UPDATE SET
    name       = EXCLUDED.name,
    status     = EXCLUDED.status,
    updated_at = NOW()
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, l := range leads {
		if _, err := tx.Exec(q, l.phone, util.NewLeadCode(), l.name, l.status, l.isTest); err != nil {
			return fmt.Errorf("insert lead %q: %w", l.phone, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit leads: %w", err)
	}
	return nil
}
