package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgetalent/smsbot/internal/ai"
	"github.com/edgetalent/smsbot/internal/config"
	"github.com/edgetalent/smsbot/internal/db"
	"github.com/edgetalent/smsbot/internal/delivery"
	"github.com/edgetalent/smsbot/internal/logger"
	"github.com/edgetalent/smsbot/internal/repository"
	"github.com/edgetalent/smsbot/internal/worker"
)

var followupCmd = &cobra.Command{
	Use:   "followup",
	Short: "Run the follow-up engine (cron re-engagement of stale leads)",
	RunE:  runFollowup,
}

func runFollowup(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.FollowUp.Enabled {
		return fmt.Errorf("follow-up engine disabled in config")
	}

	logger.Init(cfg.Log.Level)

	// 2) DB connection (Postgres)
	dbx, err := db.NewPostgresConnection(cfg.Postgres.DSN, db.PostgresOpts{
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Postgres.ConnMaxIdleTime,
		PingTimeout:     cfg.Postgres.PingTimeout,
	})
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	defer dbx.Close()

	// 3) repositories
	leadsRepo := repository.NewLeadsRepository(dbx)
	messagesRepo := repository.NewMessagesRepository(dbx)

	// 4) AI + delivery
	chat := ai.NewOpenAIClient(ai.Config{
		APIKey:      cfg.OpenAI.APIKey,
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.Temperature,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Timeout:     time.Duration(cfg.OpenAI.TimeoutMs) * time.Millisecond,
	})
	classifier := ai.NewClassifier(chat)
	responder := ai.NewResponder(chat, cfg.Studio.Name)

	var provider delivery.Provider = delivery.NoopProvider{}
	if cfg.Twilio.Enabled {
		provider = delivery.NewTwilioProvider(
			cfg.Twilio.AccountSID,
			cfg.Twilio.AuthToken,
			cfg.Twilio.FromNumber,
			cfg.Twilio.BaseURL,
			cfg.Twilio.TimeoutMs,
			cfg.Twilio.Breaker.FailThreshold,
			cfg.Twilio.Breaker.OpenForMs,
		)
	}

	// 5) engine
	engine := worker.NewFollowUpEngine(leadsRepo, messagesRepo, classifier, responder, provider, logger.Log)
	if cfg.FollowUp.Schedule != "" {
		engine.Schedule = cfg.FollowUp.Schedule
	}
	if cfg.FollowUp.BatchSize > 0 {
		engine.BatchSize = cfg.FollowUp.BatchSize
	}
	if cfg.FollowUp.Timezone != "" {
		loc, err := time.LoadLocation(cfg.FollowUp.Timezone)
		if err != nil {
			return fmt.Errorf("load timezone %q: %w", cfg.FollowUp.Timezone, err)
		}
		engine.Location = loc
	}
	if len(cfg.FollowUp.Windows) > 0 {
		windows := make([]worker.Window, 0, len(cfg.FollowUp.Windows))
		for _, w := range cfg.FollowUp.Windows {
			windows = append(windows, worker.Window{StartHour: w.StartHour, EndHour: w.EndHour})
		}
		engine.Windows = windows
	}
	if cfg.FollowUp.Stage1 > 0 {
		engine.Stages.Stage1 = cfg.FollowUp.Stage1
	}
	if cfg.FollowUp.Stage2 > 0 {
		engine.Stages.Stage2 = cfg.FollowUp.Stage2
	}
	if cfg.FollowUp.Stage3 > 0 {
		engine.Stages.Stage3 = cfg.FollowUp.Stage3
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("signal received: %s, stopping follow-up engine...", sig)
		cancel()
	}()

	log.Printf("follow-up engine started, schedule=%q provider=%s", engine.Schedule, provider.Name())
	return engine.Run(ctx)
}
