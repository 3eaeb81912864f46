// Package worker holds the background follow-up engine: cron-driven
// re-engagement of leads who stopped replying.
package worker

import (
	"context"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/edgetalent/smsbot/internal/delivery"
	"github.com/edgetalent/smsbot/internal/metrics"
	"github.com/edgetalent/smsbot/internal/model"
	"github.com/edgetalent/smsbot/internal/repository"
)

// SentimentChecker is the guardrail's slice of the classifier.
type SentimentChecker interface {
	Analyze(ctx context.Context, text string, current model.LeadStatus) (model.Analysis, error)
}

// Nudger generates the staged re-engagement text.
type Nudger interface {
	Nudge(ctx context.Context, leadName string, stage int, history []model.Message) (string, error)
}

// Window is an allowed send window in local studio time, [StartHour, EndHour).
type Window struct {
	StartHour int
	EndHour   int
}

// Stage thresholds: elapsed time since last contact required to fire each
// follow-up, indexed by the lead's current follow_up_count.
type Stages struct {
	Stage1 time.Duration // follow_up_count 0
	Stage2 time.Duration // follow_up_count 1
	Stage3 time.Duration // follow_up_count 2
}

// FollowUpEngine re-engages stale leads on a cron schedule. Booked,
// escalated, manual-mode and sandbox leads are never touched; everything it
// does is best effort.
type FollowUpEngine struct {
	Leads      repository.LeadsRepository
	Messages   repository.MessagesRepository
	Classifier SentimentChecker
	Responder  Nudger
	Provider   delivery.Provider

	Schedule  string
	BatchSize int
	Location  *time.Location
	Windows   []Window
	Stages    Stages

	Log *zap.Logger

	now func() time.Time // test seam
}

func NewFollowUpEngine(
	leads repository.LeadsRepository,
	msgs repository.MessagesRepository,
	classifier SentimentChecker,
	responder Nudger,
	provider delivery.Provider,
	log *zap.Logger,
) *FollowUpEngine {
	if log == nil {
		log = zap.NewNop()
	}
	return &FollowUpEngine{
		Leads:      leads,
		Messages:   msgs,
		Classifier: classifier,
		Responder:  responder,
		Provider:   provider,
		Schedule:   "*/15 * * * *",
		BatchSize:  10,
		Location:   time.UTC,
		Windows: []Window{
			{StartHour: 11, EndHour: 14},
			{StartHour: 19, EndHour: 21},
		},
		Stages: Stages{
			Stage1: 24 * time.Hour,
			Stage2: 72 * time.Hour,
			Stage3: 168 * time.Hour,
		},
		Log: log,
		now: time.Now,
	}
}

// Run schedules the engine and blocks until ctx is cancelled.
func (e *FollowUpEngine) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(e.Location))
	if _, err := c.AddFunc(e.Schedule, func() {
		if n, err := e.RunOnce(ctx); err != nil {
			e.Log.Error("follow-up pass failed", zap.Error(err))
		} else if n > 0 {
			e.Log.Info("follow-up pass done", zap.Int("sent", n))
		}
	}); err != nil {
		return err
	}

	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}

// RunOnce executes a single follow-up pass and reports how many nudges went
// out. Outside the send windows it does nothing.
func (e *FollowUpEngine) RunOnce(ctx context.Context) (int, error) {
	now := e.now().In(e.Location)
	if !e.inWindow(now) {
		return 0, nil
	}

	// only leads stale enough for stage 1 can be stale enough for any stage
	cutoff := now.Add(-e.Stages.Stage1)
	leads, err := e.Leads.ListStale(ctx, cutoff, e.BatchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range leads {
		lead := &leads[i]
		stage := e.stageFor(lead, now)
		if stage == 0 {
			continue
		}
		if e.processLead(ctx, lead, stage) {
			sent++
		}
	}
	return sent, nil
}

// stageFor maps follow_up_count plus elapsed time to the next stage, or 0
// when the lead is not due yet.
func (e *FollowUpEngine) stageFor(lead *model.Lead, now time.Time) int {
	last := lead.CreatedAt
	if lead.LastContactedAt.Valid {
		last = lead.LastContactedAt.Time
	}
	elapsed := now.Sub(last)

	switch {
	case lead.FollowUpCount == 0 && elapsed >= e.Stages.Stage1:
		return 1
	case lead.FollowUpCount == 1 && elapsed >= e.Stages.Stage2:
		return 2
	case lead.FollowUpCount == 2 && elapsed >= e.Stages.Stage3:
		return 3
	default:
		return 0
	}
}

func (e *FollowUpEngine) processLead(ctx context.Context, lead *model.Lead, stage int) bool {
	log := e.Log.With(zap.String("lead_code", lead.LeadCode), zap.Int("stage", stage))

	// guardrail: never nudge someone whose last words were negative
	lastMsg, err := e.Messages.LastFromLead(ctx, lead.ID)
	if err != nil {
		log.Warn("load last message failed", zap.Error(err))
	}
	if lastMsg != nil {
		analysis, err := e.Classifier.Analyze(ctx, lastMsg.Content, lead.Status)
		if err != nil {
			log.Warn("guardrail classify failed, skipping lead", zap.Error(err))
			metrics.AIFailuresTotal.WithLabelValues("classify").Inc()
			return false
		}
		if analysis.Sentiment == model.SentimentNegative {
			log.Info("negative sentiment, escalating instead of nudging")
			if err := e.Leads.UpdateStatus(ctx, lead.ID, model.StatusHumanRequired); err != nil {
				log.Error("escalate failed", zap.Error(err))
			}
			return false
		}
	}

	history, err := e.Messages.Recent(ctx, lead.ID, 10)
	if err != nil {
		log.Warn("load history failed", zap.Error(err))
	}

	text, err := e.Responder.Nudge(ctx, lead.DisplayName(), stage, history)
	if err != nil {
		log.Warn("nudge generation failed, skipping lead", zap.Error(err))
		metrics.AIFailuresTotal.WithLabelValues("generate").Inc()
		return false
	}

	if _, err := e.Provider.Send(ctx, lead.Phone, text); err != nil {
		log.Error("follow-up send failed", zap.Error(err))
		return false
	}

	if _, err := e.Messages.Append(ctx, lead.ID, model.SenderBot, text, lead.IsTest); err != nil {
		log.Error("persist follow-up failed", zap.Error(err))
	}
	if err := e.Leads.IncrementFollowUp(ctx, lead.ID); err != nil {
		log.Error("increment follow_up_count failed", zap.Error(err))
	}

	metrics.FollowUpsTotal.WithLabelValues(strconv.Itoa(stage)).Inc()
	return true
}

func (e *FollowUpEngine) inWindow(now time.Time) bool {
	h := now.Hour()
	for _, w := range e.Windows {
		if h >= w.StartHour && h < w.EndHour {
			return true
		}
	}
	return false
}
