// Package lifecycle implements the lead lifecycle controller: the single
// authority deciding, for each inbound message, whether to reply, which
// status the lead moves to, and what gets persisted.
package lifecycle

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/edgetalent/smsbot/internal/booking"
	"github.com/edgetalent/smsbot/internal/metrics"
	"github.com/edgetalent/smsbot/internal/model"
	"github.com/edgetalent/smsbot/internal/persona"
	"github.com/edgetalent/smsbot/internal/repository"
)

// Classifier produces a structured analysis of one inbound message.
type Classifier interface {
	Analyze(ctx context.Context, text string, current model.LeadStatus) (model.Analysis, error)
}

// Responder generates the next outbound message for the default path.
type Responder interface {
	Generate(ctx context.Context, text string, history []model.Message, leadName string, status model.LeadStatus, analysis model.Analysis) (string, error)
}

const (
	historyLimit = 10
	// slots offered in the booking listing; selection accepts the full catalog
	listedSlots = 3
)

// optOutKeywords terminate the conversation without any model call. Matched
// case-insensitively against the trimmed message.
var optOutKeywords = map[string]struct{}{
	"STOP":        {},
	"STOPALL":     {},
	"UNSUBSCRIBE": {},
	"CANCEL":      {},
	"END":         {},
	"QUIT":        {},
}

// bookingKeywords force the booking branch regardless of the classifier.
var bookingKeywords = []string{"book", "slot", "appointment"}

// statusRule is one entry of the ordered transition table. Rules are
// evaluated top to bottom; the first match wins.
type statusRule struct {
	name string
	when func(current model.LeadStatus, a model.Analysis) bool
	to   model.LeadStatus
}

// statusRules is the status transition table. Order is a deliberate
// tie-break policy: distance objections beat escalation beats progression.
var statusRules = []statusRule{
	{
		name: "distance_objection",
		when: func(_ model.LeadStatus, a model.Analysis) bool {
			return a.ObjectionType == model.ObjectionDistance
		},
		to: model.StatusObjectionDistance,
	},
	{
		name: "escalate_complex_objection",
		when: func(_ model.LeadStatus, a model.Analysis) bool {
			return a.Sentiment == model.SentimentNegative &&
				a.ObjectionType != model.ObjectionNone &&
				a.ObjectionType != model.ObjectionDistance
		},
		to: model.StatusHumanRequired,
	},
	{
		name: "positive_progression",
		when: func(current model.LeadStatus, a model.Analysis) bool {
			return current == model.StatusNew && a.Sentiment == model.SentimentPositive
		},
		to: model.StatusQualifying,
	},
}

// TurnResult is what one inbound message produced.
type TurnResult struct {
	Lead      *model.Lead
	OldStatus model.LeadStatus
	NewStatus model.LeadStatus
	Reply     string
	Replied   bool
	OptOut    bool
	Analysis  model.Analysis
}

// Controller orchestrates one conversation turn. All collaborators are
// injected; there is no hidden global state.
type Controller struct {
	leads      repository.LeadsRepository
	msgs       repository.MessagesRepository
	classifier Classifier
	responder  Responder
	slots      *booking.Catalog
	studioName string
	log        *zap.Logger
}

func NewController(
	leads repository.LeadsRepository,
	msgs repository.MessagesRepository,
	classifier Classifier,
	responder Responder,
	slots *booking.Catalog,
	studioName string,
	log *zap.Logger,
) *Controller {
	if slots == nil {
		slots = booking.NewCatalog(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		leads:      leads,
		msgs:       msgs,
		classifier: classifier,
		responder:  responder,
		slots:      slots,
		studioName: studioName,
		log:        log,
	}
}

// HandleInbound processes one inbound message identified by sender phone,
// creating the lead when unseen.
func (c *Controller) HandleInbound(ctx context.Context, phone, text string) (*TurnResult, error) {
	lead, err := c.leads.GetOrCreate(ctx, phone)
	if err != nil {
		return nil, err
	}
	return c.HandleTurn(ctx, lead, text, false)
}

// HandleTurn runs the full turn for an already-loaded lead. isTest flags the
// persisted messages as sandbox traffic.
func (c *Controller) HandleTurn(ctx context.Context, lead *model.Lead, text string, isTest bool) (*TurnResult, error) {
	text = strings.TrimSpace(text)

	res := &TurnResult{
		Lead:      lead,
		OldStatus: lead.Status,
		NewStatus: lead.Status,
	}

	// inbound is persisted unconditionally, whatever happens next
	c.appendMessage(ctx, lead.ID, model.SenderLead, text, isTest)

	// 1) opt-out guard: fixed reply, no classifier
	if _, ok := optOutKeywords[strings.ToUpper(text)]; ok {
		res.NewStatus = model.StatusHumanRequired
		res.Reply = persona.OptOutReply
		res.Replied = true
		res.OptOut = true
		c.writeStatus(ctx, res)
		c.appendMessage(ctx, lead.ID, model.SenderBot, res.Reply, isTest)
		metrics.TurnsTotal.WithLabelValues("optout").Inc()
		return res, nil
	}

	// 2) manual-mode guard: a human agent owns this conversation
	if lead.IsManualMode {
		c.log.Info("manual mode, suppressing reply",
			zap.String("lead_code", lead.LeadCode))
		metrics.TurnsTotal.WithLabelValues("suppressed").Inc()
		return res, nil
	}

	// 3) classification, fail-open: the conversation never blocks on the model
	analysis, err := c.classifier.Analyze(ctx, text, lead.Status)
	if err != nil {
		c.log.Warn("classifier failed, using neutral analysis",
			zap.String("lead_code", lead.LeadCode), zap.Error(err))
		metrics.AIFailuresTotal.WithLabelValues("classify").Inc()
		analysis = model.NeutralAnalysis(lead.Status)
	}
	res.Analysis = analysis

	// 4) name capture: side effect only, no status impact this turn
	leadName := lead.DisplayName()
	if analysis.Name != "" && leadName == "" {
		leadName = analysis.Name
		if err := c.leads.UpdateName(ctx, lead.ID, analysis.Name); err != nil {
			c.log.Error("update name failed",
				zap.String("lead_code", lead.LeadCode), zap.Error(err))
		}
	}

	// 5) ordered transition table, first match wins
	for _, rule := range statusRules {
		if rule.when(lead.Status, analysis) {
			res.NewStatus = rule.to
			break
		}
	}

	// 6/7/8) reply selection
	switch {
	case containsBookingIntent(text):
		// overrides whatever the table decided this turn
		res.NewStatus = model.StatusBookingOffered
		res.Reply = c.slots.ListingMessage(listedSlots)

	case lead.Status == model.StatusBookingOffered && isAllDigits(text):
		n, _ := strconv.Atoi(text)
		if slot, ok := c.slots.Select(n); ok {
			res.NewStatus = model.StatusBooked
			res.Reply = persona.BookingConfirmation(c.studioName, slot, leadName)
		} else {
			res.Reply = c.generate(ctx, lead, text, leadName, res.NewStatus, analysis, isTest)
		}

	default:
		res.Reply = c.generate(ctx, lead, text, leadName, res.NewStatus, analysis, isTest)
	}
	res.Replied = true

	// 9) persist outbound and the status change, best effort
	c.writeStatus(ctx, res)
	c.appendMessage(ctx, lead.ID, model.SenderBot, res.Reply, isTest)
	if err := c.leads.TouchLastContacted(ctx, lead.ID); err != nil {
		c.log.Error("touch last_contacted failed",
			zap.String("lead_code", lead.LeadCode), zap.Error(err))
	}

	metrics.TurnsTotal.WithLabelValues("replied").Inc()
	return res, nil
}

func (c *Controller) generate(
	ctx context.Context,
	lead *model.Lead,
	text, leadName string,
	status model.LeadStatus,
	analysis model.Analysis,
	isTest bool,
) string {
	history, err := c.msgs.Recent(ctx, lead.ID, historyLimit)
	if err != nil {
		c.log.Error("load history failed",
			zap.String("lead_code", lead.LeadCode), zap.Error(err))
	}

	reply, err := c.responder.Generate(ctx, text, history, leadName, status, analysis)
	if err != nil {
		c.log.Warn("responder failed, using fallback reply",
			zap.String("lead_code", lead.LeadCode), zap.Error(err))
		metrics.AIFailuresTotal.WithLabelValues("generate").Inc()
		return persona.ResponderFallbackReply
	}
	return reply
}

// writeStatus persists the status only when the turn changed it.
func (c *Controller) writeStatus(ctx context.Context, res *TurnResult) {
	if res.NewStatus == res.OldStatus {
		return
	}
	if err := c.leads.UpdateStatus(ctx, res.Lead.ID, res.NewStatus); err != nil {
		c.log.Error("update status failed",
			zap.String("lead_code", res.Lead.LeadCode),
			zap.String("to", res.NewStatus.String()), zap.Error(err))
		return
	}
	metrics.TransitionsTotal.WithLabelValues(res.OldStatus.String(), res.NewStatus.String()).Inc()
}

// appendMessage logs-and-continues on failure: a lost row must never cost
// the sender their reply.
func (c *Controller) appendMessage(ctx context.Context, leadID int64, sender model.SenderType, content string, isTest bool) {
	if _, err := c.msgs.Append(ctx, leadID, sender, content, isTest); err != nil {
		c.log.Error("append message failed",
			zap.Int64("lead_id", leadID),
			zap.String("sender", sender.String()), zap.Error(err))
	}
}

func containsBookingIntent(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range bookingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
