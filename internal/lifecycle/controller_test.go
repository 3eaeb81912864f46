package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgetalent/smsbot/internal/booking"
	"github.com/edgetalent/smsbot/internal/model"
	"github.com/edgetalent/smsbot/internal/persona"
	"github.com/edgetalent/smsbot/internal/repository"
)

// ---- fakes ----

type fakeLeads struct {
	byPhone map[string]*model.Lead
	byID    map[int64]*model.Lead
	nextID  int64

	statusErr error
	nameErr   error
}

func newFakeLeads() *fakeLeads {
	return &fakeLeads{
		byPhone: map[string]*model.Lead{},
		byID:    map[int64]*model.Lead{},
		nextID:  1,
	}
}

func (f *fakeLeads) add(lead *model.Lead) *model.Lead {
	if lead.ID == 0 {
		lead.ID = f.nextID
		f.nextID++
	}
	if lead.LeadCode == "" {
		lead.LeadCode = "#TST001"
	}
	f.byPhone[lead.Phone] = lead
	f.byID[lead.ID] = lead
	return lead
}

func (f *fakeLeads) GetOrCreate(_ context.Context, phone string) (*model.Lead, error) {
	if lead, ok := f.byPhone[phone]; ok {
		return lead, nil
	}
	return f.add(&model.Lead{Phone: phone, Status: model.StatusNew, CreatedAt: time.Now()}), nil
}

func (f *fakeLeads) GetByID(_ context.Context, id int64) (*model.Lead, error) {
	if lead, ok := f.byID[id]; ok {
		return lead, nil
	}
	return nil, repository.ErrLeadNotFound
}

func (f *fakeLeads) GetByPhone(_ context.Context, phone string) (*model.Lead, error) {
	if lead, ok := f.byPhone[phone]; ok {
		return lead, nil
	}
	return nil, repository.ErrLeadNotFound
}

func (f *fakeLeads) CreateTest(_ context.Context, phone, name string) (*model.Lead, error) {
	lead := &model.Lead{Phone: phone, Status: model.StatusNew, IsTest: true, CreatedAt: time.Now()}
	if name != "" {
		lead.Name = sql.NullString{String: name, Valid: true}
	}
	return f.add(lead), nil
}

func (f *fakeLeads) UpdateStatus(_ context.Context, id int64, status model.LeadStatus) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	f.byID[id].Status = status
	return nil
}

func (f *fakeLeads) UpdateName(_ context.Context, id int64, name string) error {
	if f.nameErr != nil {
		return f.nameErr
	}
	f.byID[id].Name = sql.NullString{String: name, Valid: true}
	return nil
}

func (f *fakeLeads) SetManualMode(_ context.Context, id int64, enabled bool) error {
	f.byID[id].IsManualMode = enabled
	return nil
}

func (f *fakeLeads) TouchLastContacted(_ context.Context, id int64) error {
	f.byID[id].LastContactedAt = sql.NullTime{Time: time.Now(), Valid: true}
	return nil
}

func (f *fakeLeads) IncrementFollowUp(_ context.Context, id int64) error {
	f.byID[id].FollowUpCount++
	return nil
}

func (f *fakeLeads) List(_ context.Context, _, _ int) ([]model.Lead, error) { return nil, nil }

func (f *fakeLeads) ListStale(_ context.Context, _ time.Time, _ int) ([]model.Lead, error) {
	return nil, nil
}

type fakeMessages struct {
	rows      []model.Message
	appendErr error
}

func (f *fakeMessages) Append(_ context.Context, leadID int64, sender model.SenderType, content string, isTest bool) (*model.Message, error) {
	if f.appendErr != nil {
		return nil, f.appendErr
	}
	msg := model.Message{
		LeadID:     leadID,
		SenderType: sender,
		Content:    content,
		IsTest:     isTest,
		CreatedAt:  time.Now(),
	}
	f.rows = append(f.rows, msg)
	return &msg, nil
}

func (f *fakeMessages) Recent(_ context.Context, leadID int64, limit int) ([]model.Message, error) {
	var out []model.Message
	for _, m := range f.rows {
		if m.LeadID == leadID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeMessages) LastFromLead(_ context.Context, leadID int64) (*model.Message, error) {
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].LeadID == leadID && f.rows[i].SenderType == model.SenderLead {
			return &f.rows[i], nil
		}
	}
	return nil, nil
}

func (f *fakeMessages) bySender(sender model.SenderType) []model.Message {
	var out []model.Message
	for _, m := range f.rows {
		if m.SenderType == sender {
			out = append(out, m)
		}
	}
	return out
}

type fakeClassifier struct {
	analysis model.Analysis
	err      error
	calls    int
}

func (f *fakeClassifier) Analyze(_ context.Context, _ string, current model.LeadStatus) (model.Analysis, error) {
	f.calls++
	if f.err != nil {
		return model.Analysis{}, f.err
	}
	return f.analysis, nil
}

type fakeResponder struct {
	reply string
	err   error
	calls int
}

func (f *fakeResponder) Generate(_ context.Context, _ string, _ []model.Message, _ string, _ model.LeadStatus, _ model.Analysis) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// ---- helpers ----

func neutral(current model.LeadStatus) model.Analysis {
	return model.NeutralAnalysis(current)
}

type fixture struct {
	leads      *fakeLeads
	msgs       *fakeMessages
	classifier *fakeClassifier
	responder  *fakeResponder
	ctrl       *Controller
}

func newFixture() *fixture {
	f := &fixture{
		leads:      newFakeLeads(),
		msgs:       &fakeMessages{},
		classifier: &fakeClassifier{analysis: neutral(model.StatusNew)},
		responder:  &fakeResponder{reply: "Sounds great! Does Saturday work for you?"},
	}
	f.ctrl = NewController(f.leads, f.msgs, f.classifier, f.responder,
		booking.NewCatalog(nil), "Aperture Studios", nil)
	return f
}

// ---- tests ----

func TestOptOutKeywordsEndConversation(t *testing.T) {
	for _, kw := range []string{"STOP", "stop", "Stopall", "UNSUBSCRIBE", "cancel", "End", "quit", "  STOP  "} {
		t.Run(kw, func(t *testing.T) {
			f := newFixture()

			res, err := f.ctrl.HandleInbound(context.Background(), "+447700900123", kw)
			require.NoError(t, err)

			assert.True(t, res.OptOut)
			assert.True(t, res.Replied)
			assert.Equal(t, persona.OptOutReply, res.Reply)
			assert.Equal(t, model.StatusHumanRequired, res.NewStatus)
			assert.Equal(t, model.StatusHumanRequired, res.Lead.Status)
			assert.Zero(t, f.classifier.calls, "opt-out must not hit the classifier")
			assert.Zero(t, f.responder.calls)
		})
	}
}

func TestOptOutMidSentenceIsNotOptOut(t *testing.T) {
	f := newFixture()

	res, err := f.ctrl.HandleInbound(context.Background(), "+447700900123", "please stop texting me so late")
	require.NoError(t, err)

	assert.False(t, res.OptOut)
	assert.Equal(t, 1, f.classifier.calls)
}

func TestManualModeSuppressesReply(t *testing.T) {
	f := newFixture()
	lead := f.leads.add(&model.Lead{
		Phone:        "+447700900123",
		Status:       model.StatusQualifying,
		IsManualMode: true,
		CreatedAt:    time.Now(),
	})

	res, err := f.ctrl.HandleInbound(context.Background(), lead.Phone, "what time works?")
	require.NoError(t, err)

	assert.False(t, res.Replied)
	assert.Empty(t, res.Reply)
	assert.Equal(t, model.StatusQualifying, res.NewStatus)
	assert.Zero(t, f.classifier.calls)
	assert.Zero(t, f.responder.calls)

	// inbound is still recorded
	inbound := f.msgs.bySender(model.SenderLead)
	require.Len(t, inbound, 1)
	assert.Equal(t, "what time works?", inbound[0].Content)
	assert.Empty(t, f.msgs.bySender(model.SenderBot))
}

func TestOptOutBeatsManualMode(t *testing.T) {
	f := newFixture()
	lead := f.leads.add(&model.Lead{
		Phone:        "+447700900123",
		Status:       model.StatusQualifying,
		IsManualMode: true,
		CreatedAt:    time.Now(),
	})

	res, err := f.ctrl.HandleInbound(context.Background(), lead.Phone, "STOP")
	require.NoError(t, err)

	assert.True(t, res.OptOut)
	assert.True(t, res.Replied)
	assert.Equal(t, model.StatusHumanRequired, lead.Status)
}

func TestClassifierFailureFailsOpen(t *testing.T) {
	f := newFixture()
	f.classifier.err = errors.New("model timeout")

	res, err := f.ctrl.HandleInbound(context.Background(), "+447700900123", "hi, tell me more")
	require.NoError(t, err)

	assert.True(t, res.Replied)
	assert.Equal(t, f.responder.reply, res.Reply)
	assert.Equal(t, model.StatusNew, res.NewStatus, "neutral analysis must not move the status")
	assert.Equal(t, model.NeutralAnalysis(model.StatusNew), res.Analysis)
}

func TestResponderFailureUsesFallbackReply(t *testing.T) {
	f := newFixture()
	f.responder.err = errors.New("model down")

	res, err := f.ctrl.HandleInbound(context.Background(), "+447700900123", "hello")
	require.NoError(t, err)

	assert.True(t, res.Replied)
	assert.Equal(t, persona.ResponderFallbackReply, res.Reply)
}

func TestNameCaptureIsFirstWriteWins(t *testing.T) {
	f := newFixture()
	f.classifier.analysis = model.Analysis{
		Intent:        "interested",
		ObjectionType: model.ObjectionNone,
		Sentiment:     model.SentimentNeutral,
		Name:          "Sophie",
	}

	res, err := f.ctrl.HandleInbound(context.Background(), "+447700900123", "I'm Sophie")
	require.NoError(t, err)
	assert.Equal(t, "Sophie", res.Lead.DisplayName())

	// a later, different name never overwrites
	f.classifier.analysis.Name = "Kate"
	_, err = f.ctrl.HandleInbound(context.Background(), "+447700900123", "call me Kate")
	require.NoError(t, err)
	assert.Equal(t, "Sophie", res.Lead.DisplayName())
}

func TestDistanceObjectionWinsOverOtherRules(t *testing.T) {
	f := newFixture()
	// distance plus negative sentiment: distance rule is first
	f.classifier.analysis = model.Analysis{
		Intent:        "objection",
		ObjectionType: model.ObjectionDistance,
		Sentiment:     model.SentimentNegative,
	}

	res, err := f.ctrl.HandleInbound(context.Background(), "+447700900123", "that's way too far for me")
	require.NoError(t, err)

	assert.Equal(t, model.StatusObjectionDistance, res.NewStatus)
	assert.Equal(t, model.StatusObjectionDistance, res.Lead.Status)
}

func TestNegativeComplexObjectionEscalates(t *testing.T) {
	f := newFixture()
	f.classifier.analysis = model.Analysis{
		Intent:        "objection",
		ObjectionType: model.ObjectionCost,
		Sentiment:     model.SentimentNegative,
	}

	res, err := f.ctrl.HandleInbound(context.Background(), "+447700900123", "this sounds like a scam, it always costs money")
	require.NoError(t, err)

	assert.Equal(t, model.StatusHumanRequired, res.NewStatus)
}

func TestNegativeWithoutObjectionDoesNotEscalate(t *testing.T) {
	f := newFixture()
	f.classifier.analysis = model.Analysis{
		Intent:        "question",
		ObjectionType: model.ObjectionNone,
		Sentiment:     model.SentimentNegative,
	}

	res, err := f.ctrl.HandleInbound(context.Background(), "+447700900123", "ugh, monday was awful")
	require.NoError(t, err)

	assert.Equal(t, model.StatusNew, res.NewStatus)
}

func TestNewPositiveProgressesToQualifying(t *testing.T) {
	f := newFixture()
	f.classifier.analysis = model.Analysis{
		Intent:        "interested",
		ObjectionType: model.ObjectionNone,
		Sentiment:     model.SentimentPositive,
	}

	res, err := f.ctrl.HandleInbound(context.Background(), "+447700900123", "yes I'd love to hear more!")
	require.NoError(t, err)

	assert.Equal(t, model.StatusQualifying, res.NewStatus)
}

func TestQualifyingPositiveStaysPut(t *testing.T) {
	f := newFixture()
	lead := f.leads.add(&model.Lead{Phone: "+447700900123", Status: model.StatusQualifying, CreatedAt: time.Now()})
	f.classifier.analysis = model.Analysis{
		Intent:    "interested",
		Sentiment: model.SentimentPositive,
	}

	res, err := f.ctrl.HandleInbound(context.Background(), lead.Phone, "sounds fun")
	require.NoError(t, err)

	assert.Equal(t, model.StatusQualifying, res.NewStatus)
}

func TestBookingKeywordOffersSlots(t *testing.T) {
	for _, msg := range []string{"can I book?", "what slots do you have", "I'd like an appointment", "BOOK me in"} {
		t.Run(msg, func(t *testing.T) {
			f := newFixture()

			res, err := f.ctrl.HandleInbound(context.Background(), "+447700900123", msg)
			require.NoError(t, err)

			assert.Equal(t, model.StatusBookingOffered, res.NewStatus)
			assert.Contains(t, res.Reply, "1. Tomorrow at 2:00 PM")
			assert.Contains(t, res.Reply, "3. Friday at 4:30 PM")
			assert.NotContains(t, res.Reply, "4. Saturday", "listing shows three slots")
			assert.Zero(t, f.responder.calls, "slot listing is fixed text")
		})
	}
}

func TestBookingKeywordOverridesRuleTable(t *testing.T) {
	f := newFixture()
	// distance objection would set Objection_Distance, but they asked to book
	f.classifier.analysis = model.Analysis{
		Intent:        "booking",
		ObjectionType: model.ObjectionDistance,
		Sentiment:     model.SentimentNeutral,
	}

	res, err := f.ctrl.HandleInbound(context.Background(), "+447700900123", "it's far but let's book anyway")
	require.NoError(t, err)

	assert.Equal(t, model.StatusBookingOffered, res.NewStatus)
}

func TestDigitReplySelectsSlot(t *testing.T) {
	f := newFixture()
	lead := f.leads.add(&model.Lead{
		Phone:     "+447700900123",
		Name:      sql.NullString{String: "Sophie", Valid: true},
		Status:    model.StatusBookingOffered,
		CreatedAt: time.Now(),
	})

	res, err := f.ctrl.HandleInbound(context.Background(), lead.Phone, "2")
	require.NoError(t, err)

	assert.Equal(t, model.StatusBooked, res.NewStatus)
	assert.Contains(t, res.Reply, "Thursday at 11:00 AM")
	assert.Contains(t, res.Reply, "Sophie")
	assert.Zero(t, f.responder.calls)
}

func TestDigitReplyOutOfRangeFallsThroughToResponder(t *testing.T) {
	f := newFixture()
	lead := f.leads.add(&model.Lead{Phone: "+447700900123", Status: model.StatusBookingOffered, CreatedAt: time.Now()})

	res, err := f.ctrl.HandleInbound(context.Background(), lead.Phone, "9")
	require.NoError(t, err)

	assert.NotEqual(t, model.StatusBooked, res.NewStatus)
	assert.Equal(t, f.responder.reply, res.Reply)
	assert.Equal(t, 1, f.responder.calls)
}

func TestDigitReplyOutsideBookingOfferedIsJustText(t *testing.T) {
	f := newFixture()
	lead := f.leads.add(&model.Lead{Phone: "+447700900123", Status: model.StatusQualifying, CreatedAt: time.Now()})

	res, err := f.ctrl.HandleInbound(context.Background(), lead.Phone, "2")
	require.NoError(t, err)

	assert.NotEqual(t, model.StatusBooked, res.NewStatus)
	assert.Equal(t, 1, f.responder.calls)
}

func TestPersistenceFailuresNeverBlockTheReply(t *testing.T) {
	f := newFixture()
	f.msgs.appendErr = errors.New("db down")
	f.leads.statusErr = errors.New("db down")
	f.classifier.analysis = model.Analysis{
		Intent:    "interested",
		Sentiment: model.SentimentPositive,
	}

	res, err := f.ctrl.HandleInbound(context.Background(), "+447700900123", "count me in!")
	require.NoError(t, err)

	assert.True(t, res.Replied)
	assert.Equal(t, f.responder.reply, res.Reply)
}

func TestTurnPersistsInboundAndOutbound(t *testing.T) {
	f := newFixture()

	res, err := f.ctrl.HandleInbound(context.Background(), "+447700900123", "hello there")
	require.NoError(t, err)
	require.True(t, res.Replied)

	inbound := f.msgs.bySender(model.SenderLead)
	outbound := f.msgs.bySender(model.SenderBot)
	require.Len(t, inbound, 1)
	require.Len(t, outbound, 1)
	assert.Equal(t, "hello there", inbound[0].Content)
	assert.Equal(t, res.Reply, outbound[0].Content)
	assert.True(t, res.Lead.LastContactedAt.Valid)
}

func TestSandboxTurnFlagsMessagesAsTest(t *testing.T) {
	f := newFixture()
	lead := f.leads.add(&model.Lead{Phone: "+447700909001", Status: model.StatusNew, IsTest: true, CreatedAt: time.Now()})

	_, err := f.ctrl.HandleTurn(context.Background(), lead, "hi!", true)
	require.NoError(t, err)

	for _, m := range f.msgs.rows {
		assert.True(t, m.IsTest)
	}
}

func TestBookedLeadKeepsTalkingToResponder(t *testing.T) {
	f := newFixture()
	lead := f.leads.add(&model.Lead{Phone: "+447700900123", Status: model.StatusBooked, CreatedAt: time.Now()})

	res, err := f.ctrl.HandleInbound(context.Background(), lead.Phone, "what should I wear?")
	require.NoError(t, err)

	assert.Equal(t, model.StatusBooked, res.NewStatus)
	assert.Equal(t, 1, f.responder.calls)
}

func TestReplayWithDeterministicCollaboratorsIsIdempotent(t *testing.T) {
	f := newFixture()
	f.classifier.analysis = model.Analysis{
		Intent:    "interested",
		Sentiment: model.SentimentPositive,
	}

	snapshot := func() *model.Lead {
		return f.leads.add(&model.Lead{
			ID: 1, Phone: "+447700900123", LeadCode: "#ABC123",
			Status: model.StatusNew, CreatedAt: time.Now(),
		})
	}

	first, err := f.ctrl.HandleTurn(context.Background(), snapshot(), "love the sound of this", false)
	require.NoError(t, err)
	second, err := f.ctrl.HandleTurn(context.Background(), snapshot(), "love the sound of this", false)
	require.NoError(t, err)

	assert.Equal(t, first.OldStatus, second.OldStatus)
	assert.Equal(t, first.NewStatus, second.NewStatus)
	assert.Equal(t, first.Reply, second.Reply)
}

func TestContainsBookingIntent(t *testing.T) {
	assert.True(t, containsBookingIntent("I want to BOOK"))
	assert.True(t, containsBookingIntent("any slots left?"))
	assert.True(t, containsBookingIntent("appointment please"))
	assert.False(t, containsBookingIntent("sounds good"))
	// substring match is deliberate: "facebook" still offers slots
	assert.True(t, containsBookingIntent("found you on facebook"))
}

func TestIsAllDigits(t *testing.T) {
	assert.True(t, isAllDigits("2"))
	assert.True(t, isAllDigits("42"))
	assert.False(t, isAllDigits(""))
	assert.False(t, isAllDigits("2pm"))
	assert.False(t, isAllDigits("two"))
}

func TestWhitespaceOnlyDigitHandling(t *testing.T) {
	f := newFixture()
	lead := f.leads.add(&model.Lead{Phone: "+447700900123", Status: model.StatusBookingOffered, CreatedAt: time.Now()})

	// surrounding whitespace is trimmed before selection
	res, err := f.ctrl.HandleInbound(context.Background(), lead.Phone, "  1  ")
	require.NoError(t, err)
	assert.Equal(t, model.StatusBooked, res.NewStatus)
	assert.True(t, strings.Contains(res.Reply, "Tomorrow at 2:00 PM"))
}
