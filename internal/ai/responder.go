package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/edgetalent/smsbot/internal/model"
	"github.com/edgetalent/smsbot/internal/persona"
)

// Reply length bounds: the persona targets a single SMS segment, the hard
// cap keeps a runaway model from sending an essay.
const (
	replyTargetChars = 160
	replyMaxChars    = 300
)

// Responder generates the next outbound message from the persona prompt,
// the conversation history, and the turn's analysis.
type Responder struct {
	client     ChatClient
	studioName string
}

func NewResponder(client ChatClient, studioName string) *Responder {
	return &Responder{client: client, studioName: studioName}
}

// Generate produces free-form reply text for the default path of a turn.
func (r *Responder) Generate(
	ctx context.Context,
	text string,
	history []model.Message,
	leadName string,
	status model.LeadStatus,
	analysis model.Analysis,
) (string, error) {
	prompt := r.buildPrompt(text, history, leadName, status, analysis)

	out, err := r.client.Complete(ctx, persona.SalesPrompt(r.studioName), prompt)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}

	return clampReply(strings.TrimSpace(out)), nil
}

// Nudge produces a staged follow-up message for a lead who went quiet.
func (r *Responder) Nudge(ctx context.Context, leadName string, stage int, history []model.Message) (string, error) {
	prompt := persona.FollowUpPrompt(stage, leadName) + "\n\n" + FormatHistory(history)

	out, err := r.client.Complete(ctx, persona.SalesPrompt(r.studioName), prompt)
	if err != nil {
		return "", fmt.Errorf("generate follow-up: %w", err)
	}

	return clampReply(strings.TrimSpace(out)), nil
}

func (r *Responder) buildPrompt(
	text string,
	history []model.Message,
	leadName string,
	status model.LeadStatus,
	analysis model.Analysis,
) string {
	nameCtx := "You don't know the customer's name yet."
	if leadName != "" {
		nameCtx = fmt.Sprintf("The customer's name is %s.", leadName)
	}

	var b strings.Builder
	b.WriteString(nameCtx)
	b.WriteString("\nCurrent lead status: ")
	b.WriteString(status.String())
	b.WriteString("\n\n")
	b.WriteString(FormatHistory(history))
	fmt.Fprintf(&b, `

CRITICAL CONTEXT RULES:
1. ALWAYS check the last message in the conversation history above
2. If the lead just answered a question, ACKNOWLEDGE their answer first
3. DO NOT repeat the greeting if the conversation has already started
4. If you see previous messages in the history, this is an ONGOING conversation - continue from where you left off
5. The customer's LATEST message is: "%s" - respond to THIS message specifically, not to an imagined first contact
`, text)

	fmt.Fprintf(&b, "\nCustomer's latest message: \"%s\"\n", text)

	switch {
	case analysis.ObjectionType == model.ObjectionDistance:
		b.WriteString("\nDETECTED OBJECTION: DISTANCE/TOO FAR\nUse the '90% of pros started by traveling to us' rebuttal. Emphasize that the best opportunities are worth the journey.\n")
	case analysis.ObjectionType != model.ObjectionNone && analysis.ObjectionType != "":
		fmt.Fprintf(&b, "\nDETECTED OBJECTION: %s\nUse your training to handle this objection professionally and convert them.\n", analysis.ObjectionType)
	}
	if analysis.Intent == "stop" {
		b.WriteString("\nIMPORTANT: Customer wants to opt out. Acknowledge politely and confirm removal.\n")
	}

	switch status {
	case model.StatusNew:
		b.WriteString("\nNEXT STEP: Start qualifying them. Ask about their modeling goals and availability.\n")
	case model.StatusQualifying:
		b.WriteString("\nNEXT STEP: Continue qualification or move to booking if they're interested.\n")
	case model.StatusBookingOffered:
		b.WriteString("\nNEXT STEP: Confirm their slot selection or handle any remaining objections.\n")
	}

	fmt.Fprintf(&b, "\nGenerate your response (keep it under %d characters if possible, max %d):",
		replyTargetChars, replyMaxChars)
	return b.String()
}

// FormatHistory renders the message log the way the prompt expects:
// customer/human-agent/bot labels, oldest first.
func FormatHistory(history []model.Message) string {
	if len(history) == 0 {
		return "No previous conversation history."
	}

	lines := make([]string, 0, len(history)+1)
	lines = append(lines, "Previous conversation:")
	for _, msg := range history {
		var label string
		switch msg.SenderType {
		case model.SenderLead:
			label = "Customer"
		case model.SenderHuman:
			label = "Human Agent"
		default:
			label = "You"
		}
		lines = append(lines, label+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}

func clampReply(s string) string {
	runes := []rune(s)
	if len(runes) <= replyMaxChars {
		return s
	}
	return string(runes[:replyMaxChars])
}
