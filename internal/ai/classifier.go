package ai

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/edgetalent/smsbot/internal/model"
)

// Classifier turns a raw inbound message into a structured Analysis. The
// model is asked for a fixed line format and parsed tolerantly: any missing
// or malformed line degrades to a neutral default rather than failing.
type Classifier struct {
	client ChatClient
}

func NewClassifier(client ChatClient) *Classifier {
	return &Classifier{client: client}
}

const analysisPromptFmt = `Analyze this message from a potential modeling client and identify:
1. Intent (interested/objection/question/booking/stop/qualifying_response)
2. Objection type if any (distance/busy/cost/experience/nervous/thinking/none)
3. Sentiment (positive/neutral/negative)
4. Name mentioned (if any)
5. Suggested next status based on conversation flow

Current lead status: %s

Message: "%s"

Respond in this exact format:
Intent: [intent]
Objection: [objection_type]
Sentiment: [sentiment]
Name: [name or none]
Suggested_Status: [New/Qualifying/Booking_Offered/Booked/Objection_Distance/Human_Required]
`

var (
	intentRe    = regexp.MustCompile(`(?i)Intent:\s*(\w+)`)
	objectionRe = regexp.MustCompile(`(?i)Objection:\s*(\w+)`)
	sentimentRe = regexp.MustCompile(`(?i)Sentiment:\s*(\w+)`)
	nameRe      = regexp.MustCompile(`(?i)Name:\s*(.+)`)
	statusRe    = regexp.MustCompile(`(?i)Suggested_Status:\s*(\w+)`)
)

// Hard keyword rules: a message mentioning travel always counts as a
// distance objection, whatever the model said.
var distanceKeywords = []string{"far", "distance", "travel", "location", "where", "come to you"}

// Analyze classifies one inbound message given the lead's current status.
func (c *Classifier) Analyze(ctx context.Context, text string, current model.LeadStatus) (model.Analysis, error) {
	prompt := fmt.Sprintf(analysisPromptFmt, current, text)

	raw, err := c.client.Complete(ctx, "", prompt)
	if err != nil {
		return model.Analysis{}, fmt.Errorf("analyze message: %w", err)
	}

	a := parseAnalysis(raw, current)

	lower := strings.ToLower(text)
	for _, kw := range distanceKeywords {
		if strings.Contains(lower, kw) {
			a.ObjectionType = model.ObjectionDistance
			break
		}
	}
	return a, nil
}

func parseAnalysis(raw string, current model.LeadStatus) model.Analysis {
	a := model.NeutralAnalysis(current)

	if m := intentRe.FindStringSubmatch(raw); m != nil {
		a.Intent = strings.ToLower(m[1])
	}
	if m := objectionRe.FindStringSubmatch(raw); m != nil {
		a.ObjectionType = strings.ToLower(m[1])
	}
	if m := sentimentRe.FindStringSubmatch(raw); m != nil {
		a.Sentiment = strings.ToLower(m[1])
	}
	if m := nameRe.FindStringSubmatch(raw); m != nil {
		name := strings.TrimSpace(strings.SplitN(m[1], "\n", 2)[0])
		if !strings.EqualFold(name, "none") {
			a.Name = name
		}
	}
	if m := statusRe.FindStringSubmatch(raw); m != nil {
		if st, ok := model.ParseLeadStatus(m[1]); ok {
			a.SuggestedStatus = st
		}
	}
	return a
}
