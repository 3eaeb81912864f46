package model

// Objection types the classifier can report.
const (
	ObjectionNone       = "none"
	ObjectionDistance   = "distance"
	ObjectionBusy       = "busy"
	ObjectionCost       = "cost"
	ObjectionExperience = "experience"
	ObjectionNervous    = "nervous"
	ObjectionThinking   = "thinking"
)

// Sentiment values the classifier can report.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// Analysis is the structured result of classifying one inbound message.
// It is ephemeral: produced per turn, consumed by the lifecycle controller,
// never persisted.
type Analysis struct {
	Intent          string
	ObjectionType   string
	Sentiment       string
	Name            string // "" when none detected
	SuggestedStatus LeadStatus
}

// NeutralAnalysis is the fail-open fallback used when classification fails:
// the conversation must continue even when the model is unavailable.
func NeutralAnalysis(current LeadStatus) Analysis {
	return Analysis{
		Intent:          "unknown",
		ObjectionType:   ObjectionNone,
		Sentiment:       SentimentNeutral,
		SuggestedStatus: current,
	}
}
