package scoring

import "strings"

// engagementKeywords maps free-text signals to bonus points. One hit per
// keyword regardless of how many times it appears.
var engagementKeywords = map[string]int{
	"urgente":    10,
	"hackeado":   15,
	"ransomware": 15,
	"incidente":  10,
	"phishing":   10,
	"brecha":     10,
	"auditoria":  10,
	"auditoría":  10,
	"iso":        5,
	"27001":      5,
	"multa":      5,
	"gdpr":       5,
	"rgpd":       5,
}

const (
	engagementBase        = 10
	engagementLongBonus   = 5
	engagementLongerBonus = 5
	engagementMax         = 50
)

// TextEngagementScore rates how much effort and urgency a free-text answer
// signals. Base 10 for any non-empty text, +5 beyond 50 chars, +5 beyond
// 200 chars, plus keyword bonuses, clamped to [0, 50]. Pure function.
func TextEngagementScore(text string) int {
	if text == "" {
		return 0
	}

	score := engagementBase
	if len(text) > 50 {
		score += engagementLongBonus
	}
	if len(text) > 200 {
		score += engagementLongerBonus
	}

	lowered := strings.ToLower(text)
	for keyword, points := range engagementKeywords {
		if strings.Contains(lowered, keyword) {
			score += points
		}
	}

	if score > engagementMax {
		score = engagementMax
	}
	return score
}
