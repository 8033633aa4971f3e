package scoring

import (
	"strings"
	"testing"
)

func TestTextEngagementScore_EmptyText(t *testing.T) {
	if got := TextEngagementScore(""); got != 0 {
		t.Fatalf("expected 0 for empty text, got %d", got)
	}
}

func TestTextEngagementScore_ShortTextBaseOnly(t *testing.T) {
	if got := TextEngagementScore("necesito ayuda"); got != 10 {
		t.Fatalf("expected base 10, got %d", got)
	}
}

func TestTextEngagementScore_LengthBonuses(t *testing.T) {
	medium := strings.Repeat("a", 60)
	if got := TextEngagementScore(medium); got != 15 {
		t.Fatalf("expected 15 for >50 chars, got %d", got)
	}

	long := strings.Repeat("a", 210)
	if got := TextEngagementScore(long); got != 20 {
		t.Fatalf("expected 20 for >200 chars, got %d", got)
	}
}

func TestTextEngagementScore_KeywordsCaseInsensitiveSingleHit(t *testing.T) {
	// "urgente" twice still counts once: 10 base + 10 keyword.
	if got := TextEngagementScore("URGENTE urgente"); got != 20 {
		t.Fatalf("expected 20, got %d", got)
	}
}

func TestTextEngagementScore_ClampedAtFifty(t *testing.T) {
	// >200 chars (10+5+5) plus 50 points of keywords would be 70 unclamped.
	text := strings.Repeat("x", 201) + " hackeado ransomware urgente incidente"
	if got := TextEngagementScore(text); got != 50 {
		t.Fatalf("expected clamp at 50, got %d", got)
	}
}
