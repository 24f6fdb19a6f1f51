package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComplianceFilter_BannedPhrases(t *testing.T) {
	f := NewComplianceFilter()

	banned := []string{
		"Your win rate should improve with better positioning.",
		"That winrate is impressive for this bracket.",
		"You had a 70% chance of winning that last fight.",
		"This duo is S-tier material.",
		"Here is my tier list for arena champions.",
		"I predict you will dominate the next round.",
		"Next round, focus the healer first.",
		"You'll win if you keep playing like this.",
		"你下一局胜率更高",
		"这对组合是梯队排名前列的",
	}

	for _, text := range banned {
		assert.False(t, f.Allowed(text), "should be rejected: %q", text)
		assert.NotEmpty(t, f.Check(text), "should report violations: %q", text)
	}
}

func TestComplianceFilter_AllowedCoaching(t *testing.T) {
	f := NewComplianceFilter()

	allowed := []string{
		"Strong combat presence with 18k damage dealt across the rounds played.",
		"Your duo synergy stood out: well-timed shields kept your partner alive.",
		"Positioning in the later fights was the weakest part of this performance.",
		"Overall performance score: 72.5/100, ranked #2 of 16 players.",
		"Work on conserving cooldowns when the circle closes in.",
	}

	for _, text := range allowed {
		assert.True(t, f.Allowed(text), "should pass: %q", text)
	}
}

func TestComplianceFilter_TemplateOutputIsCompliant(t *testing.T) {
	// Il template deterministico è il percorso di degradazione del filtro:
	// non deve mai violare la policy che l'ha attivato
	f := NewComplianceFilter()

	text := "Partial analysis for PlayerA (Ahri), arena victory. " +
		"Overall performance score: 81.3/100, ranked #1 of 16 players. " +
		"Strongest area: combat at 84.0. Biggest opportunity: teamplay at 70.2."

	assert.True(t, f.Allowed(text))
}
