package analysis

import (
	"fmt"
	"strings"

	"github.com/biodoia/goriftcoach/internal/llm"
	"github.com/biodoia/goriftcoach/internal/scoring"
)

// TemplateNarration costruisce la narrazione deterministica di riserva
// dai soli numeri di PlayerScore. È il percorso di degradazione dello
// stage narrate: valido, marcato degraded, mai un fallimento.
func TemplateNarration(strategy scoring.Strategy, scores []scoring.PlayerScore, requester *scoring.PlayerScore) *llm.Narration {
	if strategy.Mode == scoring.ModeFallback {
		return fallbackNarration(requester)
	}

	if requester == nil && len(scores) > 0 {
		requester = &scores[0]
	}
	if requester == nil {
		return fallbackNarration(nil)
	}

	best, worst := bestAndWorstDimension(strategy, *requester)

	outcome := "defeat"
	emotion := llm.EmotionSympathetic
	if requester.Win {
		outcome = "victory"
		emotion = llm.EmotionEncouraging
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Partial analysis for %s (%s), %s mode %s. ",
		requester.Summoner, requester.Champion, string(strategy.Mode), outcome)
	fmt.Fprintf(&b, "Overall performance score: %.1f/100, ranked #%d of %d players. ",
		requester.Overall, requester.Rank, len(scores))
	fmt.Fprintf(&b, "Strongest area: %s at %.1f. ", best, requester.Dimension(best))
	fmt.Fprintf(&b, "Biggest opportunity: %s at %.1f.", worst, requester.Dimension(worst))

	return &llm.Narration{
		NarrativeText: b.String(),
		TTSSummary: fmt.Sprintf("Overall %.1f out of 100, rank %d. Strongest: %s. Work on: %s.",
			requester.Overall, requester.Rank, best, worst),
		EmotionTag: emotion,
		Highlights: []string{
			fmt.Sprintf("%s: %.1f/100", best, requester.Dimension(best)),
			fmt.Sprintf("overall: %.1f/100 (rank %d)", requester.Overall, requester.Rank),
		},
		Improvements: []string{
			fmt.Sprintf("%s: %.1f/100", worst, requester.Dimension(worst)),
		},
	}
}

// fallbackNarration copre le modalità non supportate
func fallbackNarration(requester *scoring.PlayerScore) *llm.Narration {
	text := "Analysis unavailable for this game mode. Basic performance data was recorded, but detailed coaching is not supported here yet."
	if requester != nil {
		text = fmt.Sprintf(
			"Analysis unavailable for this game mode. %s (%s) finished with a combat score of %.1f/100. Detailed coaching is not supported here yet.",
			requester.Summoner, requester.Champion, requester.Combat)
	}

	return &llm.Narration{
		NarrativeText: text,
		TTSSummary:    "This game mode is not supported for detailed analysis.",
		EmotionTag:    llm.EmotionNeutral,
		Highlights:    []string{"mode not supported"},
		Improvements:  []string{"try a supported mode for a full analysis"},
	}
}

// bestAndWorstDimension individua la dimensione più forte e più debole
// tra quelle della strategia; pareggi risolti dall'ordine di dichiarazione
func bestAndWorstDimension(strategy scoring.Strategy, s scoring.PlayerScore) (best, worst string) {
	if len(strategy.Dimensions) == 0 {
		return scoring.DimCombat, scoring.DimCombat
	}
	best, worst = strategy.Dimensions[0], strategy.Dimensions[0]
	for _, dim := range strategy.Dimensions[1:] {
		if s.Dimension(dim) > s.Dimension(best) {
			best = dim
		}
		if s.Dimension(dim) < s.Dimension(worst) {
			worst = dim
		}
	}
	return best, worst
}
