package scoring

import (
	"github.com/biodoia/goriftcoach/internal/riot"
)

// FallbackWeights: solo combat, per restare totali su modalità ignote
var FallbackWeights = map[string]float64{
	DimCombat: 1.0,
}

// FallbackScorer copre le modalità non riconosciute: calcola una sola
// dimensione generica così che la riga persistita resti completa
// (un punteggio per partecipante) anche senza formule dedicate.
type FallbackScorer struct{}

// Score implementa Scorer
func (FallbackScorer) Score(bundle *riot.MatchBundle) ([]PlayerScore, error) {
	detail := bundle.Detail
	if detail == nil || len(detail.Info.Participants) == 0 {
		return nil, ErrEmptyMatch
	}

	totals := totalsByTeam(detail)

	scores := make([]PlayerScore, 0, len(detail.Info.Participants))
	for _, p := range detail.Info.Participants {
		s := PlayerScore{
			ParticipantID: p.ParticipantID,
			Summoner:      p.Identity(),
			Champion:      p.ChampionName,
			Win:           p.Win,
			Combat:        combatScore(p, totals[p.TeamID]),
		}
		s.Overall = weighted(s, FallbackWeights)

		if err := validateScore(s); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}

	rankScores(scores)
	return scores, nil
}
