package scoring

import (
	"github.com/biodoia/goriftcoach/internal/riot"
)

// BlindWeights pesi delle tre dimensioni in modalità blind (no-lane):
// vision e objectives sono forzate a 0 e omesse dal prompt.
var BlindWeights = map[string]float64{
	DimCombat:   0.50,
	DimEconomy:  0.30,
	DimTeamplay: 0.20,
}

// BlindScorer calcola tre dimensioni per le modalità senza corsie,
// dove vision e obiettivi non sono significativi.
type BlindScorer struct{}

// Score implementa Scorer
func (BlindScorer) Score(bundle *riot.MatchBundle) ([]PlayerScore, error) {
	detail := bundle.Detail
	if detail == nil || len(detail.Info.Participants) == 0 {
		return nil, ErrEmptyMatch
	}

	mins := minutes(detail)
	totals := totalsByTeam(detail)
	earlyGold := earlyGoldByParticipant(bundle.Timeline)

	scores := make([]PlayerScore, 0, len(detail.Info.Participants))
	for _, p := range detail.Info.Participants {
		team := totals[p.TeamID]

		s := PlayerScore{
			ParticipantID: p.ParticipantID,
			Summoner:      p.Identity(),
			Champion:      p.ChampionName,
			Win:           p.Win,
			Combat:        combatScore(p, team),
			Economy:       economyScore(p, mins, earlyGold),
			Teamplay:      teamplayScore(p, team),
		}
		s.Overall = weighted(s, BlindWeights)

		if err := validateScore(s); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}

	rankScores(scores)
	return scores, nil
}
