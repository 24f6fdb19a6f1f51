package scoring

import (
	"github.com/biodoia/goriftcoach/internal/riot"
)

// ArenaWeights: combat e duo_synergy (mappata su teamplay)
var ArenaWeights = map[string]float64{
	DimCombat:   0.60,
	DimTeamplay: 0.40,
}

// ArenaScorer calcola i punteggi per le partite a round in coppia.
// La sinergia di coppia è mappata sulla dimensione teamplay.
type ArenaScorer struct{}

// Score implementa Scorer
func (ArenaScorer) Score(bundle *riot.MatchBundle) ([]PlayerScore, error) {
	detail := bundle.Detail
	if detail == nil || len(detail.Info.Participants) == 0 {
		return nil, ErrEmptyMatch
	}

	totals := totalsByTeam(detail)

	scores := make([]PlayerScore, 0, len(detail.Info.Participants))
	for _, p := range detail.Info.Participants {
		team := totals[p.TeamID]

		s := PlayerScore{
			ParticipantID: p.ParticipantID,
			Summoner:      p.Identity(),
			Champion:      p.ChampionName,
			Win:           p.Win,
			Combat:        combatScore(p, team),
			Teamplay:      duoSynergyScore(p),
		}
		s.Overall = weighted(s, ArenaWeights)

		if err := validateScore(s); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}

	rankScores(scores)
	return scores, nil
}

// duoSynergyScore: assist, supporto difensivo al partner e piazzamento.
// Monotono nel piazzamento (piazzamento migliore, punteggio più alto).
func duoSynergyScore(p riot.Participant) float64 {
	assistNorm := norm(float64(p.Assists), 15)
	supportNorm := norm(float64(p.TotalHealsOnTeammates+p.TotalDamageShieldedOnTeammates), 4000)

	var placementNorm float64
	if p.Placement >= 1 && p.Placement <= 8 {
		placementNorm = float64(9-p.Placement) / 8.0
	}

	return clamp100(40*assistNorm + 30*supportNorm + 30*placementNorm)
}
