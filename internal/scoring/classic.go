package scoring

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/biodoia/goriftcoach/internal/riot"
)

// ErrEmptyMatch viene restituito quando la partita non ha partecipanti
var ErrEmptyMatch = errors.New("match has no participants")

// ClassicWeights pesi delle cinque dimensioni in modalità classic
var ClassicWeights = map[string]float64{
	DimCombat:     0.30,
	DimEconomy:    0.25,
	DimObjectives: 0.20,
	DimVision:     0.15,
	DimTeamplay:   0.10,
}

// ClassicScorer calcola le cinque dimensioni complete per le
// partite su mappa classica.
type ClassicScorer struct{}

// Score implementa Scorer
func (ClassicScorer) Score(bundle *riot.MatchBundle) ([]PlayerScore, error) {
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
			Vision:        visionScore(p, mins),
			Objectives:    objectivesScore(p),
			Teamplay:      teamplayScore(p, team),
		}
		s.Overall = weighted(s, ClassicWeights)

		if err := validateScore(s); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}

	rankScores(scores)
	return scores, nil
}

// combatScore: quota danni di squadra e KDA. Monotono nella quota danni.
func combatScore(p riot.Participant, team *teamTotals) float64 {
	var dmgShare float64
	if team != nil && team.damage > 0 {
		dmgShare = float64(p.TotalDamageDealtToChampions) / float64(team.damage)
	}
	deaths := p.Deaths
	if deaths < 1 {
		deaths = 1
	}
	kda := float64(p.Kills+p.Assists) / float64(deaths)

	return clamp100(60*norm(dmgShare, 0.40) + 40*norm(kda, 6))
}

// economyScore: oro al minuto, CS al minuto e oro early dalla timeline
func economyScore(p riot.Participant, mins float64, earlyGold map[int]int) float64 {
	gpm := float64(p.GoldEarned) / mins
	cspm := float64(p.TotalMinionsKilled+p.NeutralMinionsKilled) / mins

	gpmNorm := norm(gpm, 450)
	cspmNorm := norm(cspm, 9)

	earlyNorm := gpmNorm // senza timeline il peso early segue il gpm
	if gold, ok := earlyGold[p.ParticipantID]; ok {
		earlyNorm = norm(float64(gold), 4000)
	}

	return clamp100(50*gpmNorm + 30*cspmNorm + 20*earlyNorm)
}

// visionScore: vision score al minuto e ward neutralizzate
func visionScore(p riot.Participant, mins float64) float64 {
	vspm := float64(p.VisionScore) / mins
	return clamp100(70*norm(vspm, 1.5) + 30*norm(float64(p.WardsKilled), 6))
}

// objectivesScore: partecipazione agli obiettivi maggiori
func objectivesScore(p riot.Participant) float64 {
	points := float64(p.DragonKills)*2 +
		float64(p.BaronKills)*3 +
		float64(p.TurretTakedowns) +
		float64(p.InhibitorTakedowns)*2 +
		float64(p.ObjectivesStolen)*3
	return clamp100(100 * norm(points, 12))
}

// teamplayScore: kill participation, CC e supporto difensivo
func teamplayScore(p riot.Participant, team *teamTotals) float64 {
	var kp float64
	if team != nil && team.kills > 0 {
		kp = float64(p.Kills+p.Assists) / float64(team.kills)
	}
	ccNorm := norm(float64(p.TimeCCingOthers), 60)
	supportNorm := norm(float64(p.TotalHealsOnTeammates+p.TotalDamageShieldedOnTeammates), 3000)

	return clamp100(50*norm(kp, 0.7) + 25*ccNorm + 25*supportNorm)
}

// earlyGoldByParticipant estrae l'oro totale di ogni partecipante dal
// frame della timeline più vicino al minuto 10
func earlyGoldByParticipant(timeline *riot.MatchTimeline) map[int]int {
	result := make(map[int]int)
	if timeline == nil || len(timeline.Info.Frames) == 0 {
		return result
	}

	const targetMs = 10 * 60 * 1000
	best := timeline.Info.Frames[0]
	for _, frame := range timeline.Info.Frames {
		if frame.Timestamp <= targetMs {
			best = frame
		} else {
			break
		}
	}

	for key, pf := range best.ParticipantFrames {
		id := pf.ParticipantID
		if id == 0 {
			// Alcune versioni della timeline omettono participantId nel frame
			if parsed, err := strconv.Atoi(key); err == nil {
				id = parsed
			}
		}
		result[id] = pf.TotalGold
	}
	return result
}

// validateScore intercetta violazioni di contratto del scorer (NaN, out of range)
func validateScore(s PlayerScore) error {
	for _, dim := range []string{DimCombat, DimEconomy, DimVision, DimObjectives, DimTeamplay} {
		v := s.Dimension(dim)
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 100 {
			return fmt.Errorf("scorer produced invalid %s value %v for participant %d", dim, v, s.ParticipantID)
		}
	}
	if math.IsNaN(s.Overall) || s.Overall < 0 || s.Overall > 100 {
		return fmt.Errorf("scorer produced invalid overall %v for participant %d", s.Overall, s.ParticipantID)
	}
	return nil
}
