package scoring

import (
	"math"
	"sort"

	"github.com/biodoia/goriftcoach/internal/riot"
)

// AlgorithmVersion identifica la versione delle formule di scoring.
// Va incrementata a ogni modifica delle formule o dei pesi.
const AlgorithmVersion = "2.1.0"

// Mode identifica la modalità di gioco di una partita
type Mode string

const (
	ModeClassic  Mode = "classic"
	ModeBlind    Mode = "blind"
	ModeArena    Mode = "arena"
	ModeFallback Mode = "fallback"
)

// Nomi delle dimensioni di punteggio
const (
	DimCombat     = "combat"
	DimEconomy    = "economy"
	DimVision     = "vision"
	DimObjectives = "objectives"
	DimTeamplay   = "teamplay"
)

// PlayerScore è il punteggio multidimensionale di un partecipante.
// Ogni dimensione è in [0, 100]; le dimensioni omesse dalla modalità
// valgono 0 e non pesano sull'overall.
type PlayerScore struct {
	ParticipantID int    `json:"participant_id"`
	Summoner      string `json:"summoner_identifier"`
	Champion      string `json:"champion"`
	Win           bool   `json:"win"`

	Combat     float64 `json:"combat"`
	Economy    float64 `json:"economy"`
	Vision     float64 `json:"vision"`
	Objectives float64 `json:"objectives"`
	Teamplay   float64 `json:"teamplay"`

	Overall float64 `json:"overall"`
	Rank    int     `json:"rank"`
}

// Dimension restituisce il valore della dimensione per nome
func (s PlayerScore) Dimension(name string) float64 {
	switch name {
	case DimCombat:
		return s.Combat
	case DimEconomy:
		return s.Economy
	case DimVision:
		return s.Vision
	case DimObjectives:
		return s.Objectives
	case DimTeamplay:
		return s.Teamplay
	}
	return 0
}

// Scorer calcola i punteggi di tutti i partecipanti di una partita.
// Deve essere deterministico per un dato MatchBundle.
type Scorer interface {
	Score(bundle *riot.MatchBundle) ([]PlayerScore, error)
}

// clamp100 limita un valore a [0, 100]
func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// norm normalizza value su [0,1] rispetto a un riferimento di saturazione
func norm(value, saturation float64) float64 {
	if saturation <= 0 {
		return 0
	}
	n := value / saturation
	if n > 1 {
		return 1
	}
	if n < 0 {
		return 0
	}
	return n
}

// round1 arrotonda a un decimale
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// weighted calcola l'overall come somma pesata delle dimensioni
func weighted(s PlayerScore, weights map[string]float64) float64 {
	var sum float64
	for dim, w := range weights {
		sum += w * s.Dimension(dim)
	}
	return round1(sum)
}

// rankScores ordina per overall decrescente assegnando Rank;
// i pareggi sono risolti dall'indice del partecipante.
func rankScores(scores []PlayerScore) {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		sa, sb := scores[order[a]], scores[order[b]]
		if sa.Overall != sb.Overall {
			return sa.Overall > sb.Overall
		}
		return sa.ParticipantID < sb.ParticipantID
	})
	for rank, idx := range order {
		scores[idx].Rank = rank + 1
	}
}

// minutes restituisce la durata della partita in minuti (mai < 1)
func minutes(detail *riot.MatchDetail) float64 {
	m := float64(detail.Info.GameDuration) / 60.0
	if m < 1 {
		m = 1
	}
	return m
}

// teamTotals accumula danni e kill per squadra
type teamTotals struct {
	damage int
	kills  int
}

func totalsByTeam(detail *riot.MatchDetail) map[int]*teamTotals {
	totals := make(map[int]*teamTotals)
	for _, p := range detail.Info.Participants {
		t, ok := totals[p.TeamID]
		if !ok {
			t = &teamTotals{}
			totals[p.TeamID] = t
		}
		t.damage += p.TotalDamageDealtToChampions
		t.kills += p.Kills
	}
	return totals
}
