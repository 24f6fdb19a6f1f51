package scoring

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/biodoia/goriftcoach/internal/riot"
)

// narrationSchemaJSON è lo schema comune delle narrazioni prodotte dal LLM
const narrationSchemaJSON = `{
  "type": "object",
  "required": ["narrative_text", "tts_summary", "emotion_tag", "highlights", "improvements"],
  "additionalProperties": false,
  "properties": {
    "narrative_text": {"type": "string", "minLength": 40},
    "tts_summary": {"type": "string", "minLength": 10, "maxLength": 400},
    "emotion_tag": {"type": "string", "enum": ["excited", "encouraging", "critical", "neutral", "sympathetic"]},
    "highlights": {"type": "array", "items": {"type": "string"}, "minItems": 1, "maxItems": 5},
    "improvements": {"type": "array", "items": {"type": "string"}, "minItems": 1, "maxItems": 5}
  }
}`

const classicSystemPrompt = `You are a supportive League coach analyzing a completed classic match.
You receive per-player dimensional scores (combat, economy, objectives, vision, teamplay) already computed from match data.
Write a coaching narrative for the requesting player: what went well, what to improve, concrete next steps.
Ground every claim in the provided numbers. Respond ONLY with a JSON object matching the requested schema.`

const blindSystemPrompt = `You are a supportive League coach analyzing a completed no-lane (blind) match.
Only combat, economy and teamplay were scored; vision and objectives do not apply to this mode and MUST NOT be mentioned.
Write a coaching narrative for the requesting player grounded in the provided numbers.
Respond ONLY with a JSON object matching the requested schema.`

const arenaSystemPrompt = `You are a supportive coach analyzing a completed round-based duo (arena) match.
Only combat and duo synergy were scored.
STRICT POLICY: never mention win rates, tier rankings, or any prediction about future rounds, in any language.
Focus exclusively on what happened in this match and on concrete mechanical advice.
Respond ONLY with a JSON object matching the requested schema.`

// narrationInput è il payload compatto passato al narratore:
// numeriche dei punteggi e sommario della partita, mai frame grezzi.
type narrationInput struct {
	Mode            string        `json:"mode"`
	DurationMinutes float64       `json:"duration_minutes"`
	Dimensions      []string      `json:"dimensions"`
	Requester       string        `json:"requester"`
	RequesterWon    bool          `json:"requester_won"`
	Players         []playerBrief `json:"players"`
}

type playerBrief struct {
	Summoner string             `json:"summoner"`
	Champion string             `json:"champion"`
	Win      bool               `json:"win"`
	Overall  float64            `json:"overall"`
	Rank     int                `json:"rank"`
	Scores   map[string]float64 `json:"scores"`
}

// BuildUserPrompt costruisce il messaggio user per il narratore a partire
// dalle evidenze di scoring. Deterministico: stesso input, stesso prompt.
func BuildUserPrompt(strategy Strategy, detail *riot.MatchDetail, scores []PlayerScore, requesterScore *PlayerScore) (string, error) {
	input := narrationInput{
		Mode:            string(strategy.Mode),
		DurationMinutes: round1(minutes(detail)),
		Dimensions:      strategy.Dimensions,
		Players:         make([]playerBrief, 0, len(scores)),
	}
	if requesterScore != nil {
		input.Requester = requesterScore.Summoner
		input.RequesterWon = requesterScore.Win
	}

	for _, s := range scores {
		brief := playerBrief{
			Summoner: s.Summoner,
			Champion: s.Champion,
			Win:      s.Win,
			Overall:  s.Overall,
			Rank:     s.Rank,
			Scores:   make(map[string]float64, len(strategy.Dimensions)),
		}
		for _, dim := range strategy.Dimensions {
			brief.Scores[dim] = round1(s.Dimension(dim))
		}
		input.Players = append(input.Players, brief)
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("failed to marshal narration input: %w", err)
	}

	var b strings.Builder
	b.WriteString("Analyze this match for the requesting player.\n")
	b.WriteString("Match evidence (JSON):\n")
	b.Write(payload)
	return b.String(), nil
}
