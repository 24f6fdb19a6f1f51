package analysis

import (
	"time"

	"github.com/biodoia/goriftcoach/internal/scoring"
)

// AnalysisRequest è la richiesta immutabile prodotta dal dispatcher.
// La codifica JSON è il formato stabile del broker: una richiesta
// accodata oggi deve deserializzare dopo un riavvio.
type AnalysisRequest struct {
	RequestID        string            `json:"request_id"`
	MatchID          string            `json:"match_id"`
	Region           string            `json:"region"`
	RequesterID      string            `json:"requester_id"`
	InteractionToken string            `json:"interaction_token"`
	ApplicationID    string            `json:"application_id"`
	RequestedAt      time.Time         `json:"requested_at"`
	UserProfile      map[string]string `json:"user_profile,omitempty"`
}

// DegradationFlags marca i percorsi di degradazione attraversati.
// Sono operativamente normali, non fallimenti.
type DegradationFlags struct {
	LLMTemplate      bool `json:"llm_template,omitempty"`
	ArenaCompliance  bool `json:"arena_compliance,omitempty"`
	FallbackStrategy bool `json:"fallback_strategy,omitempty"`
}

// Any verifica se almeno un flag è attivo
func (f DegradationFlags) Any() bool {
	return f.LLMTemplate || f.ArenaCompliance || f.FallbackStrategy
}

// ReportObservability lega il report alla sessione che lo ha prodotto
type ReportObservability struct {
	SessionID      string                   `json:"session_id"`
	BranchID       string                   `json:"branch_id"`
	StageDurations map[string]time.Duration `json:"stage_durations"`
	Degraded       bool                     `json:"degraded"`
}

// AnalysisReport è il risultato completo di scoring + narrazione.
// Il renderer della chat lo consuma; il core non tocca mai le
// strutture della piattaforma chat.
type AnalysisReport struct {
	MatchID          string                 `json:"match_id"`
	Mode             string                 `json:"mode"`
	AlgorithmVersion string                 `json:"algorithm_version"`
	PlayerScores     []scoring.PlayerScore  `json:"player_scores"`
	RequesterScore   *scoring.PlayerScore   `json:"requester_score,omitempty"`
	NarrativeText    string                 `json:"narrative_text"`
	TTSSummary       string                 `json:"tts_summary"`
	EmotionTag       string                 `json:"emotion_tag"`
	Highlights       []string               `json:"highlights"`
	Improvements     []string               `json:"improvements"`
	Degraded         bool                   `json:"degraded"`
	Flags            DegradationFlags       `json:"degradation_flags"`
	Observability    ReportObservability    `json:"observability"`
}

// Nomi degli stage della pipeline
const (
	StageFetch   = "fetch"
	StageScore   = "score"
	StagePersist = "persist"
	StageNarrate = "narrate"
	StageDeliver = "deliver"
)

// TaskResult riassume l'esecuzione del task per il broker
type TaskResult struct {
	Success     bool                     `json:"success"`
	ErrorStage  string                   `json:"error_stage,omitempty"`
	Error       string                   `json:"error,omitempty"`
	Stages      map[string]time.Duration `json:"stages"`
	Degraded    bool                     `json:"degraded"`
	Redelivered bool                     `json:"redelivered,omitempty"`
	Flags       DegradationFlags         `json:"degradation_flags"`
}
