package models

import (
	"time"

	"gorm.io/datatypes"
)

// AnalysisStatus rappresenta lo stato del ciclo di vita di un'analisi
type AnalysisStatus string

const (
	StatusPending             AnalysisStatus = "pending"
	StatusProcessing          AnalysisStatus = "processing"
	StatusAnalyzing           AnalysisStatus = "analyzing"
	StatusDelivering          AnalysisStatus = "delivering"
	StatusCompleted           AnalysisStatus = "completed"
	StatusCompletedNoDelivery AnalysisStatus = "completed_no_delivery"
	StatusFailed              AnalysisStatus = "failed"
)

// IsTerminal verifica se lo stato è terminale
func (s AnalysisStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedNoDelivery, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo verifica se la transizione di stato è ammessa
func (s AnalysisStatus) CanTransitionTo(next AnalysisStatus) bool {
	allowed, ok := statusTransitions[s]
	if !ok {
		return false
	}
	for _, a := range allowed {
		if a == next {
			return true
		}
	}
	return false
}

// statusTransitions codifica la macchina a stati dell'analisi.
// pending è implicito (nessuna riga) finché il persist non scrive processing.
var statusTransitions = map[AnalysisStatus][]AnalysisStatus{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusAnalyzing, StatusFailed},
	StatusAnalyzing:  {StatusDelivering, StatusFailed},
	StatusDelivering: {StatusCompleted, StatusCompletedNoDelivery},
}

// AnalysisRecord rappresenta la riga persistita di un'analisi di partita.
// Chiave primaria composta (match_id, requester_id): una ri-analisi
// aggiorna la riga esistente, mai un duplicato.
type AnalysisRecord struct {
	MatchID     string `json:"match_id" gorm:"primaryKey;size:64"`
	RequesterID string `json:"requester_id" gorm:"primaryKey;size:64"`

	Region           string         `json:"region" gorm:"size:16;not null"`
	Status           AnalysisStatus `json:"status" gorm:"size:32;not null;index"`
	Mode             string         `json:"mode" gorm:"size:32"`
	AlgorithmVersion string         `json:"algorithm_version" gorm:"size:16"`

	// Payload flessibili
	ScoreData        datatypes.JSON `json:"score_data" gorm:"type:jsonb"`
	LLMMetadata      datatypes.JSON `json:"llm_metadata" gorm:"type:jsonb"`
	DegradationFlags datatypes.JSON `json:"degradation_flags" gorm:"type:jsonb"`

	NarrativeText string `json:"narrative_text"`
	TTSSummary    string `json:"tts_summary"`
	EmotionTag    string `json:"emotion_tag" gorm:"size:16"`

	ErrorMessage string `json:"error_message"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifica il nome della tabella
func (AnalysisRecord) TableName() string {
	return "analysis"
}
