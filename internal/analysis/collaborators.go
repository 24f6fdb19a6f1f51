package analysis

import (
	"context"

	"github.com/biodoia/goriftcoach/internal/llm"
	"github.com/biodoia/goriftcoach/internal/riot"
	"github.com/biodoia/goriftcoach/pkg/models"
)

// I collaboratori del task sono interfacce strette: il worker costruisce
// i client una volta all'avvio e li inietta in ogni invocazione.

// GameAPI recupera dettaglio e timeline dal vendor di gioco
type GameAPI interface {
	GetMatchDetail(ctx context.Context, matchID, region string) (*riot.MatchDetail, error)
	GetMatchTimeline(ctx context.Context, matchID, region string) (*riot.MatchTimeline, error)
}

// Narrator produce la narrazione strutturata validata contro lo schema
type Narrator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt, schemaJSON string) (*llm.Narration, *llm.Metadata, error)
}

// Store persiste la riga di analisi con upsert idempotente
type Store interface {
	UpsertAnalysis(ctx context.Context, rec *models.AnalysisRecord) error
	UpdateAnalysisStatus(ctx context.Context, matchID, requesterID string, status models.AnalysisStatus, errMsg string) error
	UpdateAnalysisFields(ctx context.Context, matchID, requesterID string, fields map[string]interface{}) error
	GetAnalysis(ctx context.Context, matchID, requesterID string) (*models.AnalysisRecord, error)
}

// DeliveryOutcome è l'esito discriminato della consegna webhook
type DeliveryOutcome int

const (
	DeliveryOK DeliveryOutcome = iota
	DeliveryTokenExpired
	DeliveryTransient
)

// String restituisce l'etichetta dell'esito
func (o DeliveryOutcome) String() string {
	switch o {
	case DeliveryOK:
		return "ok"
	case DeliveryTokenExpired:
		return "token_expired"
	case DeliveryTransient:
		return "transient_error"
	default:
		return "unknown"
	}
}

// Webhook modifica la risposta differita della chat. Mai retry:
// un secondo PATCH rischia la doppia modifica.
type Webhook interface {
	Deliver(ctx context.Context, applicationID, token string, payload []byte) (DeliveryOutcome, error)
}

// Renderer costruisce il payload opaco della risposta chat.
// Vive fuori dal core: il task lo tratta come un buffer di byte.
type Renderer interface {
	RenderReport(report *AnalysisReport) ([]byte, error)
	RenderError(req AnalysisRequest, reason string) ([]byte, error)
}

// BundleCache è la cache a vita breve dei MatchBundle grezzi
type BundleCache interface {
	GetBundle(ctx context.Context, matchID, region string) (*riot.MatchBundle, bool)
	PutBundle(ctx context.Context, matchID, region string, bundle *riot.MatchBundle)
}
