package scoring

import (
	"github.com/biodoia/goriftcoach/pkg/config"
)

// Strategy è la configurazione completa di una modalità:
// scorer, prompt del narratore, schema di validazione e filtro di conformità.
type Strategy struct {
	Mode         Mode
	Scorer       Scorer
	Weights      map[string]float64
	Dimensions   []string
	SystemPrompt string
	SchemaJSON   string
	Compliance   *ComplianceFilter
	UsesLLM      bool
}

// Queue id del vendor per modalità
var classicQueues = map[int]bool{400: true, 420: true, 430: true, 440: true, 490: true}
var blindQueues = map[int]bool{450: true}
var arenaQueues = map[int]bool{1700: true, 1710: true}

// Factory seleziona la strategia per una partita in base al queue id.
// L'enumerazione resta totale: le modalità ignote ricadono su Fallback.
type Factory struct {
	features config.FeatureConfig

	classic  Strategy
	blind    Strategy
	arena    Strategy
	fallback Strategy
}

// NewFactory crea la factory con le strategie configurate
func NewFactory(features config.FeatureConfig) *Factory {
	return &Factory{
		features: features,
		classic: Strategy{
			Mode:         ModeClassic,
			Scorer:       ClassicScorer{},
			Weights:      ClassicWeights,
			Dimensions:   []string{DimCombat, DimEconomy, DimObjectives, DimVision, DimTeamplay},
			SystemPrompt: classicSystemPrompt,
			SchemaJSON:   narrationSchemaJSON,
			UsesLLM:      true,
		},
		blind: Strategy{
			Mode:         ModeBlind,
			Scorer:       BlindScorer{},
			Weights:      BlindWeights,
			Dimensions:   []string{DimCombat, DimEconomy, DimTeamplay},
			SystemPrompt: blindSystemPrompt,
			SchemaJSON:   narrationSchemaJSON,
			UsesLLM:      true,
		},
		arena: Strategy{
			Mode:         ModeArena,
			Scorer:       ArenaScorer{},
			Weights:      ArenaWeights,
			Dimensions:   []string{DimCombat, DimTeamplay},
			SystemPrompt: arenaSystemPrompt,
			SchemaJSON:   narrationSchemaJSON,
			Compliance:   NewComplianceFilter(),
			UsesLLM:      true,
		},
		fallback: Strategy{
			Mode:       ModeFallback,
			Scorer:     FallbackScorer{},
			Weights:    FallbackWeights,
			Dimensions: []string{DimCombat},
			UsesLLM:    false,
		},
	}
}

// ForQueue restituisce la strategia per il queue id della partita
func (f *Factory) ForQueue(queueID int) Strategy {
	switch {
	case classicQueues[queueID]:
		return f.classic
	case blindQueues[queueID]:
		if !f.features.BlindModeEnabled {
			return f.fallback
		}
		return f.blind
	case arenaQueues[queueID]:
		if !f.features.ArenaEnabled {
			return f.fallback
		}
		return f.arena
	default:
		return f.fallback
	}
}

// Fallback restituisce la strategia di fallback (usata anche dallo
// stage narrate quando il filtro di conformità rifiuta l'output arena)
func (f *Factory) Fallback() Strategy {
	return f.fallback
}
