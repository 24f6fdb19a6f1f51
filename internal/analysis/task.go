package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/biodoia/goriftcoach/internal/llm"
	"github.com/biodoia/goriftcoach/internal/observability"
	"github.com/biodoia/goriftcoach/internal/riot"
	"github.com/biodoia/goriftcoach/internal/scoring"
	"github.com/biodoia/goriftcoach/internal/stats"
	"github.com/biodoia/goriftcoach/pkg/config"
	"github.com/biodoia/goriftcoach/pkg/models"
	"github.com/biodoia/goriftcoach/pkg/resilience"
	"github.com/google/uuid"
)

// Task è l'orchestratore canonico: cinque stage sequenziali contro
// collaboratori iniettati. Nessuna semantica exactly-once a livello di
// task: l'idempotenza vive nell'upsert dello Store e nel PATCH webhook.
type Task struct {
	cfg      *config.Config
	api      GameAPI
	factory  *scoring.Factory
	narrator Narrator
	store    Store
	webhook  Webhook
	renderer Renderer
	cache    BundleCache // opzionale
	metrics  *stats.Metrics
}

// NewTask crea il task con i collaboratori iniettati dal worker
func NewTask(cfg *config.Config, api GameAPI, factory *scoring.Factory, narrator Narrator,
	store Store, webhook Webhook, renderer Renderer, cache BundleCache, metrics *stats.Metrics) *Task {
	return &Task{
		cfg:      cfg,
		api:      api,
		factory:  factory,
		narrator: narrator,
		store:    store,
		webhook:  webhook,
		renderer: renderer,
		cache:    cache,
		metrics:  metrics,
	}
}

// Run esegue l'analisi completa di una richiesta.
// Restituisce un errore Go solo per errori di programmazione, che il
// broker usa per il proprio dead-lettering; ogni altro fallimento è
// riassunto nel TaskResult dopo la scrittura di status=failed.
func (t *Task) Run(ctx context.Context, req AnalysisRequest) (*TaskResult, error) {
	cid := observability.CorrelationID{
		SessionID: req.RequestID,
		BranchID:  uuid.NewString()[:8],
	}
	ctx = observability.WithCorrelation(ctx, cid)
	l := observability.Logger(ctx)

	t.metrics.TasksInFlight.Inc()
	defer t.metrics.TasksInFlight.Dec()

	result := &TaskResult{Stages: make(map[string]time.Duration)}
	tracker := NewStatusTracker(t.store, req.MatchID, req.RequesterID)

	l.Info().
		Str("match_id", req.MatchID).
		Str("region", req.Region).
		Str("requester", req.RequesterID).
		Msg("Analysis task started")

	// Un comando ripetuto su un'analisi già completata riconsegna il
	// report persistito con il token nuovo, senza rieseguire la pipeline
	if report, ok := t.reportFromRecord(ctx, req); ok {
		l.Info().Str("match_id", req.MatchID).Msg("Completed analysis found, redelivering persisted report")
		result.Redelivered = true
		result.Flags = report.Flags
		result.Degraded = report.Degraded
		_ = t.timed(StageDeliver, result, func() error {
			t.redeliver(ctx, req, report)
			return nil
		})
		result.Success = true
		t.metrics.AnalysesTotal.WithLabelValues(report.Mode, "redelivered").Inc()
		return result, nil
	}

	// Stage 1: fetch
	var bundle *riot.MatchBundle
	err := t.timed(StageFetch, result, func() error {
		var ferr error
		bundle, ferr = t.fetchBundle(ctx, req)
		return ferr
	})
	if err != nil {
		return t.fail(ctx, req, tracker, result, StageFetch, "unknown", err), nil
	}

	// Stage 2: score
	strategy := t.factory.ForQueue(bundle.Detail.Info.QueueID)
	mode := string(strategy.Mode)

	var scores []scoring.PlayerScore
	err = t.timed(StageScore, result, func() error {
		scoreCtx, cancel := context.WithTimeout(ctx, t.cfg.StageTimeout.Score)
		defer cancel()

		var serr error
		scores, serr = strategy.Scorer.Score(bundle)
		if serr != nil {
			return serr
		}
		if scoreCtx.Err() != nil {
			return fmt.Errorf("score stage exceeded deadline: %w", scoreCtx.Err())
		}
		return nil
	})
	if err != nil {
		// Violazione di contratto dello scorer: ri-sollevata dopo failed
		t.fail(ctx, req, tracker, result, StageScore, mode, err)
		return result, err
	}

	requesterScore := findRequesterScore(scores, bundle.Detail, req)

	if strategy.Mode == scoring.ModeFallback {
		result.Flags.FallbackStrategy = true
		t.metrics.Degradations.WithLabelValues("fallback_strategy").Inc()
	}

	// Stage 3: persist
	err = t.timed(StagePersist, result, func() error {
		return t.persistRecord(ctx, req, tracker, strategy, scores, requesterScore)
	})
	if err != nil {
		return t.fail(ctx, req, tracker, result, StagePersist, mode, err), nil
	}

	// Stage 4: narrate
	var report *AnalysisReport
	err = t.timed(StageNarrate, result, func() error {
		var nerr error
		report, nerr = t.narrate(ctx, req, tracker, strategy, bundle, scores, requesterScore, result)
		return nerr
	})
	if err != nil {
		return t.fail(ctx, req, tracker, result, StageNarrate, mode, err), nil
	}
	report.Observability = ReportObservability{
		SessionID:      cid.SessionID,
		BranchID:       cid.BranchID,
		StageDurations: result.Stages,
		Degraded:       result.Flags.Any(),
	}

	// Stage 5: deliver
	_ = t.timed(StageDeliver, result, func() error {
		t.deliver(ctx, req, tracker, report)
		return nil
	})

	result.Success = true
	result.Degraded = result.Flags.Any()
	t.metrics.AnalysesTotal.WithLabelValues(mode, string(tracker.Current())).Inc()

	l.Info().
		Bool("degraded", result.Degraded).
		Str("final_status", string(tracker.Current())).
		Msg("Analysis task finished")

	return result, nil
}

// timed misura la durata di uno stage nel risultato e nelle metriche
func (t *Task) timed(stage string, result *TaskResult, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	result.Stages[stage] = d
	t.metrics.StageDuration.WithLabelValues(stage).Observe(float64(d.Milliseconds()))
	return err
}

// fetchBundle recupera dettaglio e timeline, passando dalla cache a
// vita breve quando disponibile
func (t *Task) fetchBundle(ctx context.Context, req AnalysisRequest) (*riot.MatchBundle, error) {
	if t.cache != nil {
		if bundle, ok := t.cache.GetBundle(ctx, req.MatchID, req.Region); ok {
			l := observability.Logger(ctx)
			l.Debug().Str("match_id", req.MatchID).Msg("Match bundle served from cache")
			return bundle, nil
		}
	}

	detail, err := t.api.GetMatchDetail(ctx, req.MatchID, req.Region)
	if err != nil {
		return nil, err
	}
	timeline, err := t.api.GetMatchTimeline(ctx, req.MatchID, req.Region)
	if err != nil {
		return nil, err
	}

	bundle := &riot.MatchBundle{Detail: detail, Timeline: timeline}
	if t.cache != nil {
		t.cache.PutBundle(ctx, req.MatchID, req.Region, bundle)
	}
	return bundle, nil
}

// scoreData è la forma persistita della colonna score_data
type scoreData struct {
	PlayerScores   []scoring.PlayerScore `json:"player_scores"`
	RequesterScore *scoring.PlayerScore  `json:"requester_score,omitempty"`
}

// persistRecord esegue l'upsert idempotente dello stage 3 e porta lo
// stato a analyzing. Le violazioni di unicità sono assorbite dall'upsert.
func (t *Task) persistRecord(ctx context.Context, req AnalysisRequest, tracker *StatusTracker,
	strategy scoring.Strategy, scores []scoring.PlayerScore, requesterScore *scoring.PlayerScore) error {

	payload, err := json.Marshal(scoreData{PlayerScores: scores, RequesterScore: requesterScore})
	if err != nil {
		return fmt.Errorf("failed to marshal score data: %w", err)
	}

	now := time.Now().UTC()
	rec := &models.AnalysisRecord{
		MatchID:          req.MatchID,
		RequesterID:      req.RequesterID,
		Region:           req.Region,
		Status:           models.StatusProcessing,
		Mode:             string(strategy.Mode),
		AlgorithmVersion: scoring.AlgorithmVersion,
		ScoreData:        payload,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts:    t.cfg.Retry.Persist.MaxAttempts,
		InitialBackoff: 200 * time.Millisecond,
	})

	err = observability.Observe(ctx, "store.upsert", func(ctx context.Context) error {
		return retry.Execute(ctx, func() error {
			opCtx, cancel := context.WithTimeout(ctx, t.cfg.StageTimeout.Persist)
			defer cancel()
			return t.store.UpsertAnalysis(opCtx, rec)
		})
	})
	if err != nil {
		return err
	}

	if err := tracker.MarkPersisted(models.StatusProcessing); err != nil {
		return err
	}
	return tracker.Transition(ctx, models.StatusAnalyzing, "")
}

// narrate esegue lo stage 4: LLM con validazione di schema, filtro di
// conformità e degradazione a template come percorso di prima classe
func (t *Task) narrate(ctx context.Context, req AnalysisRequest, tracker *StatusTracker,
	strategy scoring.Strategy, bundle *riot.MatchBundle, scores []scoring.PlayerScore,
	requesterScore *scoring.PlayerScore, result *TaskResult) (*AnalysisReport, error) {

	l := observability.Logger(ctx)

	report := &AnalysisReport{
		MatchID:          req.MatchID,
		Mode:             string(strategy.Mode),
		AlgorithmVersion: scoring.AlgorithmVersion,
		PlayerScores:     scores,
		RequesterScore:   requesterScore,
	}

	narrateCtx, cancel := context.WithTimeout(ctx, t.cfg.StageTimeout.Narrate)
	defer cancel()

	n, llmMeta, err := t.generateNarration(narrateCtx, strategy, bundle, scores, requesterScore)
	if err != nil {
		if !t.cfg.Degradation.TemplateEnabled {
			return nil, err
		}
		l.Warn().Err(err).Msg("Narration degraded to deterministic template")
		n = TemplateNarration(strategy, scores, requesterScore)
		result.Flags.LLMTemplate = true
		t.metrics.Degradations.WithLabelValues("llm_template").Inc()
	} else if strategy.Compliance != nil {
		if violations := strategy.Compliance.Check(n.NarrativeText + "\n" + n.TTSSummary); len(violations) > 0 {
			l.Warn().Strs("violations", violations).Msg("Narration rejected by compliance filter")
			n = TemplateNarration(strategy, scores, requesterScore)
			result.Flags.ArenaCompliance = true
			t.metrics.Degradations.WithLabelValues("arena_compliance").Inc()
		}
	}

	report.NarrativeText = n.NarrativeText
	report.TTSSummary = n.TTSSummary
	report.EmotionTag = n.EmotionTag
	report.Highlights = n.Highlights
	report.Improvements = n.Improvements
	report.Flags = result.Flags
	report.Degraded = result.Flags.Any()

	fields := map[string]interface{}{
		"narrative_text": report.NarrativeText,
		"tts_summary":    report.TTSSummary,
		"emotion_tag":    report.EmotionTag,
	}
	if flagsJSON, err := json.Marshal(result.Flags); err == nil {
		fields["degradation_flags"] = flagsJSON
	}
	if llmMeta != nil {
		if metaJSON, err := json.Marshal(llmMeta); err == nil {
			fields["llm_metadata"] = metaJSON
		}
	}

	if err := t.store.UpdateAnalysisFields(ctx, req.MatchID, req.RequesterID, fields); err != nil {
		return nil, fmt.Errorf("failed to persist narration: %w", err)
	}
	if err := tracker.Transition(ctx, models.StatusDelivering, ""); err != nil {
		return nil, err
	}

	return report, nil
}

// generateNarration invoca il narratore per le strategie che lo usano;
// per il fallback emette direttamente il template (nessuna chiamata LLM)
func (t *Task) generateNarration(ctx context.Context, strategy scoring.Strategy,
	bundle *riot.MatchBundle, scores []scoring.PlayerScore, requesterScore *scoring.PlayerScore) (*llm.Narration, *llm.Metadata, error) {

	if !strategy.UsesLLM {
		return TemplateNarration(strategy, scores, requesterScore), nil, nil
	}

	userPrompt, err := scoring.BuildUserPrompt(strategy, bundle.Detail, scores, requesterScore)
	if err != nil {
		return nil, nil, err
	}

	return t.narrator.Generate(ctx, strategy.SystemPrompt, userPrompt, strategy.SchemaJSON)
}

// deliver esegue lo stage 5: mai fatale per il task.
// Token oltre TTL o PATCH fallito producono completed_no_delivery.
func (t *Task) deliver(ctx context.Context, req AnalysisRequest, tracker *StatusTracker, report *AnalysisReport) {
	l := observability.Logger(ctx)

	if time.Since(req.RequestedAt) >= t.cfg.InteractionTokenTTL() {
		l.Warn().
			Time("requested_at", req.RequestedAt).
			Msg("Interaction token past TTL, skipping delivery")
		t.metrics.Deliveries.WithLabelValues("expired").Inc()
		t.finishDelivery(ctx, tracker, models.StatusCompletedNoDelivery)
		return
	}

	payload, err := t.renderer.RenderReport(report)
	if err != nil {
		l.Error().Err(err).Msg("Failed to render analysis reply")
		t.finishDelivery(ctx, tracker, models.StatusCompletedNoDelivery)
		return
	}

	deliverCtx, cancel := context.WithTimeout(ctx, t.cfg.StageTimeout.Deliver)
	defer cancel()

	var outcome DeliveryOutcome
	_ = observability.ObserveWith(ctx, "webhook.deliver", func(ctx context.Context) (map[string]interface{}, error) {
		var derr error
		outcome, derr = t.webhook.Deliver(deliverCtx, req.ApplicationID, req.InteractionToken, payload)
		return map[string]interface{}{"outcome": outcome.String()}, derr
	})
	t.metrics.Deliveries.WithLabelValues(outcome.String()).Inc()

	switch outcome {
	case DeliveryOK:
		t.finishDelivery(ctx, tracker, models.StatusCompleted)
	case DeliveryTokenExpired:
		l.Warn().Msg("Interaction token expired at delivery")
		t.finishDelivery(ctx, tracker, models.StatusCompletedNoDelivery)
	default:
		l.Warn().Msg("Transient delivery error, keeping record without delivery")
		t.finishDelivery(ctx, tracker, models.StatusCompletedNoDelivery)
	}
}

// finishDelivery applica la transizione terminale con log best-effort
func (t *Task) finishDelivery(ctx context.Context, tracker *StatusTracker, status models.AnalysisStatus) {
	if err := tracker.Transition(ctx, status, ""); err != nil {
		l := observability.Logger(ctx)
		l.Error().Err(err).Msg("Failed to write terminal status")
	}
}

// reportFromRecord ricostruisce il report dalla riga persistita quando
// l'analisi è già chiusa con successo e ha la narrazione completa
func (t *Task) reportFromRecord(ctx context.Context, req AnalysisRequest) (*AnalysisReport, bool) {
	rec, err := t.store.GetAnalysis(ctx, req.MatchID, req.RequesterID)
	if err != nil || rec == nil {
		return nil, false
	}
	if !rec.Status.IsTerminal() || rec.Status == models.StatusFailed || rec.NarrativeText == "" {
		return nil, false
	}

	var data scoreData
	if err := json.Unmarshal(rec.ScoreData, &data); err != nil {
		l := observability.Logger(ctx)
		l.Warn().Err(err).Msg("Persisted score data unreadable, re-running analysis")
		return nil, false
	}

	var flags DegradationFlags
	if len(rec.DegradationFlags) > 0 {
		_ = json.Unmarshal(rec.DegradationFlags, &flags)
	}

	return &AnalysisReport{
		MatchID:          rec.MatchID,
		Mode:             rec.Mode,
		AlgorithmVersion: rec.AlgorithmVersion,
		PlayerScores:     data.PlayerScores,
		RequesterScore:   data.RequesterScore,
		NarrativeText:    rec.NarrativeText,
		TTSSummary:       rec.TTSSummary,
		EmotionTag:       rec.EmotionTag,
		Flags:            flags,
		Degraded:         flags.Any(),
	}, true
}

// redeliver riconsegna un report già persistito. Vive fuori dalla
// macchina a stati: la riga è già terminale e al più passa a completed.
func (t *Task) redeliver(ctx context.Context, req AnalysisRequest, report *AnalysisReport) {
	l := observability.Logger(ctx)

	if time.Since(req.RequestedAt) >= t.cfg.InteractionTokenTTL() {
		l.Warn().Msg("Interaction token past TTL, skipping redelivery")
		t.metrics.Deliveries.WithLabelValues("expired").Inc()
		return
	}

	payload, err := t.renderer.RenderReport(report)
	if err != nil {
		l.Error().Err(err).Msg("Failed to render persisted analysis reply")
		return
	}

	deliverCtx, cancel := context.WithTimeout(ctx, t.cfg.StageTimeout.Deliver)
	defer cancel()

	outcome, derr := t.webhook.Deliver(deliverCtx, req.ApplicationID, req.InteractionToken, payload)
	t.metrics.Deliveries.WithLabelValues(outcome.String()).Inc()
	if derr != nil {
		l.Warn().Err(derr).Msg("Redelivery failed, record stays as persisted")
		return
	}

	if err := t.store.UpdateAnalysisStatus(ctx, req.MatchID, req.RequesterID, models.StatusCompleted, ""); err != nil {
		l.Error().Err(err).Msg("Failed to update status after redelivery")
	}
}

// fail scrive status=failed e tenta un webhook di errore best-effort
func (t *Task) fail(ctx context.Context, req AnalysisRequest, tracker *StatusTracker,
	result *TaskResult, stage, mode string, cause error) *TaskResult {

	l := observability.Logger(ctx)

	result.Success = false
	result.ErrorStage = stage
	result.Error = cause.Error()

	l.Error().Err(cause).Str("stage", stage).Msg("Analysis task failed")

	if tracker.Current() == models.StatusPending {
		// Nessuna riga ancora: l'upsert crea direttamente la riga failed
		now := time.Now().UTC()
		rec := &models.AnalysisRecord{
			MatchID:      req.MatchID,
			RequesterID:  req.RequesterID,
			Region:       req.Region,
			Status:       models.StatusFailed,
			Mode:         mode,
			ErrorMessage: cause.Error(),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := t.store.UpsertAnalysis(ctx, rec); err != nil {
			l.Error().Err(err).Msg("Failed to persist failed analysis record")
		}
	} else {
		if err := tracker.Transition(ctx, models.StatusFailed, cause.Error()); err != nil {
			l.Error().Err(err).Msg("Failed to write failed status")
		}
	}

	// Webhook di errore best-effort, soggetto alla policy di deliver
	if time.Since(req.RequestedAt) < t.cfg.InteractionTokenTTL() {
		if payload, rerr := t.renderer.RenderError(req, shortReason(cause)); rerr == nil {
			deliverCtx, cancel := context.WithTimeout(ctx, t.cfg.StageTimeout.Deliver)
			outcome, derr := t.webhook.Deliver(deliverCtx, req.ApplicationID, req.InteractionToken, payload)
			cancel()
			if derr != nil {
				l.Warn().Err(derr).Msg("Error webhook delivery failed")
			}
			t.metrics.Deliveries.WithLabelValues(outcome.String()).Inc()
		}
	}

	t.metrics.AnalysesTotal.WithLabelValues(mode, string(models.StatusFailed)).Inc()
	return result
}

// findRequesterScore individua il punteggio del richiedente: prima per
// puuid dal profilo collegato, poi per riot id dichiarato, infine per
// identità visibile. Nessun match è legittimo: il richiedente può non
// aver giocato la partita.
func findRequesterScore(scores []scoring.PlayerScore, detail *riot.MatchDetail, req AnalysisRequest) *scoring.PlayerScore {
	if puuid := req.UserProfile["puuid"]; puuid != "" {
		for _, p := range detail.Info.Participants {
			if p.PUUID == puuid {
				return scoreByParticipant(scores, p.ParticipantID)
			}
		}
	}
	if riotID := req.UserProfile["riot_id"]; riotID != "" {
		for _, p := range detail.Info.Participants {
			if p.Identity() == riotID {
				return scoreByParticipant(scores, p.ParticipantID)
			}
		}
	}
	for _, p := range detail.Info.Participants {
		if p.Identity() == req.RequesterID {
			return scoreByParticipant(scores, p.ParticipantID)
		}
	}
	return nil
}

func scoreByParticipant(scores []scoring.PlayerScore, participantID int) *scoring.PlayerScore {
	for i := range scores {
		if scores[i].ParticipantID == participantID {
			return &scores[i]
		}
	}
	return nil
}

// shortReason produce il motivo conciso per l'embed di errore
func shortReason(err error) string {
	msg := err.Error()
	if len(msg) > 120 {
		msg = msg[:117] + "..."
	}
	return msg
}
