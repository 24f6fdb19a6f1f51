package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/biodoia/goriftcoach/internal/llm"
	"github.com/biodoia/goriftcoach/internal/riot"
	"github.com/biodoia/goriftcoach/internal/scoring"
	"github.com/biodoia/goriftcoach/internal/stats"
	"github.com/biodoia/goriftcoach/pkg/config"
	"github.com/biodoia/goriftcoach/pkg/models"
)

// MockGameAPI implementa GameAPI per i test
type MockGameAPI struct {
	detail      *riot.MatchDetail
	timeline    *riot.MatchTimeline
	detailErr   error
	timelineErr error
	calls       int
}

func (m *MockGameAPI) GetMatchDetail(ctx context.Context, matchID, region string) (*riot.MatchDetail, error) {
	m.calls++
	if m.detailErr != nil {
		return nil, m.detailErr
	}
	return m.detail, nil
}

func (m *MockGameAPI) GetMatchTimeline(ctx context.Context, matchID, region string) (*riot.MatchTimeline, error) {
	m.calls++
	if m.timelineErr != nil {
		return nil, m.timelineErr
	}
	return m.timeline, nil
}

// MockNarrator implementa Narrator per i test
type MockNarrator struct {
	narration *llm.Narration
	meta      *llm.Metadata
	err       error
	calls     int
}

func (m *MockNarrator) Generate(ctx context.Context, systemPrompt, userPrompt, schemaJSON string) (*llm.Narration, *llm.Metadata, error) {
	m.calls++
	if m.err != nil {
		return nil, m.meta, m.err
	}
	return m.narration, m.meta, nil
}

// MockStore implementa Store registrando ogni scrittura
type MockStore struct {
	mu         sync.Mutex
	upserts    []models.AnalysisRecord
	statusLog  []models.AnalysisStatus
	fields     map[string]interface{}
	existing   *models.AnalysisRecord
	upsertErr  error
	statusErr  error
}

func (m *MockStore) UpsertAnalysis(ctx context.Context, rec *models.AnalysisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts = append(m.upserts, *rec)
	return nil
}

func (m *MockStore) UpdateAnalysisStatus(ctx context.Context, matchID, requesterID string, status models.AnalysisStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusErr != nil {
		return m.statusErr
	}
	m.statusLog = append(m.statusLog, status)
	return nil
}

func (m *MockStore) UpdateAnalysisFields(ctx context.Context, matchID, requesterID string, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields = fields
	return nil
}

func (m *MockStore) GetAnalysis(ctx context.Context, matchID, requesterID string) (*models.AnalysisRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existing == nil {
		return nil, errors.New("not found")
	}
	return m.existing, nil
}

func (m *MockStore) lastStatus() models.AnalysisStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.statusLog) == 0 {
		return ""
	}
	return m.statusLog[len(m.statusLog)-1]
}

// MockWebhook implementa Webhook registrando le consegne
type MockWebhook struct {
	outcome  DeliveryOutcome
	err      error
	payloads [][]byte
}

func (m *MockWebhook) Deliver(ctx context.Context, applicationID, token string, payload []byte) (DeliveryOutcome, error) {
	m.payloads = append(m.payloads, payload)
	return m.outcome, m.err
}

// MockRenderer implementa Renderer con payload fissi
type MockRenderer struct {
	reportCalls int
	errorCalls  int
}

func (m *MockRenderer) RenderReport(report *AnalysisReport) ([]byte, error) {
	m.reportCalls++
	return []byte(`{"kind":"report"}`), nil
}

func (m *MockRenderer) RenderError(req AnalysisRequest, reason string) ([]byte, error) {
	m.errorCalls++
	return []byte(`{"kind":"error"}`), nil
}

// fixture raggruppa il task e i suoi mock
type fixture struct {
	task     *Task
	api      *MockGameAPI
	narrator *MockNarrator
	store    *MockStore
	webhook  *MockWebhook
	renderer *MockRenderer
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.StageTimeout.Fetch = 5 * time.Second
	cfg.StageTimeout.Score = time.Second
	cfg.StageTimeout.Persist = time.Second
	cfg.StageTimeout.Narrate = 5 * time.Second
	cfg.StageTimeout.Deliver = time.Second
	cfg.Retry.Fetch.MaxAttempts = 3
	cfg.Retry.Persist.MaxAttempts = 2
	cfg.Degradation.TemplateEnabled = true
	cfg.Feature.ArenaEnabled = true
	cfg.Feature.BlindModeEnabled = true
	cfg.InteractionTokenTTLSecs = 900
	return cfg
}

func buildDetail(queueID, participants int) *riot.MatchDetail {
	detail := &riot.MatchDetail{
		Metadata: riot.MatchMetadata{MatchID: "EUW1_1000000001"},
		Info: riot.MatchInfo{
			QueueID:      queueID,
			GameDuration: 1800,
		},
	}
	for i := 0; i < participants; i++ {
		teamID := 100
		win := true
		if i >= participants/2 {
			teamID = 200
			win = false
		}
		detail.Info.Participants = append(detail.Info.Participants, riot.Participant{
			ParticipantID:               i + 1,
			PUUID:                       "puuid-" + string(rune('a'+i)),
			RiotIDName:                  "Player" + string(rune('A'+i)),
			RiotIDTagline:               "EUW",
			ChampionName:                "Ahri",
			TeamID:                      teamID,
			Win:                         win,
			Kills:                       4,
			Deaths:                      3,
			Assists:                     6,
			TotalDamageDealtToChampions: 15000,
			GoldEarned:                  10000,
			TotalMinionsKilled:          150,
			VisionScore:                 20,
			Placement:                   (i % 8) + 1,
		})
	}
	return detail
}

func validNarration() *llm.Narration {
	return &llm.Narration{
		NarrativeText: "Solid performance across the board with strong objective control.",
		TTSSummary:    "Solid game overall.",
		EmotionTag:    llm.EmotionEncouraging,
		Highlights:    []string{"objective control"},
		Improvements:  []string{"late game positioning"},
	}
}

func newFixture(cfg *config.Config, queueID int) *fixture {
	f := &fixture{
		api: &MockGameAPI{
			detail:   buildDetail(queueID, 10),
			timeline: &riot.MatchTimeline{},
		},
		narrator: &MockNarrator{
			narration: validNarration(),
			meta:      &llm.Metadata{ModelID: "test-model", Attempts: 1, TotalTokens: 150},
		},
		store:    &MockStore{},
		webhook:  &MockWebhook{outcome: DeliveryOK},
		renderer: &MockRenderer{},
	}

	metrics := stats.NewMetricsWith("test", prometheus.NewRegistry())
	factory := scoring.NewFactory(cfg.Feature)
	f.task = NewTask(cfg, f.api, factory, f.narrator, f.store, f.webhook, f.renderer, nil, metrics)
	return f
}

func testRequest() AnalysisRequest {
	return AnalysisRequest{
		RequestID:        "req-1",
		MatchID:          "EUW1_1000000001",
		Region:           "euw",
		RequesterID:      "user-123",
		InteractionToken: "token",
		ApplicationID:    "app",
		RequestedAt:      time.Now().UTC(),
		UserProfile:      map[string]string{"riot_id": "PlayerA#EUW"},
	}
}

func TestTask_HappyPathCompletes(t *testing.T) {
	f := newFixture(testConfig(), 420)

	result, err := f.task.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.False(t, result.Degraded)
	assert.Empty(t, result.ErrorStage)

	// Upsert iniziale in processing, poi analyzing, delivering, completed
	require.Len(t, f.store.upserts, 1)
	assert.Equal(t, models.StatusProcessing, f.store.upserts[0].Status)
	assert.Equal(t, "classic", f.store.upserts[0].Mode)
	assert.NotEmpty(t, f.store.upserts[0].ScoreData)
	assert.Equal(t, []models.AnalysisStatus{
		models.StatusAnalyzing,
		models.StatusDelivering,
		models.StatusCompleted,
	}, f.store.statusLog)

	// Narrazione persistita prima della consegna
	require.NotNil(t, f.store.fields)
	assert.Contains(t, f.store.fields["narrative_text"], "Solid performance")

	assert.Equal(t, 1, f.narrator.calls)
	assert.Len(t, f.webhook.payloads, 1)

	// Ogni stage è stato misurato
	for _, stage := range []string{StageFetch, StageScore, StagePersist, StageNarrate, StageDeliver} {
		assert.Contains(t, result.Stages, stage)
	}
}

func TestTask_MatchNotFoundFailsWithErrorReply(t *testing.T) {
	f := newFixture(testConfig(), 420)
	f.api.detailErr = riot.ErrMatchNotFound

	result, err := f.task.Run(context.Background(), testRequest())
	require.NoError(t, err, "business failures never raise")

	assert.False(t, result.Success)
	assert.Equal(t, StageFetch, result.ErrorStage)

	// La riga failed viene creata direttamente dall'upsert
	require.Len(t, f.store.upserts, 1)
	assert.Equal(t, models.StatusFailed, f.store.upserts[0].Status)
	assert.NotEmpty(t, f.store.upserts[0].ErrorMessage)

	// L'utente riceve l'embed di errore
	assert.Equal(t, 1, f.renderer.errorCalls)
	assert.Len(t, f.webhook.payloads, 1)
}

func TestTask_ScorerContractViolationRaises(t *testing.T) {
	f := newFixture(testConfig(), 420)
	f.api.detail = &riot.MatchDetail{Info: riot.MatchInfo{QueueID: 420}} // nessun partecipante

	result, err := f.task.Run(context.Background(), testRequest())
	require.Error(t, err, "scorer violations are programming errors and must raise")

	assert.False(t, result.Success)
	assert.Equal(t, StageScore, result.ErrorStage)

	// Lo stato failed viene comunque scritto prima di ri-sollevare
	require.Len(t, f.store.upserts, 1)
	assert.Equal(t, models.StatusFailed, f.store.upserts[0].Status)
}

func TestTask_SchemaViolationDegradesToTemplate(t *testing.T) {
	f := newFixture(testConfig(), 420)
	f.narrator.err = llm.ErrSchemaViolation

	result, err := f.task.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.Degraded)
	assert.True(t, result.Flags.LLMTemplate)

	// Il template deterministico viene persistito e consegnato
	assert.Contains(t, f.store.fields["narrative_text"], "Partial analysis")
	assert.Equal(t, models.StatusCompleted, f.store.lastStatus())
	assert.Len(t, f.webhook.payloads, 1)
}

func TestTask_LLMUnavailableDegradesToTemplate(t *testing.T) {
	f := newFixture(testConfig(), 420)
	f.narrator.err = llm.ErrLLMUnavailable

	result, err := f.task.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.Flags.LLMTemplate)
}

func TestTask_NarrationFailureIsFatalWhenTemplateDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Degradation.TemplateEnabled = false
	f := newFixture(cfg, 420)
	f.narrator.err = llm.ErrSchemaViolation

	result, err := f.task.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, StageNarrate, result.ErrorStage)
	assert.Equal(t, models.StatusFailed, f.store.lastStatus())
}

func TestTask_ArenaComplianceViolationFallsBackToTemplate(t *testing.T) {
	f := newFixture(testConfig(), 1700)
	f.narrator.narration = &llm.Narration{
		NarrativeText: "Your win rate will climb if you keep playing like this next round.",
		TTSSummary:    "Strong duo game.",
		EmotionTag:    llm.EmotionExcited,
		Highlights:    []string{"burst damage"},
		Improvements:  []string{"positioning"},
	}

	result, err := f.task.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.Flags.ArenaCompliance)
	assert.Equal(t, models.StatusCompleted, f.store.lastStatus())

	// Il testo consegnato è il template, non l'output rifiutato
	assert.NotContains(t, f.store.fields["narrative_text"], "win rate")
	assert.Contains(t, f.store.fields["narrative_text"], "Partial analysis")
}

func TestTask_UnknownQueueUsesFallbackWithoutLLM(t *testing.T) {
	f := newFixture(testConfig(), 9999)

	result, err := f.task.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.Flags.FallbackStrategy)
	assert.Zero(t, f.narrator.calls, "fallback mode never calls the narrator")
	assert.Equal(t, models.StatusCompleted, f.store.lastStatus())
	assert.Equal(t, "fallback", f.store.upserts[0].Mode)
}

func TestTask_ExpiredTokenSkipsDelivery(t *testing.T) {
	f := newFixture(testConfig(), 420)
	req := testRequest()
	req.RequestedAt = time.Now().UTC().Add(-16 * time.Minute)

	result, err := f.task.Run(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Empty(t, f.webhook.payloads, "no PATCH is attempted past the token TTL")
	assert.Equal(t, models.StatusCompletedNoDelivery, f.store.lastStatus())
}

func TestTask_WebhookTokenExpiredKeepsRecord(t *testing.T) {
	f := newFixture(testConfig(), 420)
	f.webhook.outcome = DeliveryTokenExpired
	f.webhook.err = errors.New("interaction token no longer valid")

	result, err := f.task.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.True(t, result.Success, "the analysis itself succeeded")
	assert.Equal(t, models.StatusCompletedNoDelivery, f.store.lastStatus())
}

func TestTask_WebhookTransientErrorNoRetry(t *testing.T) {
	f := newFixture(testConfig(), 420)
	f.webhook.outcome = DeliveryTransient
	f.webhook.err = errors.New("status 502")

	result, err := f.task.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Len(t, f.webhook.payloads, 1, "delivery is attempted exactly once")
	assert.Equal(t, models.StatusCompletedNoDelivery, f.store.lastStatus())
}

func TestTask_PersistFailureAfterRetries(t *testing.T) {
	f := newFixture(testConfig(), 420)
	f.store.upsertErr = errors.New("database gone")

	result, err := f.task.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, StagePersist, result.ErrorStage)
}

func TestTask_RequesterMatchedByRiotID(t *testing.T) {
	f := newFixture(testConfig(), 420)

	scores := []scoring.PlayerScore{
		{ParticipantID: 1, Summoner: "PlayerA#EUW", Overall: 70},
		{ParticipantID: 2, Summoner: "PlayerB#EUW", Overall: 60},
	}
	req := testRequest()

	match := findRequesterScore(scores, f.api.detail, req)
	require.NotNil(t, match)
	assert.Equal(t, 1, match.ParticipantID)
}

func TestTask_RequesterAbsentFromMatch(t *testing.T) {
	f := newFixture(testConfig(), 420)

	scores := []scoring.PlayerScore{{ParticipantID: 1, Summoner: "PlayerA#EUW"}}
	req := testRequest()
	req.UserProfile = map[string]string{"riot_id": "Stranger#NA1"}
	req.RequesterID = "someone-else"

	assert.Nil(t, findRequesterScore(scores, f.api.detail, req))
}

func completedRecord() *models.AnalysisRecord {
	return &models.AnalysisRecord{
		MatchID:          "EUW1_1000000001",
		RequesterID:      "user-123",
		Region:           "euw",
		Status:           models.StatusCompletedNoDelivery,
		Mode:             "classic",
		AlgorithmVersion: scoring.AlgorithmVersion,
		ScoreData:        datatypes.JSON(`{"player_scores":[{"participant_id":1,"summoner":"PlayerA#EUW","overall":72.5,"rank":1}]}`),
		NarrativeText:    "Strong objective control.",
		TTSSummary:       "Strong game.",
		EmotionTag:       llm.EmotionEncouraging,
	}
}

func TestTask_RedeliversPersistedAnalysis(t *testing.T) {
	f := newFixture(testConfig(), 420)
	f.store.existing = completedRecord()

	result, err := f.task.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.Redelivered)

	// La pipeline non viene rieseguita: nessun fetch, nessuna LLM,
	// nessun nuovo upsert
	assert.Zero(t, f.api.calls)
	assert.Zero(t, f.narrator.calls)
	assert.Empty(t, f.store.upserts)

	require.Len(t, f.webhook.payloads, 1)
	assert.Equal(t, 1, f.renderer.reportCalls)
	assert.Equal(t, models.StatusCompleted, f.store.lastStatus())
}

func TestTask_RedeliveryRespectsTokenTTL(t *testing.T) {
	f := newFixture(testConfig(), 420)
	f.store.existing = completedRecord()

	req := testRequest()
	req.RequestedAt = time.Now().UTC().Add(-16 * time.Minute)

	result, err := f.task.Run(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, result.Redelivered)
	assert.Empty(t, f.webhook.payloads)
	assert.Empty(t, f.store.statusLog, "an expired redelivery leaves the row untouched")
}

func TestTask_FailedRecordIsReanalyzed(t *testing.T) {
	f := newFixture(testConfig(), 420)
	failed := completedRecord()
	failed.Status = models.StatusFailed
	failed.NarrativeText = ""
	f.store.existing = failed

	result, err := f.task.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.False(t, result.Redelivered)
	assert.Equal(t, 2, f.api.calls, "detail and timeline fetched again")
	require.Len(t, f.store.upserts, 1)
}
