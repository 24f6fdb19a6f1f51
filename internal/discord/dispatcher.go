package discord

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/biodoia/goriftcoach/internal/analysis"
	"github.com/biodoia/goriftcoach/internal/stats"
	"github.com/biodoia/goriftcoach/pkg/config"
	"github.com/biodoia/goriftcoach/pkg/database"
	"github.com/biodoia/goriftcoach/pkg/middleware"
)

// Tipi di interazione e di risposta del protocollo interazioni
const (
	interactionPing    = 1
	interactionCommand = 2

	responsePong            = 1
	responseMessage         = 4
	responseDeferredMessage = 5

	flagEphemeral = 64
)

var matchIDPattern = regexp.MustCompile(`^[A-Z0-9]{2,8}_[0-9]{5,16}$`)

// Enqueuer è il lato producer del broker
type Enqueuer interface {
	Enqueue(ctx context.Context, req analysis.AnalysisRequest) error
	Healthy(ctx context.Context) error
}

// Dispatcher è il fronte sincrono: valida l'interazione, risponde in
// differita entro la finestra di ack e accoda il lavoro. Tutto il
// resto avviene nei worker.
type Dispatcher struct {
	cfg       *config.Config
	app       *fiber.App
	broker    Enqueuer
	db        *database.DB
	metrics   *stats.Metrics
	publicKey ed25519.PublicKey
}

// NewDispatcher crea il dispatcher HTTP
func NewDispatcher(cfg *config.Config, broker Enqueuer, db *database.DB, metrics *stats.Metrics) (*Dispatcher, error) {
	publicKey, err := hex.DecodeString(cfg.Discord.PublicKey)
	if err != nil || len(publicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid interaction public key")
	}

	app := fiber.New(fiber.Config{
		AppName:      "RiftCoach Dispatcher",
		ServerHeader: "RiftCoach/1.0",
	})

	d := &Dispatcher{
		cfg:       cfg,
		app:       app,
		broker:    broker,
		db:        db,
		metrics:   metrics,
		publicKey: publicKey,
	}

	d.setupMiddlewares()
	d.setupRoutes()

	return d, nil
}

func (d *Dispatcher) setupMiddlewares() {
	d.app.Use(middleware.Recovery())
	d.app.Use(middleware.RequestID())
	d.app.Use(middleware.Logging(middleware.LoggingConfig{
		SkipPaths: []string{"/health", "/ready", "/metrics"},
	}))
}

func (d *Dispatcher) setupRoutes() {
	d.app.Get("/health", d.handleHealth)
	d.app.Get("/ready", d.handleReady)
	d.app.Get("/metrics", middleware.PrometheusHandler())

	d.app.Post("/interactions", d.handleInteraction)
}

// Start avvia il server HTTP
func (d *Dispatcher) Start() error {
	addr := fmt.Sprintf("%s:%d", d.cfg.Server.Host, d.cfg.Server.Port)
	log.Info().Str("addr", addr).Msg("Starting dispatcher")
	return d.app.Listen(addr)
}

// Shutdown esegue lo shutdown graceful del server
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if err := d.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown dispatcher: %w", err)
	}
	log.Info().Msg("Dispatcher shutdown completed")
	return nil
}

// interaction è il sottoinsieme del payload di interazione che il
// dispatcher consuma
type interaction struct {
	ID            string          `json:"id"`
	Type          int             `json:"type"`
	ApplicationID string          `json:"application_id"`
	Token         string          `json:"token"`
	Data          interactionData `json:"data"`
	Member        *struct {
		User *interactionUser `json:"user"`
	} `json:"member"`
	User *interactionUser `json:"user"`
}

type interactionData struct {
	Name    string              `json:"name"`
	Options []interactionOption `json:"options"`
}

type interactionOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type interactionUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (i *interaction) user() *interactionUser {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func (i *interaction) option(name string) string {
	for _, opt := range i.Data.Options {
		if opt.Name == name {
			return opt.Value
		}
	}
	return ""
}

// handleInteraction gestisce il webhook delle interazioni.
// L'unico lavoro sincrono è validazione, ack differito e accodamento.
func (d *Dispatcher) handleInteraction(c fiber.Ctx) error {
	if !d.verifySignature(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid request signature"})
	}

	var inter interaction
	if err := json.Unmarshal(c.Body(), &inter); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed interaction payload"})
	}

	switch inter.Type {
	case interactionPing:
		return c.JSON(fiber.Map{"type": responsePong})
	case interactionCommand:
		return d.handleCommand(c, &inter)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported interaction type"})
	}
}

// verifySignature valida la firma ed25519 su timestamp+body
func (d *Dispatcher) verifySignature(c fiber.Ctx) bool {
	signature, err := hex.DecodeString(c.Get("X-Signature-Ed25519"))
	if err != nil || len(signature) != ed25519.SignatureSize {
		return false
	}

	timestamp := c.Get("X-Signature-Timestamp")
	if timestamp == "" {
		return false
	}

	message := append([]byte(timestamp), c.Body()...)
	return ed25519.Verify(d.publicKey, message, signature)
}

func (d *Dispatcher) handleCommand(c fiber.Ctx, inter *interaction) error {
	if inter.Data.Name != "analyze" {
		return ephemeralReply(c, "Unknown command.")
	}

	user := inter.user()
	if user == nil {
		return ephemeralReply(c, "Could not identify the requesting user.")
	}

	matchID := inter.option("match_id")
	region := inter.option("region")

	// Errori di validazione sono risposte sincrone, mai lavoro accodato
	if !matchIDPattern.MatchString(matchID) {
		return ephemeralReply(c, "Invalid match id. Expected a format like `EUW1_1234567890`.")
	}
	if _, ok := d.cfg.RateLimit.Regions[region]; !ok {
		return ephemeralReply(c, fmt.Sprintf("Unknown region `%s`.", region))
	}

	req := analysis.AnalysisRequest{
		RequestID:        uuid.NewString(),
		MatchID:          matchID,
		Region:           region,
		RequesterID:      user.ID,
		InteractionToken: inter.Token,
		ApplicationID:    inter.ApplicationID,
		RequestedAt:      time.Now().UTC(),
	}
	if player := inter.option("player"); player != "" {
		req.UserProfile = map[string]string{"riot_id": player}
	}

	if err := d.broker.Enqueue(c.Context(), req); err != nil {
		// Broker irraggiungibile: mai ack differito che non verrà onorato
		d.metrics.EnqueueErrors.Inc()
		log.Error().Err(err).Str("match_id", matchID).Msg("Failed to enqueue analysis request")
		return ephemeralReply(c, "The analysis system is busy right now, please try again in a moment.")
	}

	log.Info().
		Str("request_id", req.RequestID).
		Str("match_id", matchID).
		Str("region", region).
		Str("requester", user.ID).
		Msg("Analysis request enqueued")

	// Ack differito: la risposta vera arriva via PATCH dal worker
	return c.JSON(fiber.Map{"type": responseDeferredMessage})
}

// ephemeralReply risponde in modo sincrono e visibile solo al richiedente
func ephemeralReply(c fiber.Ctx, content string) error {
	return c.JSON(fiber.Map{
		"type": responseMessage,
		"data": fiber.Map{
			"content": content,
			"flags":   flagEphemeral,
		},
	})
}

func (d *Dispatcher) handleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"version":   "1.0.0",
	})
}

func (d *Dispatcher) handleReady(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	if err := d.broker.Healthy(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"ready": false,
			"error": "queue transport unavailable",
		})
	}

	sqlDB, err := d.db.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"ready": false,
			"error": "database unavailable",
		})
	}

	return c.JSON(fiber.Map{"ready": true})
}
