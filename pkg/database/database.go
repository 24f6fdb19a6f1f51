package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/biodoia/goriftcoach/pkg/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrRecordNotFound viene restituito quando la riga richiesta non esiste
var ErrRecordNotFound = errors.New("analysis record not found")

// Config contiene la configurazione del database
type Config struct {
	Type       string `mapstructure:"type"`       // "postgres" or "sqlite"
	Connection string `mapstructure:"connection"` // Connection string
	MaxConns   int    `mapstructure:"max_conns"`
	LogLevel   string `mapstructure:"log_level"`
}

// DB wrappa la connessione GORM
type DB struct {
	*gorm.DB
}

// New crea una nuova connessione al database
func New(cfg *Config) (*DB, error) {
	var dialector gorm.Dialector

	switch cfg.Type {
	case "postgres":
		dialector = postgres.Open(cfg.Connection)
	case "sqlite":
		dialector = sqlite.Open(cfg.Connection)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	// Configure logger
	logLevel := logger.Silent
	switch cfg.LogLevel {
	case "info":
		logLevel = logger.Info
	case "warn":
		logLevel = logger.Warn
	case "error":
		logLevel = logger.Error
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
		sqlDB.SetMaxIdleConns(cfg.MaxConns / 2)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &DB{DB: db}, nil
}

// AutoMigrate esegue le migrazioni del database
func (db *DB) AutoMigrate() error {
	return db.DB.AutoMigrate(
		&models.AnalysisRecord{},
	)
}

// Close chiude la connessione al database
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertAnalysis inserisce o aggiorna la riga di analisi per (match_id, requester_id).
// Last write wins per colonna; created_at della riga originale viene preservato.
func (db *DB) UpsertAnalysis(ctx context.Context, rec *models.AnalysisRecord) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "match_id"}, {Name: "requester_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"region", "status", "mode", "algorithm_version",
			"score_data", "llm_metadata", "degradation_flags",
			"narrative_text", "tts_summary", "emotion_tag",
			"error_message", "updated_at",
		}),
	}).Create(rec).Error
}

// UpdateAnalysisStatus aggiorna lo stato (ed eventuale messaggio di errore) della riga
func (db *DB) UpdateAnalysisStatus(ctx context.Context, matchID, requesterID string, status models.AnalysisStatus, errMsg string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if errMsg != "" {
		updates["error_message"] = errMsg
	}

	res := db.WithContext(ctx).Model(&models.AnalysisRecord{}).
		Where("match_id = ? AND requester_id = ?", matchID, requesterID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// UpdateAnalysisFields applica un aggiornamento parziale alla riga di analisi
func (db *DB) UpdateAnalysisFields(ctx context.Context, matchID, requesterID string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).Model(&models.AnalysisRecord{}).
		Where("match_id = ? AND requester_id = ?", matchID, requesterID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// GetAnalysis restituisce la riga di analisi per (match_id, requester_id)
func (db *DB) GetAnalysis(ctx context.Context, matchID, requesterID string) (*models.AnalysisRecord, error) {
	var rec models.AnalysisRecord
	err := db.WithContext(ctx).
		Where("match_id = ? AND requester_id = ?", matchID, requesterID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetRecentAnalyses restituisce le analisi più recenti di un richiedente
func (db *DB) GetRecentAnalyses(ctx context.Context, requesterID string, limit int) ([]models.AnalysisRecord, error) {
	var recs []models.AnalysisRecord
	err := db.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}
