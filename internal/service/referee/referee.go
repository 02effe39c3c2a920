// Package referee scores player behavior for cheating signals and answers with
// graduated, advisory interventions. It never ends a game or bans a player.
package referee

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"party-service/internal/model"
	"party-service/internal/service/bus"
	"party-service/internal/service/statesync"
	"party-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	MessageIntervention = "referee_intervention"

	cooldownActor = "referee"
)

type Config struct {
	CooldownDuration time.Duration
	TimeoutDuration  time.Duration
	HistoryWindow    int
}

func defaultConfig() Config {
	return Config{
		CooldownDuration: 30 * time.Second,
		TimeoutDuration:  2 * time.Minute,
		HistoryWindow:    50,
	}
}

type Referee struct {
	db   *gorm.DB
	sync *statesync.Synchronizer
	bus  bus.Bus
	cfg  Config
	log  *zap.Logger
	now  func() time.Time
}

func NewReferee(db *gorm.DB, syncer *statesync.Synchronizer, b bus.Bus, cfg Config, log *zap.Logger) *Referee {
	d := defaultConfig()
	if cfg.CooldownDuration <= 0 {
		cfg.CooldownDuration = d.CooldownDuration
	}
	if cfg.TimeoutDuration <= 0 {
		cfg.TimeoutDuration = d.TimeoutDuration
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = d.HistoryWindow
	}
	return &Referee{
		db:   db,
		sync: syncer,
		bus:  b,
		cfg:  cfg,
		log:  logger.Named(log, "referee"),
		now:  time.Now,
	}
}

// Intervention is the private message a flagged player receives.
type Intervention struct {
	Severity   int         `json:"severity"`
	Action     Action      `json:"action"`
	Message    string      `json:"message"`
	Indicators []Indicator `json:"indicators"`
	Until      int64       `json:"until,omitempty"` // unix ms, cooldowns only
}

// Review analyzes the player's latest event, records the result and applies
// the response policy. Every analysis is persisted, including clean ones.
func (r *Referee) Review(ctx context.Context, sessionID, playerID string, history []Event) (CheatDetectionResult, error) {
	if len(history) > r.cfg.HistoryWindow {
		history = history[len(history)-r.cfg.HistoryWindow:]
	}
	result := AnalyzeAction(playerID, sessionID, history)
	result.CreatedAt = r.now().UTC()

	detectionsTotal.WithLabelValues(strconv.Itoa(result.SeverityLevel)).Inc()
	for _, ind := range result.Indicators {
		indicatorsTotal.WithLabelValues(string(ind)).Inc()
	}

	if err := r.persist(ctx, result); err != nil {
		return result, err
	}
	if result.SeverityLevel == 0 {
		return result, nil
	}

	r.log.Info("cheat indicators raised",
		zap.String("sessionID", sessionID),
		zap.String("playerID", playerID),
		zap.Int("severity", result.SeverityLevel),
		zap.Float64("probability", result.OverallProbability),
		zap.String("action", string(result.RecommendedAction)),
	)

	intervention := Intervention{
		Severity:   result.SeverityLevel,
		Action:     result.RecommendedAction,
		Message:    interventionText[result.RecommendedAction],
		Indicators: result.Indicators,
	}
	if d := r.cooldownFor(result.RecommendedAction); d > 0 {
		until := r.now().Add(d).UnixMilli()
		intervention.Until = until
		path := fmt.Sprintf("cooldowns.%s", playerID)
		if _, err := r.sync.UpdateField(ctx, sessionID, path, until, cooldownActor); err != nil {
			return result, fmt.Errorf("write cooldown: %w", err)
		}
	}

	msg, err := bus.NewMessage(MessageIntervention, sessionID, intervention)
	if err != nil {
		return result, err
	}
	if err := r.bus.Publish(ctx, bus.PlayerTopic(sessionID, playerID), msg); err != nil {
		r.log.Warn("failed to deliver intervention",
			zap.String("sessionID", sessionID),
			zap.String("playerID", playerID),
			zap.Error(err),
		)
	}
	return result, nil
}

func (r *Referee) cooldownFor(action Action) time.Duration {
	switch action {
	case ActionCooldown:
		return r.cfg.CooldownDuration
	case ActionTemporaryTimeout:
		return r.cfg.TimeoutDuration
	default:
		return 0
	}
}

func (r *Referee) persist(ctx context.Context, result CheatDetectionResult) error {
	indicators, err := json.Marshal(result.Indicators)
	if err != nil {
		return err
	}
	evidence, err := json.Marshal(result.Evidence)
	if err != nil {
		return err
	}
	record := model.CheatRecord{
		SessionID:                result.SessionID,
		PlayerID:                 result.PlayerID,
		ActionType:               result.ActionType,
		IndicatorsJSON:           datatypes.JSON(indicators),
		OverallProbability:       result.OverallProbability,
		SeverityLevel:            result.SeverityLevel,
		EvidenceJSON:             datatypes.JSON(evidence),
		RecommendedAction:        string(result.RecommendedAction),
		FalsePositiveProbability: result.FalsePositiveProbability,
		CreatedAt:                result.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("persist cheat record: %w", err)
	}
	return nil
}

// History lists the persisted results of a session, oldest first. minSeverity
// filters out weaker findings.
func (r *Referee) History(ctx context.Context, sessionID string, minSeverity int) ([]CheatDetectionResult, error) {
	var records []model.CheatRecord
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND severity_level >= ?", sessionID, minSeverity).
		Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}

	out := make([]CheatDetectionResult, 0, len(records))
	for _, rec := range records {
		result := CheatDetectionResult{
			PlayerID:                 rec.PlayerID,
			SessionID:                rec.SessionID,
			ActionType:               rec.ActionType,
			OverallProbability:       rec.OverallProbability,
			SeverityLevel:            rec.SeverityLevel,
			RecommendedAction:        Action(rec.RecommendedAction),
			FalsePositiveProbability: rec.FalsePositiveProbability,
			CreatedAt:                rec.CreatedAt,
		}
		if len(rec.IndicatorsJSON) > 0 {
			if err := json.Unmarshal(rec.IndicatorsJSON, &result.Indicators); err != nil {
				return nil, fmt.Errorf("decode indicators of record %d: %w", rec.ID, err)
			}
		}
		if len(rec.EvidenceJSON) > 0 {
			if err := json.Unmarshal(rec.EvidenceJSON, &result.Evidence); err != nil {
				return nil, fmt.Errorf("decode evidence of record %d: %w", rec.ID, err)
			}
		}
		out = append(out, result)
	}
	return out, nil
}
