// Package session keeps the durable registry of party games: who hosts them,
// how to join them and how they ended. Live game state stays in Redis.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"party-service/internal/model"
	"party-service/internal/service/mafia"
	"party-service/internal/service/statesync"
	appErr "party-service/pkg/errors"
	"party-service/pkg/logger"
	"party-service/pkg/utils/random"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	joinCodeLength   = 6
	joinCodeAttempts = 5
)

type Service struct {
	db        *gorm.DB
	engine    *mafia.Engine
	sync      *statesync.Synchronizer
	retention time.Duration
	log       *zap.Logger
}

// NewService registers itself as a game-over hook on engine so finished games
// are recorded and their live state expires after retention.
func NewService(db *gorm.DB, engine *mafia.Engine, syncer *statesync.Synchronizer, retention time.Duration, log *zap.Logger) *Service {
	if retention <= 0 {
		retention = time.Hour
	}
	s := &Service{
		db:        db,
		engine:    engine,
		sync:      syncer,
		retention: retention,
		log:       logger.Named(log, "session"),
	}
	engine.OnGameOver(s.RecordResult)
	return s
}

type ListResult struct {
	Items []model.GameSession
	Total int64
}

func (s *Service) Create(ctx context.Context, req mafia.CreateSessionRequest) (*model.GameSession, error) {
	id, err := s.engine.CreateSession(ctx, req)
	if err != nil {
		return nil, err
	}
	code, err := s.freeJoinCode(ctx)
	if err != nil {
		return nil, err
	}
	row := model.GameSession{
		ID:            id,
		FamilyGroupID: req.FamilyGroupID,
		HostID:        req.HostID,
		GameType:      string(mafia.GameType),
		JoinCode:      code,
		Status:        model.SessionStatusLobby,
		PlayerCount:   1,
		WinnersJSON:   datatypes.JSON("[]"),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Service) freeJoinCode(ctx context.Context) (string, error) {
	for i := 0; i < joinCodeAttempts; i++ {
		code := random.Code(joinCodeLength)
		var count int64
		if err := s.db.WithContext(ctx).
			Model(&model.GameSession{}).
			Where("join_code = ?", code).
			Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", appErr.New(appErr.CodeConflict, "could not allocate a join code")
}

// Join seats a player in the session behind code.
func (s *Service) Join(ctx context.Context, code string, req mafia.JoinRequest) (*model.GameSession, error) {
	row, err := s.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.join(ctx, row, req)
}

// JoinByID seats a player in a session addressed by id.
func (s *Service) JoinByID(ctx context.Context, sessionID string, req mafia.JoinRequest) (*model.GameSession, error) {
	row, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.join(ctx, row, req)
}

func (s *Service) join(ctx context.Context, row *model.GameSession, req mafia.JoinRequest) (*model.GameSession, error) {
	req.SessionID = row.ID
	count, err := s.engine.JoinSession(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).
		Model(row).
		Update("player_count", count).Error; err != nil {
		return nil, err
	}
	row.PlayerCount = count
	return row, nil
}

func (s *Service) Start(ctx context.Context, sessionID, hostID string) error {
	if err := s.engine.StartGame(ctx, sessionID, hostID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Model(&model.GameSession{}).
		Where("id = ?", sessionID).
		Update("status", model.SessionStatusActive).Error
}

func (s *Service) Get(ctx context.Context, sessionID string) (*model.GameSession, error) {
	var row model.GameSession
	if err := s.db.WithContext(ctx).Where("id = ?", sessionID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrSessionNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (s *Service) FindByCode(ctx context.Context, code string) (*model.GameSession, error) {
	var row model.GameSession
	if err := s.db.WithContext(ctx).Where("join_code = ?", code).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrSessionNotFound
		}
		return nil, err
	}
	return &row, nil
}

// ListByFamily pages through a family's sessions, newest first.
func (s *Service) ListByFamily(ctx context.Context, familyGroupID string, page, size int) (*ListResult, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}

	var total int64
	if err := s.db.WithContext(ctx).
		Model(&model.GameSession{}).
		Where("family_group_id = ?", familyGroupID).
		Count(&total).Error; err != nil {
		return nil, err
	}
	var items []model.GameSession
	if total > 0 {
		if err := s.db.WithContext(ctx).
			Where("family_group_id = ?", familyGroupID).
			Order("created_at DESC").
			Limit(size).
			Offset((page - 1) * size).
			Find(&items).Error; err != nil {
			return nil, err
		}
	}
	return &ListResult{Items: items, Total: total}, nil
}

// RecordResult stores the outcome of a finished game and schedules its live
// state for expiry.
func (s *Service) RecordResult(ctx context.Context, st *mafia.GameState) {
	winners, err := json.Marshal(st.WinnerIDs)
	if err != nil {
		s.log.Error("failed to encode winners", zap.String("sessionID", st.SessionID), zap.Error(err))
		return
	}
	ended := time.UnixMilli(st.EndedAt).UTC()
	updates := map[string]interface{}{
		"status":        model.SessionStatusFinished,
		"player_count":  len(st.Players),
		"day_count":     st.DayNumber,
		"win_condition": string(st.WinCondition),
		"winners_json":  datatypes.JSON(winners),
		"ended_at":      &ended,
	}
	if err := s.db.WithContext(ctx).
		Model(&model.GameSession{}).
		Where("id = ?", st.SessionID).
		Updates(updates).Error; err != nil {
		s.log.Error("failed to record game result", zap.String("sessionID", st.SessionID), zap.Error(err))
	}
	if err := s.sync.Expire(ctx, st.SessionID, s.retention); err != nil {
		s.log.Warn("failed to expire finished session", zap.String("sessionID", st.SessionID), zap.Error(err))
	}
	s.log.Info("game recorded",
		zap.String("sessionID", st.SessionID),
		zap.String("condition", string(st.WinCondition)),
		zap.Int("days", st.DayNumber),
	)
}
