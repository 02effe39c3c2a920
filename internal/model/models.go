package model

import (
	"time"

	"gorm.io/datatypes"
)

// Session lifecycle values stored in GameSession.Status.
const (
	SessionStatusLobby    = "lobby"
	SessionStatusActive   = "active"
	SessionStatusFinished = "finished"
)

// GameSession is the durable registry row of one party game. Live state lives in Redis.
type GameSession struct {
	ID            string `gorm:"primaryKey;size:64"`
	FamilyGroupID string `gorm:"index;size:64;not null"`
	HostID        string `gorm:"size:64;not null"`
	GameType      string `gorm:"size:32;not null"`
	JoinCode      string `gorm:"uniqueIndex;size:16"`
	Status        string `gorm:"default:lobby;not null"` // lobby/active/finished
	PlayerCount   int
	DayCount      int
	WinCondition  string
	WinnersJSON   datatypes.JSON `gorm:"type:jsonb"` // ["playerId", ...]
	CreatedAt     time.Time
	UpdatedAt     time.Time
	EndedAt       *time.Time
}

// CheatRecord is one persisted referee analysis. Rows are insert-only.
type CheatRecord struct {
	ID                       int64          `gorm:"primaryKey;autoIncrement"`
	SessionID                string         `gorm:"index;size:64;not null"`
	PlayerID                 string         `gorm:"index;size:64;not null"`
	ActionType               string         `gorm:"size:32"`
	IndicatorsJSON           datatypes.JSON `gorm:"type:jsonb"` // ["timing_regularity", ...]
	OverallProbability       float64
	SeverityLevel            int            `gorm:"index"`
	EvidenceJSON             datatypes.JSON `gorm:"type:jsonb"`
	RecommendedAction        string
	FalsePositiveProbability float64
	CreatedAt                time.Time
}
