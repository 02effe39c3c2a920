package mafia

// Bus message types published by the engine.
const (
	EventPlayerJoined   = "player_joined"
	EventGameStarted    = "game_started"
	EventRoleAssigned   = "role_assigned"
	EventPhaseChanged   = "phase_changed"
	EventActionAccepted = "action_accepted"
	EventChat           = "chat"
	EventVoteCast       = "vote_cast"
	EventNightResult    = "night_result"
	EventInvestigation  = "investigation_result"
	EventTrialStarted   = "trial_started"
	EventNoLynch        = "no_lynch"
	EventPlayerLynched  = "player_lynched"
	EventJesterWin      = "jester_win"
	EventGameOver       = "game_over"
)

type pendingEvent struct {
	msgType  string
	playerID string // empty for the session broadcast
	data     any
}

type roleAssignedEvent struct {
	Role      Role       `json:"role"`
	Team      Team       `json:"team"`
	Ability   ActionType `json:"ability,omitempty"`
	Charges   int        `json:"charges,omitempty"`
	Teammates []string   `json:"teammates,omitempty"`
}

type phaseChangedEvent struct {
	Phase     Phase `json:"phase"`
	DayNumber int   `json:"dayNumber"`
	Deadline  int64 `json:"deadline"`
}

type deathEvent struct {
	PlayerID string `json:"playerId"`
	Role     Role   `json:"role"`
	LastWill string `json:"lastWill,omitempty"`
}

type nightResultEvent struct {
	DayNumber int          `json:"dayNumber"`
	Deaths    []deathEvent `json:"deaths"`
	Saved     int          `json:"saved"`
}

type lynchEvent struct {
	deathEvent
	Votes int `json:"votes"`
}

type gameOverEvent struct {
	WinCondition WinCondition    `json:"winCondition"`
	WinnerIDs    []string        `json:"winnerIds"`
	Roles        map[string]Role `json:"roles"`
	DayNumber    int             `json:"dayNumber"`
}
