package mafia

import (
	"fmt"
	"sort"

	"party-service/internal/service/statesync"
)

const GameType statesync.GameType = "mafia"

type Phase string

const (
	PhaseLobby          Phase = "LOBBY"
	PhaseRoleAssignment Phase = "ROLE_ASSIGNMENT"
	PhaseNight          Phase = "NIGHT"
	PhaseDay            Phase = "DAY"
	PhaseVoting         Phase = "VOTING"
	PhaseTrial          Phase = "TRIAL"
	PhaseGameOver       Phase = "GAME_OVER"
)

func (p Phase) Valid() bool {
	switch p {
	case PhaseLobby, PhaseRoleAssignment, PhaseNight, PhaseDay, PhaseVoting, PhaseTrial, PhaseGameOver:
		return true
	}
	return false
}

type DeathCause string

const (
	DeathNone      DeathCause = "none"
	DeathNightKill DeathCause = "night_kill"
	DeathLynch     DeathCause = "lynch"
)

type WinCondition string

const (
	WinNone  WinCondition = ""
	MafiaWin WinCondition = "MAFIA_WIN"
	TownWin  WinCondition = "TOWN_WIN"
)

type Player struct {
	ID                   string             `json:"id"`
	DisplayName          string             `json:"displayName"`
	LinkedFamilyMemberID string             `json:"linkedFamilyMemberId,omitempty"`
	Role                 Role               `json:"role,omitempty"`
	IsAlive              bool               `json:"isAlive"`
	VotesAgainst         int                `json:"votesAgainst"`
	ActionsRemaining     map[ActionType]int `json:"actionsRemaining,omitempty"`
	ProtectedBy          string             `json:"protectedBy,omitempty"`
	LastWill             string             `json:"lastWill,omitempty"`
	DeathNote            string             `json:"deathNote,omitempty"`
	DeathCause           DeathCause         `json:"deathCause"`
	Skill                float64            `json:"skill"`
	PreferredRoles       []Role             `json:"preferredRoles,omitempty"`
	JoinedAt             int64              `json:"joinedAt"`
}

// GameAction is one accepted submission. Resolution only sets the outcome flags.
type GameAction struct {
	ID            string         `json:"id"`
	PlayerID      string         `json:"playerId"`
	ActionType    ActionType     `json:"actionType"`
	TargetID      string         `json:"targetId,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
	Timestamp     int64          `json:"timestamp"`
	Phase         Phase          `json:"phase"`
	DayNumber     int            `json:"dayNumber"`
	WasSuccessful bool           `json:"wasSuccessful"`
	WasBlocked    bool           `json:"wasBlocked"`
	ResponseMs    int64          `json:"responseMs"`
}

type ChatEntry struct {
	ID        string `json:"id"`
	PlayerID  string `json:"playerId"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	Phase     Phase  `json:"phase"`
	DayNumber int    `json:"dayNumber"`
}

type Ballot struct {
	TargetID string `json:"targetId,omitempty"` // empty means abstain
	Weight   int    `json:"weight"`
	CastAt   int64  `json:"castAt"`
}

// Settings are fixed per session at creation. Durations are in seconds.
type Settings struct {
	MinPlayers             int     `json:"minPlayers"`
	MaxPlayers             int     `json:"maxPlayers"`
	RoleRevealSeconds      int     `json:"roleRevealSeconds"`
	NightSeconds           int     `json:"nightSeconds"`
	DaySeconds             int     `json:"daySeconds"`
	VotingSeconds          int     `json:"votingSeconds"`
	TrialSeconds           int     `json:"trialSeconds"`
	SkillVarianceThreshold float64 `json:"skillVarianceThreshold"`
}

type NightResult struct {
	DayNumber int      `json:"dayNumber"`
	Killed    []string `json:"killed"`
	Saved     []string `json:"saved"`
}

type GameState struct {
	SessionID      string             `json:"sessionId"`
	FamilyGroupID  string             `json:"familyGroupId"`
	HostID         string             `json:"hostId"`
	Players        map[string]*Player `json:"players"`
	Phase          Phase              `json:"phase"`
	DayNumber      int                `json:"dayNumber"`
	PhaseStartedAt int64              `json:"phaseStartedAt"`
	PhaseDeadline  int64              `json:"phaseDeadline"`
	VotingTally    map[string]int     `json:"votingTally"`
	Ballots        map[string]Ballot  `json:"ballots"`
	TrialTarget    string             `json:"trialTarget,omitempty"`
	ActionLog      []GameAction       `json:"actionLog"`
	ChatLog        []ChatEntry        `json:"chatLog"`
	Settings       Settings           `json:"settings"`
	WinCondition   WinCondition       `json:"winCondition,omitempty"`
	WinnerIDs      []string           `json:"winnerIds"`
	Cooldowns      map[string]int64   `json:"cooldowns"`
	NightResults   []NightResult      `json:"nightResults"`
	CreatedAt      int64              `json:"createdAt"`
	EndedAt        int64              `json:"endedAt,omitempty"`
}

func newGameState(sessionID, familyGroupID, hostID string, settings Settings, now int64) *GameState {
	return &GameState{
		SessionID:      sessionID,
		FamilyGroupID:  familyGroupID,
		HostID:         hostID,
		Players:        map[string]*Player{},
		Phase:          PhaseLobby,
		PhaseStartedAt: now,
		VotingTally:    map[string]int{},
		Ballots:        map[string]Ballot{},
		ActionLog:      []GameAction{},
		ChatLog:        []ChatEntry{},
		Settings:       settings,
		WinnerIDs:      []string{},
		Cooldowns:      map[string]int64{},
		NightResults:   []NightResult{},
		CreatedAt:      now,
	}
}

func (s *GameState) ensureMaps() {
	if s.Players == nil {
		s.Players = map[string]*Player{}
	}
	if s.VotingTally == nil {
		s.VotingTally = map[string]int{}
	}
	if s.Ballots == nil {
		s.Ballots = map[string]Ballot{}
	}
	if s.Cooldowns == nil {
		s.Cooldowns = map[string]int64{}
	}
	if s.ActionLog == nil {
		s.ActionLog = []GameAction{}
	}
	if s.ChatLog == nil {
		s.ChatLog = []ChatEntry{}
	}
	if s.WinnerIDs == nil {
		s.WinnerIDs = []string{}
	}
	if s.NightResults == nil {
		s.NightResults = []NightResult{}
	}
}

func (s *GameState) Player(id string) (*Player, bool) {
	p, ok := s.Players[id]
	return p, ok
}

// PlayerIDs lists players in join order.
func (s *GameState) PlayerIDs() []string {
	ids := make([]string, 0, len(s.Players))
	for id := range s.Players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.Players[ids[i]], s.Players[ids[j]]
		if a.JoinedAt != b.JoinedAt {
			return a.JoinedAt < b.JoinedAt
		}
		return ids[i] < ids[j]
	})
	return ids
}

func (s *GameState) AlivePlayers() []*Player {
	var out []*Player
	for _, id := range s.PlayerIDs() {
		if p := s.Players[id]; p.IsAlive {
			out = append(out, p)
		}
	}
	return out
}

func (s *GameState) hasAction(id string) bool {
	for _, a := range s.ActionLog {
		if a.ID == id {
			return true
		}
	}
	for _, c := range s.ChatLog {
		if c.ID == id {
			return true
		}
	}
	return false
}

// tonightActions lists the night abilities submitted in the current night.
func (s *GameState) tonightActions() []GameAction {
	var out []GameAction
	for _, a := range s.ActionLog {
		if a.Phase == PhaseNight && a.DayNumber == s.DayNumber && a.ActionType.IsNightAbility() {
			out = append(out, a)
		}
	}
	return out
}

func (s *GameState) addWinners(ids ...string) {
	seen := make(map[string]bool, len(s.WinnerIDs))
	for _, id := range s.WinnerIDs {
		seen[id] = true
	}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			s.WinnerIDs = append(s.WinnerIDs, id)
		}
	}
}

func (s *GameState) document() (map[string]any, error) {
	return statesync.Normalize(s)
}

func decodeState(doc map[string]any) (*GameState, error) {
	var st GameState
	if err := statesync.Decode(doc, &st); err != nil {
		return nil, fmt.Errorf("decode mafia state: %w", err)
	}
	st.ensureMaps()
	return &st, nil
}

// schema validates mafia documents at the synchronizer boundary.
type schema struct{}

func (schema) Validate(doc map[string]any) error {
	st, err := decodeState(doc)
	if err != nil {
		return err
	}
	if st.SessionID == "" || st.HostID == "" {
		return fmt.Errorf("session and host are required")
	}
	if !st.Phase.Valid() {
		return fmt.Errorf("unknown phase %q", st.Phase)
	}
	if st.DayNumber < 0 {
		return fmt.Errorf("negative day number %d", st.DayNumber)
	}
	for id, p := range st.Players {
		if p == nil || p.ID != id {
			return fmt.Errorf("player entry %s is malformed", id)
		}
		if st.Phase != PhaseLobby && !p.Role.Valid() {
			return fmt.Errorf("player %s has no valid role in %s", id, st.Phase)
		}
	}
	if st.WinCondition != WinNone && st.Phase != PhaseGameOver {
		return fmt.Errorf("win condition set outside GAME_OVER")
	}
	return nil
}
