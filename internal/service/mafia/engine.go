// Package mafia runs Mafia sessions: the phase state machine, role abilities,
// role-balance assignment and win evaluation. All shared state goes through
// the state synchronizer; events go to the message bus.
package mafia

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"party-service/internal/service/bus"
	"party-service/internal/service/referee"
	"party-service/internal/service/statesync"
	appErr "party-service/pkg/errors"
	"party-service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Config struct {
	MinPlayers             int
	MaxPlayers             int
	RoleReveal             time.Duration
	Night                  time.Duration
	Day                    time.Duration
	Voting                 time.Duration
	Trial                  time.Duration
	SkillVarianceThreshold float64
	TimerStoreTimeout      time.Duration

	RetryMaxElapsed time.Duration
	RetryMaxTries   uint
	ActionsPerSec   float64
	ActionBurst     int
}

func DefaultConfig() Config {
	return Config{
		MinPlayers:             AbsoluteMinPlayers,
		MaxPlayers:             AbsoluteMaxPlayers,
		RoleReveal:             10 * time.Second,
		Night:                  45 * time.Second,
		Day:                    90 * time.Second,
		Voting:                 45 * time.Second,
		Trial:                  20 * time.Second,
		SkillVarianceThreshold: DefaultSkillVarianceThreshold,
		TimerStoreTimeout:      5 * time.Second,
		RetryMaxElapsed:        2 * time.Second,
		RetryMaxTries:          4,
		ActionsPerSec:          5,
		ActionBurst:            10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinPlayers < AbsoluteMinPlayers {
		c.MinPlayers = d.MinPlayers
	}
	if c.MaxPlayers <= 0 || c.MaxPlayers > AbsoluteMaxPlayers {
		c.MaxPlayers = d.MaxPlayers
	}
	for _, pair := range []struct {
		v   *time.Duration
		def time.Duration
	}{
		{&c.RoleReveal, d.RoleReveal},
		{&c.Night, d.Night},
		{&c.Day, d.Day},
		{&c.Voting, d.Voting},
		{&c.Trial, d.Trial},
		{&c.TimerStoreTimeout, d.TimerStoreTimeout},
	} {
		if *pair.v <= 0 {
			*pair.v = pair.def
		}
	}
	if c.SkillVarianceThreshold <= 0 {
		c.SkillVarianceThreshold = d.SkillVarianceThreshold
	}
	if c.RetryMaxElapsed <= 0 {
		c.RetryMaxElapsed = d.RetryMaxElapsed
	}
	if c.RetryMaxTries == 0 {
		c.RetryMaxTries = d.RetryMaxTries
	}
	return c
}

// Reviewer scores an accepted action before it is applied.
type Reviewer interface {
	Review(ctx context.Context, sessionID, playerID string, history []referee.Event) (referee.CheatDetectionResult, error)
}

// GameOverHook runs once per finished game, after the final state is stored.
type GameOverHook func(ctx context.Context, state *GameState)

type Engine struct {
	sync *statesync.Synchronizer
	bus  bus.Bus
	cfg  Config
	log  *zap.Logger

	reviewer     Reviewer
	interceptors []Interceptor

	rngMu sync.Mutex
	rng   *rand.Rand

	timerMu sync.Mutex
	timers  map[string]*time.Timer
	closed  bool

	locks    sync.Map // sessionID -> *sync.Mutex
	reviewed sync.Map // actionID -> struct{}

	hookMu sync.RWMutex
	hooks  []GameOverHook

	now   func() time.Time
	newID func() string
}

func NewEngine(syncer *statesync.Synchronizer, b bus.Bus, cfg Config, log *zap.Logger) *Engine {
	cfg = cfg.withDefaults()
	l := logger.Named(log, "mafia")
	seed := uint64(time.Now().UnixNano())
	e := &Engine{
		sync:   syncer,
		bus:    b,
		cfg:    cfg,
		log:    l,
		rng:    rand.New(rand.NewPCG(seed, seed>>17|1)),
		timers: make(map[string]*time.Timer),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	e.interceptors = []Interceptor{
		LoggingInterceptor{Log: l},
		NewTracingInterceptor(),
		MetricsInterceptor{},
		NewRateLimitInterceptor(cfg.ActionsPerSec, cfg.ActionBurst),
		RetryInterceptor{
			InitialInterval: 20 * time.Millisecond,
			MaxInterval:     250 * time.Millisecond,
			MaxElapsed:      cfg.RetryMaxElapsed,
			MaxTries:        cfg.RetryMaxTries,
			Log:             l,
		},
	}

	syncer.RegisterSchema(GameType, schema{})
	syncer.RegisterConflictHandler("cooldowns.*", statesync.MaxValueWins)
	return e
}

// SetReviewer wires the referee into action submission.
func (e *Engine) SetReviewer(r Reviewer) {
	e.reviewer = r
}

// SetInterceptors replaces the interceptor chain.
func (e *Engine) SetInterceptors(interceptors ...Interceptor) {
	e.interceptors = interceptors
}

// SetRand fixes the random source used for role assignment.
func (e *Engine) SetRand(rng *rand.Rand) {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	e.rng = rng
}

func (e *Engine) OnGameOver(hook GameOverHook) {
	e.hookMu.Lock()
	defer e.hookMu.Unlock()
	e.hooks = append(e.hooks, hook)
}

// Close stops every phase timer owned by this process.
func (e *Engine) Close() {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	e.closed = true
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
}

func (e *Engine) run(ctx context.Context, call Call, fn Handler) error {
	return chain(e.interceptors, call, fn)(ctx)
}

func (e *Engine) lock(sessionID string) func() {
	v, _ := e.locks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// session is the explicit per-call context: the base document, the decoded
// state being mutated and the events to publish once the write lands.
type session struct {
	id     string
	base   map[string]any
	state  *GameState
	events []pendingEvent

	entered   []Phase
	scheduled bool
	finished  bool
}

func (e *Engine) open(ctx context.Context, sessionID string) (*session, error) {
	snap, err := e.sync.GetState(ctx, sessionID)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return nil, appErr.ErrSessionNotFound
		}
		return nil, err
	}
	if snap.GameType != GameType {
		return nil, appErr.ErrSessionNotFound
	}
	st, err := decodeState(snap.StateData)
	if err != nil {
		return nil, appErr.Wrap(appErr.CodeIntegrity, "decode session", err)
	}
	return &session{id: sessionID, base: snap.StateData, state: st}, nil
}

func (s *session) emit(msgType string, data any) {
	s.events = append(s.events, pendingEvent{msgType: msgType, data: data})
}

func (s *session) tell(playerID, msgType string, data any) {
	s.events = append(s.events, pendingEvent{msgType: msgType, playerID: playerID, data: data})
}

// commit writes the difference between the base document and the mutated
// state as one batch, then publishes the queued events.
func (e *Engine) commit(ctx context.Context, s *session, playerID string) error {
	next, err := s.state.document()
	if err != nil {
		return err
	}
	updates := statesync.Diff(s.base, next, 2)
	if len(updates) > 0 {
		if _, err := e.sync.BatchUpdate(ctx, s.id, updates, playerID); err != nil {
			return err
		}
	}
	e.publish(ctx, s)
	return nil
}

func (e *Engine) publish(ctx context.Context, s *session) {
	for _, ev := range s.events {
		msg, err := bus.NewMessage(ev.msgType, s.id, ev.data)
		if err != nil {
			e.log.Error("failed to encode event", zap.String("type", ev.msgType), zap.Error(err))
			continue
		}
		topic := bus.SessionTopic(s.id)
		if ev.playerID != "" {
			topic = bus.PlayerTopic(s.id, ev.playerID)
		}
		if err := e.bus.Publish(ctx, topic, msg); err != nil {
			e.log.Warn("failed to publish event",
				zap.String("sessionID", s.id),
				zap.String("type", ev.msgType),
				zap.Error(err),
			)
		}
	}
	s.events = nil
}

// after runs the side effects of a committed transition.
func (e *Engine) after(ctx context.Context, s *session) {
	for _, p := range s.entered {
		phaseTransitions.WithLabelValues(string(p)).Inc()
	}
	if s.finished {
		gamesFinished.WithLabelValues(string(s.state.WinCondition)).Inc()
		e.cancelTimer(s.id)
		e.runHooks(ctx, s.state)
		return
	}
	if s.scheduled {
		e.schedule(s.id, s.state.Phase, s.state.DayNumber, s.state.PhaseDeadline)
	}
}

func (e *Engine) runHooks(ctx context.Context, state *GameState) {
	e.hookMu.RLock()
	hooks := append([]GameOverHook(nil), e.hooks...)
	e.hookMu.RUnlock()
	for _, h := range hooks {
		h(ctx, state)
	}
}

type CreateSessionRequest struct {
	FamilyGroupID        string
	HostID               string
	HostName             string
	LinkedFamilyMemberID string
	HostSkill            float64
	HostPreferredRoles   []Role
	Settings             Settings
}

// CreateSession opens a lobby with the host as its first player.
func (e *Engine) CreateSession(ctx context.Context, req CreateSessionRequest) (string, error) {
	if req.HostID == "" || req.FamilyGroupID == "" {
		return "", appErr.New(appErr.CodeInvalidArgument, "family group and host are required")
	}
	if err := validRoles(req.HostPreferredRoles); err != nil {
		return "", err
	}
	sessionID := e.newID()
	err := e.run(ctx, Call{Op: "CreateSession", SessionID: sessionID, PlayerID: req.HostID}, func(ctx context.Context) error {
		now := e.now().UnixMilli()
		st := newGameState(sessionID, req.FamilyGroupID, req.HostID, e.settings(req.Settings), now)
		st.Players[req.HostID] = newPlayer(req.HostID, displayName(req.HostName, req.HostID), req.LinkedFamilyMemberID, req.HostSkill, req.HostPreferredRoles, now)

		_, err := e.sync.CreateState(ctx, sessionID, GameType, st)
		if errors.Is(err, appErr.ErrAlreadyExists) {
			// an earlier attempt landed before timing out
			return nil
		}
		return err
	})
	if err != nil {
		return "", err
	}
	e.log.Info("session created",
		zap.String("sessionID", sessionID),
		zap.String("familyGroupID", req.FamilyGroupID),
		zap.String("hostID", req.HostID),
	)
	return sessionID, nil
}

func (e *Engine) settings(s Settings) Settings {
	if s.MinPlayers < AbsoluteMinPlayers {
		s.MinPlayers = e.cfg.MinPlayers
	}
	if s.MaxPlayers <= 0 || s.MaxPlayers > AbsoluteMaxPlayers {
		s.MaxPlayers = e.cfg.MaxPlayers
	}
	if s.MinPlayers > s.MaxPlayers {
		s.MinPlayers = s.MaxPlayers
	}
	if s.RoleRevealSeconds <= 0 {
		s.RoleRevealSeconds = int(e.cfg.RoleReveal / time.Second)
	}
	if s.NightSeconds <= 0 {
		s.NightSeconds = int(e.cfg.Night / time.Second)
	}
	if s.DaySeconds <= 0 {
		s.DaySeconds = int(e.cfg.Day / time.Second)
	}
	if s.VotingSeconds <= 0 {
		s.VotingSeconds = int(e.cfg.Voting / time.Second)
	}
	if s.TrialSeconds <= 0 {
		s.TrialSeconds = int(e.cfg.Trial / time.Second)
	}
	if s.SkillVarianceThreshold <= 0 {
		s.SkillVarianceThreshold = e.cfg.SkillVarianceThreshold
	}
	return s
}

func newPlayer(id, name, familyMemberID string, skill float64, prefs []Role, now int64) *Player {
	return &Player{
		ID:                   id,
		DisplayName:          name,
		LinkedFamilyMemberID: familyMemberID,
		IsAlive:              true,
		DeathCause:           DeathNone,
		Skill:                skill,
		PreferredRoles:       prefs,
		JoinedAt:             now,
	}
}

func displayName(name, id string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return id
}

func validRoles(roles []Role) error {
	for _, r := range roles {
		if !r.Valid() {
			return appErr.Newf(appErr.CodeInvalidArgument, "unknown role %q", r)
		}
	}
	return nil
}

type JoinRequest struct {
	SessionID            string
	PlayerID             string
	DisplayName          string
	LinkedFamilyMemberID string
	Skill                float64
	PreferredRoles       []Role
}

// JoinSession adds a player to a lobby and returns the player count. Joining
// twice is a no-op.
func (e *Engine) JoinSession(ctx context.Context, req JoinRequest) (int, error) {
	if req.PlayerID == "" {
		return 0, appErr.New(appErr.CodeInvalidArgument, "player id is required")
	}
	if err := validRoles(req.PreferredRoles); err != nil {
		return 0, err
	}
	var count int
	err := e.run(ctx, Call{Op: "JoinSession", SessionID: req.SessionID, PlayerID: req.PlayerID}, func(ctx context.Context) error {
		defer e.lock(req.SessionID)()
		s, err := e.open(ctx, req.SessionID)
		if err != nil {
			return err
		}
		st := s.state
		if _, ok := st.Players[req.PlayerID]; ok {
			count = len(st.Players)
			return nil
		}
		if st.Phase != PhaseLobby {
			return appErr.ErrGameAlreadyBegun
		}
		if len(st.Players) >= st.Settings.MaxPlayers {
			return appErr.ErrSessionFull
		}
		now := e.now().UnixMilli()
		p := newPlayer(req.PlayerID, displayName(req.DisplayName, req.PlayerID), req.LinkedFamilyMemberID, req.Skill, req.PreferredRoles, now)
		st.Players[p.ID] = p
		count = len(st.Players)
		s.emit(EventPlayerJoined, map[string]any{"playerId": p.ID, "displayName": p.DisplayName, "playerCount": count})
		return e.commit(ctx, s, req.PlayerID)
	})
	return count, err
}

// StartGame deals roles and opens the role reveal. Host only.
func (e *Engine) StartGame(ctx context.Context, sessionID, hostID string) error {
	return e.run(ctx, Call{Op: "StartGame", SessionID: sessionID, PlayerID: hostID}, func(ctx context.Context) error {
		defer e.lock(sessionID)()
		s, err := e.open(ctx, sessionID)
		if err != nil {
			return err
		}
		st := s.state
		if st.HostID != hostID {
			return appErr.ErrNotHost
		}
		if st.Phase != PhaseLobby {
			return appErr.ErrGameAlreadyBegun
		}
		if len(st.Players) < st.Settings.MinPlayers {
			return appErr.Illegal(fmt.Sprintf("need at least %d players, have %d", st.Settings.MinPlayers, len(st.Players)))
		}

		candidates := make([]Candidate, 0, len(st.Players))
		for _, id := range st.PlayerIDs() {
			p := st.Players[id]
			candidates = append(candidates, Candidate{ID: id, Skill: p.Skill, PreferredRoles: p.PreferredRoles})
		}
		e.rngMu.Lock()
		roles, ok := AssignRoles(candidates, st.Settings.SkillVarianceThreshold, e.rng)
		e.rngMu.Unlock()
		if !ok {
			return appErr.Illegal(fmt.Sprintf("no role table for %d players", len(candidates)))
		}

		var mafia []string
		for _, id := range st.PlayerIDs() {
			p := st.Players[id]
			p.Role = roles[id]
			if c := p.Role.Charges(); c > 0 {
				p.ActionsRemaining = map[ActionType]int{p.Role.Ability(): c}
			}
			if p.Role.Team() == TeamMafia {
				mafia = append(mafia, id)
			}
		}
		for _, id := range st.PlayerIDs() {
			p := st.Players[id]
			ev := roleAssignedEvent{Role: p.Role, Team: p.Role.Team(), Ability: p.Role.Ability(), Charges: p.Role.Charges()}
			if p.Role.Team() == TeamMafia {
				for _, m := range mafia {
					if m != id {
						ev.Teammates = append(ev.Teammates, m)
					}
				}
			}
			s.tell(id, EventRoleAssigned, ev)
		}
		s.emit(EventGameStarted, map[string]any{"playerCount": len(st.Players)})
		e.enterPhase(s, PhaseRoleAssignment)

		if err := e.commit(ctx, s, hostID); err != nil {
			return err
		}
		e.log.Info("game started", zap.String("sessionID", sessionID), zap.Int("players", len(st.Players)))
		e.after(ctx, s)
		return nil
	})
}

type ActionRequest struct {
	ID         string // idempotency key, generated when empty
	SessionID  string
	PlayerID   string
	ActionType ActionType
	TargetID   string
	Payload    map[string]any
}

// Outcome is the answer to a submission: accepted, or rejected with a reason.
type Outcome struct {
	ActionID string `json:"actionId"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// SubmitAction validates, reviews and applies one player action. Rule
// violations come back as a rejected Outcome; other failures as errors.
func (e *Engine) SubmitAction(ctx context.Context, req ActionRequest) (Outcome, error) {
	if req.ID == "" {
		req.ID = e.newID()
	}
	defer e.reviewed.Delete(req.ID)

	out := Outcome{ActionID: req.ID}
	err := e.run(ctx, Call{Op: "SubmitAction", SessionID: req.SessionID, PlayerID: req.PlayerID}, func(ctx context.Context) error {
		return e.submit(ctx, req)
	})
	switch {
	case err == nil:
		out.Accepted = true
		actionsTotal.WithLabelValues(string(req.ActionType), "accepted").Inc()
		return out, nil
	case errors.Is(err, appErr.ErrIllegalAction):
		out.Reason = appErr.Reason(err)
		actionsTotal.WithLabelValues(string(req.ActionType), "rejected").Inc()
		return out, nil
	default:
		actionsTotal.WithLabelValues(string(req.ActionType), "error").Inc()
		return out, err
	}
}

func (e *Engine) submit(ctx context.Context, req ActionRequest) error {
	defer e.lock(req.SessionID)()
	s, err := e.open(ctx, req.SessionID)
	if err != nil {
		return err
	}
	st := s.state
	if st.hasAction(req.ID) {
		return nil
	}

	now := e.now()
	action := GameAction{
		ID:         req.ID,
		PlayerID:   req.PlayerID,
		ActionType: req.ActionType,
		TargetID:   req.TargetID,
		Payload:    req.Payload,
		Timestamp:  now.UnixMilli(),
		Phase:      st.Phase,
		DayNumber:  st.DayNumber,
		ResponseMs: now.UnixMilli() - st.PhaseStartedAt,
	}
	if action.ResponseMs < 0 {
		action.ResponseMs = 0
	}
	if err := ValidateAction(st, action, now); err != nil {
		return err
	}
	if err := e.review(ctx, st, action); err != nil {
		return err
	}

	actor := st.Players[req.PlayerID]
	switch action.ActionType {
	case ActionChat:
		entry := ChatEntry{
			ID:        action.ID,
			PlayerID:  action.PlayerID,
			Text:      payloadText(action),
			Timestamp: action.Timestamp,
			Phase:     st.Phase,
			DayNumber: st.DayNumber,
		}
		st.ChatLog = append(st.ChatLog, entry)
		s.emit(EventChat, entry)
	case ActionLastWill:
		actor.LastWill = payloadText(action)
		action.WasSuccessful = true
		st.ActionLog = append(st.ActionLog, action)
	case ActionVote, ActionAbstain:
		castBallot(st, action.PlayerID, action.TargetID, action.Timestamp)
		action.WasSuccessful = true
		st.ActionLog = append(st.ActionLog, action)
		s.emit(EventVoteCast, map[string]any{"voterId": action.PlayerID, "targetId": action.TargetID, "tally": headCount(st)})
		if allVoted(st) {
			if err := e.advance(s); err != nil {
				return err
			}
		}
	default:
		if actor.Role.Charges() > 0 {
			if actor.ActionsRemaining == nil {
				actor.ActionsRemaining = map[ActionType]int{}
			}
			actor.ActionsRemaining[action.ActionType]--
		}
		st.ActionLog = append(st.ActionLog, action)
		s.tell(action.PlayerID, EventActionAccepted, map[string]any{"actionId": action.ID, "actionType": action.ActionType, "targetId": action.TargetID})
		if nightComplete(st) {
			if err := e.advance(s); err != nil {
				return err
			}
		}
	}

	if err := e.commit(ctx, s, req.PlayerID); err != nil {
		return err
	}
	e.after(ctx, s)
	return nil
}

// review hands the actor's history plus the new action to the referee once
// per action id. Referee failures never block the action.
// review scores the action once per id. A review that puts the player on
// cooldown rejects the action that triggered it.
func (e *Engine) review(ctx context.Context, st *GameState, action GameAction) error {
	if e.reviewer == nil {
		return nil
	}
	if _, seen := e.reviewed.LoadOrStore(action.ID, struct{}{}); seen {
		return nil
	}
	history := playerHistory(st, action.PlayerID)
	history = append(history, toEvent(action))
	result, err := e.reviewer.Review(ctx, st.SessionID, action.PlayerID, history)
	if err != nil {
		e.log.Warn("referee review failed",
			zap.String("sessionID", st.SessionID),
			zap.String("playerID", action.PlayerID),
			zap.Error(err),
		)
		return nil
	}
	if result.RecommendedAction != referee.ActionCooldown && result.RecommendedAction != referee.ActionTemporaryTimeout {
		return nil
	}

	snap, err := e.sync.GetState(ctx, st.SessionID)
	if err != nil {
		e.log.Warn("reload after review failed", zap.String("sessionID", st.SessionID), zap.Error(err))
		return nil
	}
	fresh, err := decodeState(snap.StateData)
	if err != nil {
		return appErr.Wrap(appErr.CodeIntegrity, "decode session", err)
	}
	return cooldownErr(fresh, action.PlayerID, e.now())
}

func playerHistory(st *GameState, playerID string) []referee.Event {
	var events []referee.Event
	for _, a := range st.ActionLog {
		if a.PlayerID == playerID {
			events = append(events, toEvent(a))
		}
	}
	for _, c := range st.ChatLog {
		if c.PlayerID == playerID {
			events = append(events, referee.Event{Type: string(ActionChat), Text: c.Text, Timestamp: time.UnixMilli(c.Timestamp)})
		}
	}
	sortEvents(events)
	return events
}

func toEvent(a GameAction) referee.Event {
	responseMs := a.ResponseMs
	return referee.Event{
		Type:       string(a.ActionType),
		TargetID:   a.TargetID,
		Text:       payloadText(a),
		ResponseMs: &responseMs,
		Timestamp:  time.UnixMilli(a.Timestamp),
	}
}

// nightComplete reports whether every living player with a usable night
// ability has acted.
func nightComplete(st *GameState) bool {
	if st.Phase != PhaseNight {
		return false
	}
	acted := map[string]bool{}
	for _, a := range st.tonightActions() {
		acted[a.PlayerID] = true
	}
	for _, p := range st.AlivePlayers() {
		ability := p.Role.Ability()
		if ability == "" {
			continue
		}
		if p.Role.Charges() > 0 && p.ActionsRemaining[ability] <= 0 && !acted[p.ID] {
			continue
		}
		if !acted[p.ID] {
			return false
		}
	}
	return true
}

// AdvancePhase moves the session to its next phase. hostID must be the host;
// the empty id is reserved for the phase timer.
func (e *Engine) AdvancePhase(ctx context.Context, sessionID, hostID string) error {
	return e.advancePhase(ctx, sessionID, hostID, nil)
}

func (e *Engine) advancePhase(ctx context.Context, sessionID, hostID string, guard *phaseGuard) error {
	return e.run(ctx, Call{Op: "AdvancePhase", SessionID: sessionID, PlayerID: hostID}, func(ctx context.Context) error {
		defer e.lock(sessionID)()
		s, err := e.open(ctx, sessionID)
		if err != nil {
			return err
		}
		if hostID != "" && s.state.HostID != hostID {
			return appErr.ErrNotHost
		}
		if guard != nil && (s.state.Phase != guard.phase || s.state.DayNumber != guard.day) {
			return nil
		}
		if err := e.advance(s); err != nil {
			return err
		}
		if err := e.commit(ctx, s, hostID); err != nil {
			return err
		}
		e.after(ctx, s)
		return nil
	})
}

// State returns the full, unfiltered session state.
func (e *Engine) State(ctx context.Context, sessionID string) (*GameState, error) {
	s, err := e.open(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.state, nil
}

// View returns the session as viewerID may see it.
func (e *Engine) View(ctx context.Context, sessionID, viewerID string) (*GameState, error) {
	st, err := e.State(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ViewFor(st, viewerID), nil
}
