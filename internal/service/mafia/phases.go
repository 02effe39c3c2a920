package mafia

import (
	"context"
	"errors"
	"sort"
	"time"

	"party-service/internal/service/referee"
	appErr "party-service/pkg/errors"

	"go.uber.org/zap"
)

// phaseGuard makes a timer-driven advance a no-op once the session has
// already left the phase the timer was armed for.
type phaseGuard struct {
	phase Phase
	day   int
}

func (e *Engine) phaseDuration(st *GameState, phase Phase) time.Duration {
	var secs int
	switch phase {
	case PhaseRoleAssignment:
		secs = st.Settings.RoleRevealSeconds
	case PhaseNight:
		secs = st.Settings.NightSeconds
	case PhaseDay:
		secs = st.Settings.DaySeconds
	case PhaseVoting:
		secs = st.Settings.VotingSeconds
	case PhaseTrial:
		secs = st.Settings.TrialSeconds
	}
	return time.Duration(secs) * time.Second
}

func (e *Engine) enterPhase(s *session, phase Phase) {
	st := s.state
	now := e.now()
	st.Phase = phase
	st.PhaseStartedAt = now.UnixMilli()
	st.PhaseDeadline = 0
	if d := e.phaseDuration(st, phase); d > 0 {
		st.PhaseDeadline = now.Add(d).UnixMilli()
		s.scheduled = true
	}
	s.entered = append(s.entered, phase)
	s.emit(EventPhaseChanged, phaseChangedEvent{Phase: phase, DayNumber: st.DayNumber, Deadline: st.PhaseDeadline})
}

// advance applies one transition of the phase machine in memory.
func (e *Engine) advance(s *session) error {
	st := s.state
	switch st.Phase {
	case PhaseLobby:
		return appErr.Illegal("the game has not started")
	case PhaseGameOver:
		return appErr.Illegal("the game is over")
	case PhaseRoleAssignment:
		st.DayNumber++
		e.enterPhase(s, PhaseNight)
	case PhaseNight:
		e.resolveNight(s)
		if cond := CheckWinCondition(st); cond != WinNone {
			e.gameOver(s, cond)
			return nil
		}
		e.enterPhase(s, PhaseDay)
	case PhaseDay:
		clearVotes(st)
		e.enterPhase(s, PhaseVoting)
	case PhaseVoting:
		target, ok := ResolveVotes(st.VotingTally)
		if !ok {
			s.emit(EventNoLynch, map[string]any{"dayNumber": st.DayNumber, "tally": headCount(st)})
			clearVotes(st)
			st.TrialTarget = ""
			st.DayNumber++
			e.enterPhase(s, PhaseNight)
			return nil
		}
		st.TrialTarget = target
		s.emit(EventTrialStarted, map[string]any{"playerId": target, "votes": headCount(st)[target]})
		e.enterPhase(s, PhaseTrial)
	case PhaseTrial:
		e.lynch(s)
		if cond := CheckWinCondition(st); cond != WinNone {
			e.gameOver(s, cond)
			return nil
		}
		st.DayNumber++
		e.enterPhase(s, PhaseNight)
	}
	return nil
}

func (e *Engine) resolveNight(s *session) {
	st := s.state
	out := ResolveNightActions(st, st.tonightActions())
	applyNight(st, out)

	for _, inv := range out.Investigations {
		s.tell(inv.InvestigatorID, EventInvestigation, inv)
	}
	ev := nightResultEvent{DayNumber: st.DayNumber, Deaths: []deathEvent{}, Saved: len(out.Saved)}
	for _, id := range out.Killed {
		p := st.Players[id]
		ev.Deaths = append(ev.Deaths, deathEvent{PlayerID: id, Role: p.Role, LastWill: p.LastWill})
	}
	s.emit(EventNightResult, ev)

	e.log.Info("night resolved",
		zap.String("sessionID", st.SessionID),
		zap.Int("day", st.DayNumber),
		zap.Strings("killed", out.Killed),
		zap.Int("saved", len(out.Saved)),
	)
}

func (e *Engine) lynch(s *session) {
	st := s.state
	target, ok := st.Players[st.TrialTarget]
	votes := headCount(st)[st.TrialTarget]
	clearVotes(st)
	st.TrialTarget = ""
	if !ok || !target.IsAlive {
		return
	}
	target.IsAlive = false
	target.DeathCause = DeathLynch
	target.DeathNote = "Lynched by the town"
	s.emit(EventPlayerLynched, lynchEvent{
		deathEvent: deathEvent{PlayerID: target.ID, Role: target.Role, LastWill: target.LastWill},
		Votes:      votes,
	})
	if jesterWins(target) {
		st.addWinners(target.ID)
		s.emit(EventJesterWin, map[string]any{"playerId": target.ID})
	}
}

func (e *Engine) gameOver(s *session, cond WinCondition) {
	st := s.state
	st.Phase = PhaseGameOver
	st.PhaseStartedAt = e.now().UnixMilli()
	st.PhaseDeadline = 0
	st.WinCondition = cond
	st.addWinners(winnersFor(st, cond)...)
	st.EndedAt = st.PhaseStartedAt
	s.finished = true
	s.entered = append(s.entered, PhaseGameOver)

	roles := make(map[string]Role, len(st.Players))
	for id, p := range st.Players {
		roles[id] = p.Role
	}
	s.emit(EventGameOver, gameOverEvent{
		WinCondition: cond,
		WinnerIDs:    st.WinnerIDs,
		Roles:        roles,
		DayNumber:    st.DayNumber,
	})
	e.log.Info("game over",
		zap.String("sessionID", st.SessionID),
		zap.String("condition", string(cond)),
		zap.Strings("winners", st.WinnerIDs),
	)
}

func (e *Engine) schedule(sessionID string, phase Phase, day int, deadline int64) {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	if e.closed {
		return
	}
	if t, ok := e.timers[sessionID]; ok {
		t.Stop()
	}
	guard := phaseGuard{phase: phase, day: day}
	wait := time.Until(time.UnixMilli(deadline))
	if wait < 0 {
		wait = 0
	}
	e.timers[sessionID] = time.AfterFunc(wait, func() {
		e.onDeadline(sessionID, guard)
	})
}

func (e *Engine) cancelTimer(sessionID string) {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	if t, ok := e.timers[sessionID]; ok {
		t.Stop()
		delete(e.timers, sessionID)
	}
}

func (e *Engine) onDeadline(sessionID string, guard phaseGuard) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.TimerStoreTimeout)
	defer cancel()

	err := e.advancePhase(ctx, sessionID, "", &guard)
	if err != nil && !errors.Is(err, appErr.ErrIllegalAction) {
		e.log.Warn("timed phase advance failed",
			zap.String("sessionID", sessionID),
			zap.String("phase", string(guard.phase)),
			zap.Error(err),
		)
	}
}

func sortEvents(events []referee.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}
