package mafia

import (
	"fmt"
	"strings"
	"time"

	appErr "party-service/pkg/errors"
)

const maxChatLength = 500

// ValidateAction checks an action against the phase, the actor's role and
// the target. Every rejection carries a human-readable reason.
func ValidateAction(state *GameState, a GameAction, now time.Time) error {
	actor, ok := state.Players[a.PlayerID]
	if !ok {
		return appErr.ErrPlayerNotFound
	}
	if state.Phase == PhaseGameOver {
		return appErr.Illegal("the game is over")
	}
	if !actor.IsAlive {
		return appErr.Illegal("dead players cannot act")
	}
	if err := cooldownErr(state, a.PlayerID, now); err != nil {
		return err
	}

	switch a.ActionType {
	case ActionLastWill:
		if payloadText(a) == "" {
			return appErr.Illegal("last will text is required")
		}
		return nil
	case ActionChat:
		return validateChat(state, a)
	case ActionVote, ActionAbstain:
		return validateVote(state, a)
	}

	if !a.ActionType.IsNightAbility() {
		return appErr.Illegal(fmt.Sprintf("unknown action %q", a.ActionType))
	}
	if state.Phase != PhaseNight {
		return appErr.Illegal(fmt.Sprintf("%s is only allowed at night", a.ActionType))
	}
	if actor.Role.Ability() != a.ActionType {
		return appErr.Illegal(fmt.Sprintf("a %s cannot %s", actor.Role, a.ActionType))
	}
	if actor.Role.Charges() > 0 && actor.ActionsRemaining[a.ActionType] <= 0 {
		return appErr.Illegal(fmt.Sprintf("no %s uses left", a.ActionType))
	}
	for _, prev := range state.tonightActions() {
		if prev.PlayerID == a.PlayerID {
			return appErr.Illegal("already acted tonight")
		}
	}
	if err := validateTarget(state, a); err != nil {
		return err
	}
	if a.ActionType == ActionKill && actor.Role.Team() == TeamMafia && state.Players[a.TargetID].Role.Team() == TeamMafia {
		return appErr.Illegal("cannot kill a fellow mafia member")
	}
	return nil
}

func validateChat(state *GameState, a GameAction) error {
	text := payloadText(a)
	if text == "" {
		return appErr.Illegal("message is empty")
	}
	if len(text) > maxChatLength {
		return appErr.Illegal(fmt.Sprintf("message longer than %d characters", maxChatLength))
	}
	switch state.Phase {
	case PhaseDay:
		return nil
	case PhaseTrial:
		if a.PlayerID != state.TrialTarget {
			return appErr.Illegal("only the accused may speak during the trial")
		}
		return nil
	default:
		return appErr.Illegal(fmt.Sprintf("chat is not allowed during %s", state.Phase))
	}
}

func validateVote(state *GameState, a GameAction) error {
	if state.Phase != PhaseVoting {
		return appErr.Illegal(fmt.Sprintf("%s is only allowed during voting", a.ActionType))
	}
	if a.ActionType == ActionAbstain {
		if a.TargetID != "" {
			return appErr.Illegal("abstain takes no target")
		}
		return nil
	}
	return validateTarget(state, a)
}

func validateTarget(state *GameState, a GameAction) error {
	if a.TargetID == "" {
		if a.ActionType == ActionVest {
			return nil
		}
		return appErr.Illegal(fmt.Sprintf("%s needs a target", a.ActionType))
	}
	target, ok := state.Players[a.TargetID]
	if !ok {
		return appErr.Illegal("unknown target")
	}
	if !target.IsAlive && a.ActionType != ActionInvestigate {
		return appErr.Illegal("target is dead")
	}
	if a.TargetID == a.PlayerID && !a.ActionType.selfTargeting() {
		return appErr.Illegal(fmt.Sprintf("cannot %s yourself", a.ActionType))
	}
	if a.ActionType == ActionVest && a.TargetID != a.PlayerID {
		return appErr.Illegal("a vest only protects its wearer")
	}
	return nil
}

func payloadText(a GameAction) string {
	if a.Payload == nil {
		return ""
	}
	text, _ := a.Payload["text"].(string)
	return strings.TrimSpace(text)
}

func cooldownErr(state *GameState, playerID string, now time.Time) error {
	if until, ok := state.Cooldowns[playerID]; ok && until > now.UnixMilli() {
		return appErr.Illegal(fmt.Sprintf("action cooldown active for %s", time.UnixMilli(until).Sub(now).Round(time.Second)))
	}
	return nil
}
