package mafia

import (
	"sort"
)

const (
	ResultSuspicious    = "suspicious"
	ResultNotSuspicious = "not suspicious"
)

type Investigation struct {
	InvestigatorID string `json:"investigatorId"`
	TargetID       string `json:"targetId"`
	Result         string `json:"result"`
}

// NightOutcome is the result of one resolution pass. Actions carry the
// updated WasSuccessful/WasBlocked flags in resolution order.
type NightOutcome struct {
	Actions        []GameAction
	Killed         []string
	Saved          []string
	Blocked        []string
	Protectors     map[string]string
	Investigations []Investigation
}

type stagedKill struct {
	actionIdx int
	targetID  string
}

// ResolveNightActions applies night abilities in role priority order, stable
// on submission order. Blocks land first. Kills are staged and only land at
// the end of the pass when the target is outside the protection set, so a
// heal protects regardless of where it falls in the order.
func ResolveNightActions(state *GameState, actions []GameAction) NightOutcome {
	ordered := make([]GameAction, 0, len(actions))
	for _, a := range actions {
		actor, ok := state.Players[a.PlayerID]
		if !ok || !actor.IsAlive || !a.ActionType.IsNightAbility() {
			continue
		}
		ordered = append(ordered, a)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return state.Players[ordered[i].PlayerID].Role.Priority() < state.Players[ordered[j].PlayerID].Role.Priority()
	})

	out := NightOutcome{Protectors: map[string]string{}, Killed: []string{}, Saved: []string{}}
	blocked := map[string]bool{}
	var kills []stagedKill

	for i := range ordered {
		a := &ordered[i]
		actor := state.Players[a.PlayerID]
		if blocked[a.PlayerID] {
			a.WasBlocked = true
			a.WasSuccessful = false
			continue
		}
		switch a.ActionType {
		case ActionBlock:
			if !blocked[a.TargetID] {
				blocked[a.TargetID] = true
				out.Blocked = append(out.Blocked, a.TargetID)
			}
			a.WasSuccessful = true
		case ActionKill:
			kills = append(kills, stagedKill{actionIdx: i, targetID: a.TargetID})
		case ActionHeal, ActionProtect, ActionVest:
			target := a.TargetID
			if a.ActionType == ActionVest || target == "" {
				target = a.PlayerID
			}
			if _, taken := out.Protectors[target]; !taken {
				out.Protectors[target] = string(actor.Role)
			}
			a.WasSuccessful = true
		case ActionInvestigate:
			target, ok := state.Players[a.TargetID]
			if !ok {
				continue
			}
			out.Investigations = append(out.Investigations, Investigation{
				InvestigatorID: a.PlayerID,
				TargetID:       a.TargetID,
				Result:         investigationResult(actor.Role, target.Role),
			})
			a.WasSuccessful = true
		}
	}

	dead := map[string]bool{}
	saved := map[string]bool{}
	for _, k := range kills {
		a := &ordered[k.actionIdx]
		target, ok := state.Players[k.targetID]
		if !ok || !target.IsAlive {
			continue
		}
		if _, protected := out.Protectors[k.targetID]; protected {
			if !saved[k.targetID] {
				saved[k.targetID] = true
				out.Saved = append(out.Saved, k.targetID)
			}
			continue
		}
		a.WasSuccessful = true
		if !dead[k.targetID] {
			dead[k.targetID] = true
			out.Killed = append(out.Killed, k.targetID)
		}
	}
	out.Actions = ordered
	return out
}

func investigationResult(investigator, target Role) string {
	if investigator == RoleConsigliere {
		return string(target)
	}
	if target.Team() == TeamMafia && target != RoleGodfather {
		return ResultSuspicious
	}
	return ResultNotSuspicious
}

// applyNight folds an outcome into the state.
func applyNight(state *GameState, out NightOutcome) {
	for _, p := range state.Players {
		p.ProtectedBy = ""
	}
	for target, role := range out.Protectors {
		if p, ok := state.Players[target]; ok {
			p.ProtectedBy = role
		}
	}

	byID := make(map[string]GameAction, len(out.Actions))
	for _, a := range out.Actions {
		byID[a.ID] = a
	}
	for i := range state.ActionLog {
		if resolved, ok := byID[state.ActionLog[i].ID]; ok {
			state.ActionLog[i].WasSuccessful = resolved.WasSuccessful
			state.ActionLog[i].WasBlocked = resolved.WasBlocked
		}
	}

	for _, id := range out.Killed {
		p := state.Players[id]
		p.IsAlive = false
		p.DeathCause = DeathNightKill
		p.DeathNote = "Found dead at dawn"
	}
	state.NightResults = append(state.NightResults, NightResult{
		DayNumber: state.DayNumber,
		Killed:    append([]string{}, out.Killed...),
		Saved:     append([]string{}, out.Saved...),
	})
}
