package mafia

// ViewFor returns a copy of the state trimmed to what viewerID may know.
// Roles stay hidden until death or game end, except between mafia members.
// Other players' night actions and private notes are removed.
func ViewFor(st *GameState, viewerID string) *GameState {
	out := *st
	viewer := st.Players[viewerID]
	over := st.Phase == PhaseGameOver

	out.Players = make(map[string]*Player, len(st.Players))
	for id, p := range st.Players {
		cp := *p
		cp.PreferredRoles = append([]Role(nil), p.PreferredRoles...)
		if id != viewerID {
			if !over && p.IsAlive && !sameMafia(viewer, p) {
				cp.Role = ""
			}
			if p.IsAlive && !over {
				cp.LastWill = ""
			}
			cp.ActionsRemaining = nil
			cp.ProtectedBy = ""
			cp.Skill = 0
			cp.PreferredRoles = nil
		}
		out.Players[id] = &cp
	}

	out.ActionLog = make([]GameAction, 0, len(st.ActionLog))
	for _, a := range st.ActionLog {
		if a.PlayerID != viewerID && !over && (a.ActionType.IsNightAbility() || a.ActionType == ActionLastWill) {
			continue
		}
		out.ActionLog = append(out.ActionLog, a)
	}
	out.ChatLog = append([]ChatEntry(nil), st.ChatLog...)
	out.WinnerIDs = append([]string(nil), st.WinnerIDs...)
	out.NightResults = append([]NightResult(nil), st.NightResults...)

	// Weighted numbers would expose a living Mayor.
	if over {
		out.VotingTally = make(map[string]int, len(st.VotingTally))
		for k, v := range st.VotingTally {
			out.VotingTally[k] = v
		}
	} else {
		out.VotingTally = headCount(st)
		for id, p := range out.Players {
			p.VotesAgainst = out.VotingTally[id]
		}
	}
	out.Ballots = make(map[string]Ballot, len(st.Ballots))
	for k, v := range st.Ballots {
		if k != viewerID && !over {
			v.Weight = 0
		}
		out.Ballots[k] = v
	}
	out.Cooldowns = map[string]int64{}
	if until, ok := st.Cooldowns[viewerID]; ok {
		out.Cooldowns[viewerID] = until
	}
	return &out
}

func sameMafia(viewer, p *Player) bool {
	return viewer != nil && viewer.Role.Team() == TeamMafia && p.Role.Team() == TeamMafia
}
