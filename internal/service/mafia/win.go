package mafia

// TeamCounts counts living players per team.
func TeamCounts(state *GameState) (mafia, town, neutral int) {
	for _, p := range state.Players {
		if !p.IsAlive {
			continue
		}
		switch p.Role.Team() {
		case TeamMafia:
			mafia++
		case TeamTown:
			town++
		default:
			neutral++
		}
	}
	return mafia, town, neutral
}

// CheckWinCondition evaluates Mafia first, so Mafia wins whenever both
// conditions hold at once.
func CheckWinCondition(state *GameState) WinCondition {
	mafia, town, _ := TeamCounts(state)
	if mafia >= town {
		return MafiaWin
	}
	if mafia == 0 {
		return TownWin
	}
	return WinNone
}

// winnersFor lists the winning team, living Survivors and any Jester already
// recorded as a winner.
func winnersFor(state *GameState, cond WinCondition) []string {
	team := TeamTown
	if cond == MafiaWin {
		team = TeamMafia
	}
	var out []string
	for _, id := range state.PlayerIDs() {
		p := state.Players[id]
		switch {
		case p.Role.Team() == team:
			out = append(out, id)
		case p.Role == RoleSurvivor && p.IsAlive:
			out = append(out, id)
		}
	}
	return out
}

// jesterWins reports whether the player is a Jester who died by lynch.
func jesterWins(p *Player) bool {
	return p.Role == RoleJester && !p.IsAlive && p.DeathCause == DeathLynch
}
