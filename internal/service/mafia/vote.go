package mafia

import "sort"

// castBallot records the voter's latest ballot. An empty target abstains.
func castBallot(state *GameState, voterID, targetID string, now int64) {
	voter := state.Players[voterID]
	state.Ballots[voterID] = Ballot{TargetID: targetID, Weight: voter.Role.VoteWeight(), CastAt: now}
	recountVotes(state)
}

// recountVotes rebuilds the tally from ballots of living voters.
func recountVotes(state *GameState) {
	tally := map[string]int{}
	for voterID, b := range state.Ballots {
		voter, ok := state.Players[voterID]
		if !ok || !voter.IsAlive || b.TargetID == "" {
			continue
		}
		tally[b.TargetID] += b.Weight
	}
	state.VotingTally = tally
	for id, p := range state.Players {
		p.VotesAgainst = tally[id]
	}
}

// headCount counts living voters per target, ignoring vote weight. It is the
// tally other players get to see.
func headCount(state *GameState) map[string]int {
	counts := map[string]int{}
	for voterID, b := range state.Ballots {
		voter, ok := state.Players[voterID]
		if !ok || !voter.IsAlive || b.TargetID == "" {
			continue
		}
		counts[b.TargetID]++
	}
	return counts
}

// ResolveVotes returns the target holding strictly the most votes. ok is
// false on an exact tie at the top or when nobody received a vote.
func ResolveVotes(tally map[string]int) (string, bool) {
	ids := make([]string, 0, len(tally))
	for id, n := range tally {
		if n > 0 {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return "", false
	}
	sort.Slice(ids, func(i, j int) bool {
		if tally[ids[i]] != tally[ids[j]] {
			return tally[ids[i]] > tally[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > 1 && tally[ids[0]] == tally[ids[1]] {
		return "", false
	}
	return ids[0], true
}

func clearVotes(state *GameState) {
	state.Ballots = map[string]Ballot{}
	state.VotingTally = map[string]int{}
	for _, p := range state.Players {
		p.VotesAgainst = 0
	}
}

// allVoted reports whether every living player has a ballot in.
func allVoted(state *GameState) bool {
	for _, p := range state.AlivePlayers() {
		if _, ok := state.Ballots[p.ID]; !ok {
			return false
		}
	}
	return true
}
