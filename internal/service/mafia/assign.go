package mafia

import (
	"math/rand/v2"
	"sort"
)

// Candidate is the assignment view of one joined player.
type Candidate struct {
	ID             string
	Skill          float64
	PreferredRoles []Role
}

// DefaultSkillVarianceThreshold is the skill variance above which a table
// trades a Civilian for a Mayor.
const DefaultSkillVarianceThreshold = 0.04

// AssignRoles deals the band's role multiset to the players. Higher-skill
// players get higher-complexity roles, preferences are honored first and
// everything left is dealt at random. It is a heuristic, not an optimal matching.
func AssignRoles(players []Candidate, varianceThreshold float64, rng *rand.Rand) (map[string]Role, bool) {
	roles, ok := Distribution(len(players))
	if !ok {
		return nil, false
	}
	if varianceThreshold <= 0 {
		varianceThreshold = DefaultSkillVarianceThreshold
	}
	if skillVariance(players) > varianceThreshold {
		substituteMayor(roles)
	}

	// shuffle first so that every later stable sort breaks ties uniformly at random
	order := make([]Candidate, len(players))
	copy(order, players)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	sort.SliceStable(order, func(i, j int) bool { return order[i].Skill > order[j].Skill })

	pool := make([]Role, len(roles))
	copy(pool, roles)
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].Complexity() > pool[j].Complexity() })

	assigned := make(map[string]Role, len(players))
	take := func(idx int) Role {
		r := pool[idx]
		pool = append(pool[:idx], pool[idx+1:]...)
		return r
	}

	// preferences, strongest players choose first
	var rest []Candidate
	for _, c := range order {
		picked := false
		for _, pref := range c.PreferredRoles {
			if idx := indexOf(pool, pref); idx >= 0 {
				assigned[c.ID] = take(idx)
				picked = true
				break
			}
		}
		if !picked {
			rest = append(rest, c)
		}
	}

	// above-average players take the most complex roles left, in skill order
	mean := meanSkill(players)
	var shuffled []Candidate
	for _, c := range rest {
		if c.Skill > mean && len(pool) > 0 {
			assigned[c.ID] = take(0)
			continue
		}
		shuffled = append(shuffled, c)
	}

	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	for i, c := range shuffled {
		assigned[c.ID] = pool[i]
	}
	return assigned, true
}

func substituteMayor(roles []Role) {
	if indexOf(roles, RoleMayor) >= 0 {
		return
	}
	if idx := indexOf(roles, RoleCivilian); idx >= 0 {
		roles[idx] = RoleMayor
	}
}

func indexOf(roles []Role, r Role) int {
	for i, x := range roles {
		if x == r {
			return i
		}
	}
	return -1
}

func meanSkill(players []Candidate) float64 {
	if len(players) == 0 {
		return 0
	}
	var sum float64
	for _, p := range players {
		sum += p.Skill
	}
	return sum / float64(len(players))
}

func skillVariance(players []Candidate) float64 {
	if len(players) == 0 {
		return 0
	}
	mean := meanSkill(players)
	var sq float64
	for _, p := range players {
		sq += (p.Skill - mean) * (p.Skill - mean)
	}
	return sq / float64(len(players))
}
