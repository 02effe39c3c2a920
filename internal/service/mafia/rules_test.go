package mafia_test

import (
	"errors"
	"math/rand/v2"
	"sort"
	"testing"
	"time"

	"party-service/internal/service/mafia"
	appErr "party-service/pkg/errors"
)

func table(roles map[string]mafia.Role) *mafia.GameState {
	st := &mafia.GameState{
		SessionID: "s1",
		HostID:    "p1",
		Phase:     mafia.PhaseNight,
		DayNumber: 1,
		Players:   map[string]*mafia.Player{},
		Cooldowns: map[string]int64{},
	}
	i := 0
	for id, r := range roles {
		i++
		st.Players[id] = &mafia.Player{ID: id, Role: r, IsAlive: true, JoinedAt: int64(i)}
	}
	return st
}

func night(id, actor string, kind mafia.ActionType, target string) mafia.GameAction {
	return mafia.GameAction{ID: id, PlayerID: actor, ActionType: kind, TargetID: target, Phase: mafia.PhaseNight, DayNumber: 1}
}

func TestDistributionForSixPlayers(t *testing.T) {
	roles, ok := mafia.Distribution(6)
	if !ok {
		t.Fatalf("expected a table for 6 players")
	}
	got := make([]string, len(roles))
	for i, r := range roles {
		got[i] = string(r)
	}
	sort.Strings(got)
	want := []string{"Assassin", "Bodyguard", "Civilian", "Detective", "Doctor", "Godfather"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected roles %v", got)
		}
	}
}

func TestDistributionBoundsAndUniqueness(t *testing.T) {
	for _, n := range []int{3, 16} {
		if _, ok := mafia.Distribution(n); ok {
			t.Fatalf("expected no table for %d players", n)
		}
	}
	for n := mafia.AbsoluteMinPlayers; n <= mafia.AbsoluteMaxPlayers; n++ {
		roles, ok := mafia.Distribution(n)
		if !ok || len(roles) != n {
			t.Fatalf("bad table for %d players: %v", n, roles)
		}
		seen := map[mafia.Role]bool{}
		mafiaCount := 0
		for _, r := range roles {
			if r.Unique() && seen[r] {
				t.Fatalf("role %s repeated for %d players", r, n)
			}
			seen[r] = true
			if r.Team() == mafia.TeamMafia {
				mafiaCount++
			}
		}
		if mafiaCount == 0 || mafiaCount*2 >= n {
			t.Fatalf("unbalanced table for %d players: %d mafia", n, mafiaCount)
		}
	}
}

func TestAssignRolesHonorsPreferencesAndSkill(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	players := []mafia.Candidate{
		{ID: "a", Skill: 0.5, PreferredRoles: []mafia.Role{mafia.RoleDoctor}},
		{ID: "b", Skill: 0.5},
		{ID: "c", Skill: 0.5},
		{ID: "d", Skill: 0.5},
		{ID: "e", Skill: 0.5},
		{ID: "f", Skill: 0.5},
	}
	roles, ok := mafia.AssignRoles(players, 0.04, rng)
	if !ok || len(roles) != 6 {
		t.Fatalf("assignment failed: %v", roles)
	}
	if roles["a"] != mafia.RoleDoctor {
		t.Fatalf("preference ignored, got %s", roles["a"])
	}

	skilled := []mafia.Candidate{
		{ID: "pro", Skill: 1},
		{ID: "n1", Skill: 0},
		{ID: "n2", Skill: 0},
		{ID: "n3", Skill: 0},
		{ID: "n4", Skill: 0},
		{ID: "n5", Skill: 0},
	}
	roles, _ = mafia.AssignRoles(skilled, 0.04, rng)
	if roles["pro"] != mafia.RoleGodfather {
		t.Fatalf("expected the strongest player on the most complex role, got %s", roles["pro"])
	}
	mayor := false
	for _, r := range roles {
		if r == mafia.RoleMayor {
			mayor = true
		}
	}
	if !mayor {
		t.Fatalf("expected a mayor to replace a civilian at high skill variance: %v", roles)
	}
}

func TestWinConditionPrecedence(t *testing.T) {
	st := table(map[string]mafia.Role{"m": mafia.RoleGodfather, "t": mafia.RoleDoctor})
	if got := mafia.CheckWinCondition(st); got != mafia.MafiaWin {
		t.Fatalf("parity should favor mafia, got %q", got)
	}

	st = table(map[string]mafia.Role{"m": mafia.RoleGodfather, "t1": mafia.RoleDoctor, "t2": mafia.RoleCivilian})
	if got := mafia.CheckWinCondition(st); got != mafia.WinNone {
		t.Fatalf("game should continue, got %q", got)
	}
	st.Players["m"].IsAlive = false
	if got := mafia.CheckWinCondition(st); got != mafia.TownWin {
		t.Fatalf("expected town win, got %q", got)
	}

	st = table(map[string]mafia.Role{"m": mafia.RoleGodfather, "t": mafia.RoleDoctor})
	st.Players["m"].IsAlive = false
	st.Players["t"].IsAlive = false
	if got := mafia.CheckWinCondition(st); got != mafia.MafiaWin {
		t.Fatalf("mafia is checked first, got %q", got)
	}
}

func TestHealProtectsInEitherOrder(t *testing.T) {
	roles := map[string]mafia.Role{"gf": mafia.RoleGodfather, "doc": mafia.RoleDoctor, "civ": mafia.RoleCivilian}
	orders := [][]mafia.GameAction{
		{night("1", "gf", mafia.ActionKill, "civ"), night("2", "doc", mafia.ActionHeal, "civ")},
		{night("2", "doc", mafia.ActionHeal, "civ"), night("1", "gf", mafia.ActionKill, "civ")},
	}
	for i, actions := range orders {
		out := mafia.ResolveNightActions(table(roles), actions)
		if len(out.Killed) != 0 || len(out.Saved) != 1 || out.Saved[0] != "civ" {
			t.Fatalf("order %d: expected civ saved, got killed=%v saved=%v", i, out.Killed, out.Saved)
		}
		if out.Protectors["civ"] != string(mafia.RoleDoctor) {
			t.Fatalf("order %d: expected doctor as protector, got %v", i, out.Protectors)
		}
	}
}

func TestNightBlockAndInvestigation(t *testing.T) {
	st := table(map[string]mafia.Role{
		"esc": mafia.RoleEscort,
		"gf":  mafia.RoleGodfather,
		"ass": mafia.RoleAssassin,
		"det": mafia.RoleDetective,
		"con": mafia.RoleConsigliere,
		"civ": mafia.RoleCivilian,
	})
	out := mafia.ResolveNightActions(st, []mafia.GameAction{
		night("1", "gf", mafia.ActionKill, "civ"),
		night("2", "esc", mafia.ActionBlock, "gf"),
		night("3", "det", mafia.ActionInvestigate, "ass"),
		night("4", "con", mafia.ActionInvestigate, "det"),
	})
	if len(out.Killed) != 0 {
		t.Fatalf("blocked godfather should not kill, got %v", out.Killed)
	}
	for _, a := range out.Actions {
		if a.ID == "1" && !a.WasBlocked {
			t.Fatalf("kill should be marked blocked")
		}
	}
	results := map[string]string{}
	for _, inv := range out.Investigations {
		results[inv.InvestigatorID] = inv.Result
	}
	if results["det"] != mafia.ResultSuspicious {
		t.Fatalf("detective should read the assassin as suspicious, got %q", results["det"])
	}
	if results["con"] != string(mafia.RoleDetective) {
		t.Fatalf("consigliere should read the exact role, got %q", results["con"])
	}

	out = mafia.ResolveNightActions(st, []mafia.GameAction{night("5", "det", mafia.ActionInvestigate, "gf")})
	if out.Investigations[0].Result != mafia.ResultNotSuspicious {
		t.Fatalf("godfather should read as not suspicious")
	}
}

func TestResolveVotes(t *testing.T) {
	if id, ok := mafia.ResolveVotes(map[string]int{"a": 2, "b": 1}); !ok || id != "a" {
		t.Fatalf("expected a, got %q %v", id, ok)
	}
	if _, ok := mafia.ResolveVotes(map[string]int{"a": 2, "b": 2}); ok {
		t.Fatalf("a tie at the top must not resolve")
	}
	if _, ok := mafia.ResolveVotes(map[string]int{}); ok {
		t.Fatalf("no votes must not resolve")
	}
}

func TestValidateAction(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	base := func() *mafia.GameState {
		return table(map[string]mafia.Role{
			"gf":  mafia.RoleGodfather,
			"ass": mafia.RoleAssassin,
			"doc": mafia.RoleDoctor,
			"civ": mafia.RoleCivilian,
		})
	}
	illegal := func(st *mafia.GameState, a mafia.GameAction, want string) {
		t.Helper()
		err := mafia.ValidateAction(st, a, now)
		if !errors.Is(err, appErr.ErrIllegalAction) {
			t.Fatalf("expected illegal action for %s, got %v", want, err)
		}
		if appErr.Reason(err) == "" {
			t.Fatalf("missing reason for %s", want)
		}
	}

	st := base()
	if err := mafia.ValidateAction(st, night("1", "gf", mafia.ActionKill, "civ"), now); err != nil {
		t.Fatalf("valid kill rejected: %v", err)
	}
	if err := mafia.ValidateAction(st, night("1", "doc", mafia.ActionHeal, "doc"), now); err != nil {
		t.Fatalf("doctor self heal rejected: %v", err)
	}
	illegal(st, night("1", "gf", mafia.ActionKill, "ass"), "teammate kill")
	illegal(st, night("1", "gf", mafia.ActionKill, "gf"), "self kill")
	illegal(st, night("1", "doc", mafia.ActionKill, "civ"), "wrong ability")
	illegal(st, night("1", "civ", mafia.ActionHeal, "doc"), "no ability")
	illegal(st, night("1", "gf", mafia.ActionKill, ""), "missing target")
	illegal(st, mafia.GameAction{ID: "v", PlayerID: "civ", ActionType: mafia.ActionVote, TargetID: "gf"}, "vote at night")

	if err := mafia.ValidateAction(st, night("1", "ghost", mafia.ActionKill, "civ"), now); !errors.Is(err, appErr.ErrPlayerNotFound) {
		t.Fatalf("expected player not found, got %v", err)
	}

	st = base()
	st.ActionLog = []mafia.GameAction{night("1", "gf", mafia.ActionKill, "civ")}
	illegal(st, night("2", "gf", mafia.ActionKill, "doc"), "second action")

	st = base()
	st.Players["civ"].IsAlive = false
	illegal(st, night("1", "gf", mafia.ActionKill, "civ"), "dead target")
	illegal(st, mafia.GameAction{ID: "c", PlayerID: "civ", ActionType: mafia.ActionChat, Payload: map[string]any{"text": "hi"}}, "dead actor")

	st = base()
	st.Cooldowns["gf"] = now.Add(time.Minute).UnixMilli()
	illegal(st, night("1", "gf", mafia.ActionKill, "civ"), "cooldown")
	st.Cooldowns["gf"] = now.Add(-time.Second).UnixMilli()
	if err := mafia.ValidateAction(st, night("1", "gf", mafia.ActionKill, "civ"), now); err != nil {
		t.Fatalf("expired cooldown should not block: %v", err)
	}

	st = base()
	st.Phase = mafia.PhaseTrial
	st.TrialTarget = "civ"
	chat := func(id, who string) mafia.GameAction {
		return mafia.GameAction{ID: id, PlayerID: who, ActionType: mafia.ActionChat, Payload: map[string]any{"text": "I am innocent"}}
	}
	if err := mafia.ValidateAction(st, chat("c1", "civ"), now); err != nil {
		t.Fatalf("accused should speak during trial: %v", err)
	}
	illegal(st, chat("c2", "doc"), "chat by bystander during trial")
}

func TestViewHidesRoles(t *testing.T) {
	st := table(map[string]mafia.Role{
		"gf":  mafia.RoleGodfather,
		"ass": mafia.RoleAssassin,
		"doc": mafia.RoleDoctor,
		"civ": mafia.RoleCivilian,
	})
	st.Players["civ"].IsAlive = false
	st.ActionLog = []mafia.GameAction{night("1", "gf", mafia.ActionKill, "civ"), night("2", "doc", mafia.ActionHeal, "doc")}

	doc := mafia.ViewFor(st, "doc")
	if doc.Players["gf"].Role != "" || doc.Players["ass"].Role != "" {
		t.Fatalf("living roles leaked to town")
	}
	if doc.Players["doc"].Role != mafia.RoleDoctor || doc.Players["civ"].Role != mafia.RoleCivilian {
		t.Fatalf("own and dead roles should be visible")
	}
	if len(doc.ActionLog) != 1 || doc.ActionLog[0].PlayerID != "doc" {
		t.Fatalf("foreign night actions leaked: %+v", doc.ActionLog)
	}

	gf := mafia.ViewFor(st, "gf")
	if gf.Players["ass"].Role != mafia.RoleAssassin {
		t.Fatalf("mafia should see teammates")
	}
	if gf.Players["doc"].Role != "" {
		t.Fatalf("mafia should not see town roles")
	}
	if st.Players["gf"].Role != mafia.RoleGodfather {
		t.Fatalf("view mutated the source state")
	}

	st.Phase = mafia.PhaseGameOver
	if mafia.ViewFor(st, "doc").Players["gf"].Role != mafia.RoleGodfather {
		t.Fatalf("roles should be revealed at game over")
	}
}

func TestViewHidesVoteWeights(t *testing.T) {
	st := table(map[string]mafia.Role{
		"mayor": mafia.RoleMayor,
		"civ":   mafia.RoleCivilian,
		"doc":   mafia.RoleDoctor,
		"gf":    mafia.RoleGodfather,
	})
	st.Phase = mafia.PhaseVoting
	st.Ballots = map[string]mafia.Ballot{
		"mayor": {TargetID: "gf", Weight: 2},
		"civ":   {TargetID: "doc", Weight: 1},
	}
	st.VotingTally = map[string]int{"gf": 2, "doc": 1}
	st.Players["gf"].VotesAgainst = 2
	st.Players["doc"].VotesAgainst = 1

	civ := mafia.ViewFor(st, "civ")
	if civ.Ballots["mayor"].Weight != 0 {
		t.Fatalf("mayor ballot weight leaked: %+v", civ.Ballots["mayor"])
	}
	if civ.VotingTally["gf"] != 1 || civ.Players["gf"].VotesAgainst != 1 {
		t.Fatalf("expected head counts, got tally %v votesAgainst %d", civ.VotingTally, civ.Players["gf"].VotesAgainst)
	}
	if civ.Ballots["civ"].Weight != 1 {
		t.Fatalf("own ballot should keep its weight")
	}
	if st.VotingTally["gf"] != 2 || st.Players["gf"].VotesAgainst != 2 {
		t.Fatalf("view mutated the source tally")
	}

	if mafia.ViewFor(st, "mayor").Ballots["mayor"].Weight != 2 {
		t.Fatalf("mayor should see own weight")
	}
	st.Phase = mafia.PhaseGameOver
	if mafia.ViewFor(st, "civ").VotingTally["gf"] != 2 {
		t.Fatalf("weighted tally should be visible at game over")
	}
}
