package mafia

type Role string

const (
	RoleUnassigned  Role = ""
	RoleGodfather   Role = "Godfather"
	RoleAssassin    Role = "Assassin"
	RoleMafioso     Role = "Mafioso"
	RoleConsigliere Role = "Consigliere"
	RoleDetective   Role = "Detective"
	RoleDoctor      Role = "Doctor"
	RoleBodyguard   Role = "Bodyguard"
	RoleVigilante   Role = "Vigilante"
	RoleEscort      Role = "Escort"
	RoleMayor       Role = "Mayor"
	RoleCivilian    Role = "Civilian"
	RoleJester      Role = "Jester"
	RoleSurvivor    Role = "Survivor"
)

type Team string

const (
	TeamMafia   Team = "mafia"
	TeamTown    Team = "town"
	TeamNeutral Team = "neutral"
)

type ActionType string

const (
	ActionKill        ActionType = "kill"
	ActionHeal        ActionType = "heal"
	ActionProtect     ActionType = "protect"
	ActionInvestigate ActionType = "investigate"
	ActionBlock       ActionType = "block"
	ActionVest        ActionType = "vest"
	ActionVote        ActionType = "vote"
	ActionAbstain     ActionType = "abstain"
	ActionChat        ActionType = "chat"
	ActionLastWill    ActionType = "lastWill"
)

// IsNightAbility reports whether the action resolves in the night pass.
func (a ActionType) IsNightAbility() bool {
	switch a {
	case ActionKill, ActionHeal, ActionProtect, ActionInvestigate, ActionBlock, ActionVest:
		return true
	}
	return false
}

func (a ActionType) selfTargeting() bool {
	return a == ActionHeal || a == ActionVest
}

type roleTraits struct {
	team       Team
	ability    ActionType
	priority   int // night resolution order, lower first
	charges    int // 0 means unlimited
	complexity int
	voteWeight int
	unique     bool
}

// Night priorities: blocks resolve first, investigations last.
var roleTable = map[Role]roleTraits{
	RoleEscort:      {team: TeamTown, ability: ActionBlock, priority: 0, complexity: 3, voteWeight: 1, unique: true},
	RoleGodfather:   {team: TeamMafia, ability: ActionKill, priority: 1, complexity: 5, voteWeight: 1, unique: true},
	RoleAssassin:    {team: TeamMafia, ability: ActionKill, priority: 2, complexity: 4, voteWeight: 1, unique: true},
	RoleMafioso:     {team: TeamMafia, ability: ActionKill, priority: 3, complexity: 2, voteWeight: 1, unique: true},
	RoleVigilante:   {team: TeamTown, ability: ActionKill, priority: 4, charges: 2, complexity: 4, voteWeight: 1, unique: true},
	RoleDoctor:      {team: TeamTown, ability: ActionHeal, priority: 5, complexity: 3, voteWeight: 1, unique: true},
	RoleBodyguard:   {team: TeamTown, ability: ActionProtect, priority: 6, complexity: 3, voteWeight: 1, unique: true},
	RoleSurvivor:    {team: TeamNeutral, ability: ActionVest, priority: 7, charges: 3, complexity: 2, voteWeight: 1, unique: true},
	RoleDetective:   {team: TeamTown, ability: ActionInvestigate, priority: 8, complexity: 4, voteWeight: 1, unique: true},
	RoleConsigliere: {team: TeamMafia, ability: ActionInvestigate, priority: 9, complexity: 4, voteWeight: 1, unique: true},
	RoleMayor:       {team: TeamTown, priority: 99, complexity: 2, voteWeight: 2, unique: true},
	RoleJester:      {team: TeamNeutral, priority: 99, complexity: 3, voteWeight: 1, unique: true},
	RoleCivilian:    {team: TeamTown, priority: 99, complexity: 1, voteWeight: 1},
}

func (r Role) Valid() bool {
	_, ok := roleTable[r]
	return ok
}

func (r Role) Team() Team {
	return roleTable[r].team
}

func (r Role) Ability() ActionType {
	return roleTable[r].ability
}

func (r Role) Priority() int {
	if tr, ok := roleTable[r]; ok {
		return tr.priority
	}
	return 100
}

func (r Role) VoteWeight() int {
	if tr, ok := roleTable[r]; ok && tr.voteWeight > 0 {
		return tr.voteWeight
	}
	return 1
}

func (r Role) Complexity() int {
	return roleTable[r].complexity
}

// Unique reports whether at most one player may hold the role.
func (r Role) Unique() bool {
	return roleTable[r].unique
}

// Charges is the number of uses of the role's ability, 0 meaning unlimited.
func (r Role) Charges() int {
	return roleTable[r].charges
}

// Role multisets by player-count band. A table is cut to the first N entries.
var (
	bandSmall = []Role{RoleGodfather, RoleDetective, RoleDoctor, RoleCivilian, RoleCivilian}
	bandMid   = []Role{RoleGodfather, RoleAssassin, RoleDetective, RoleDoctor, RoleBodyguard, RoleCivilian, RoleJester, RoleMayor}
	bandLarge = []Role{
		RoleGodfather, RoleAssassin, RoleDetective, RoleDoctor, RoleBodyguard, RoleMayor,
		RoleJester, RoleConsigliere, RoleVigilante, RoleCivilian, RoleCivilian, RoleCivilian,
	}
	bandHuge = []Role{
		RoleGodfather, RoleAssassin, RoleConsigliere, RoleMafioso, RoleDetective, RoleDoctor,
		RoleBodyguard, RoleMayor, RoleEscort, RoleVigilante, RoleJester, RoleSurvivor,
		RoleCivilian, RoleCivilian, RoleCivilian,
	}
)

const (
	AbsoluteMinPlayers = 4
	AbsoluteMaxPlayers = 15
)

// Distribution returns the role multiset for n players, before any skill
// based substitution.
func Distribution(n int) ([]Role, bool) {
	var table []Role
	switch {
	case n < AbsoluteMinPlayers || n > AbsoluteMaxPlayers:
		return nil, false
	case n <= 5:
		table = bandSmall
	case n <= 8:
		table = bandMid
	case n <= 12:
		table = bandLarge
	default:
		table = bandHuge
	}
	out := make([]Role, n)
	copy(out, table[:n])
	return out, true
}
