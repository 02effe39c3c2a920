package referee

// Action is the graduated, non-punitive response to a detection.
type Action string

const (
	ActionNone               Action = "none"
	ActionGentleReminder     Action = "gentle_reminder"
	ActionGameplaySuggestion Action = "gameplay_suggestion"
	ActionFairnessReminder   Action = "fairness_reminder"
	ActionCooldown           Action = "action_cooldown"
	ActionTemporaryTimeout   Action = "temporary_timeout"
)

// SeverityFor maps an overall probability onto the 0-5 scale.
func SeverityFor(p float64) int {
	switch {
	case p < 0.2:
		return 0
	case p < 0.4:
		return 1
	case p < 0.6:
		return 2
	case p < 0.75:
		return 3
	case p < 0.9:
		return 4
	default:
		return 5
	}
}

var actionBySeverity = [...]Action{
	ActionNone,
	ActionGentleReminder,
	ActionGameplaySuggestion,
	ActionFairnessReminder,
	ActionCooldown,
	ActionTemporaryTimeout,
}

func ActionFor(severity int) Action {
	if severity < 0 {
		severity = 0
	}
	if severity >= len(actionBySeverity) {
		severity = len(actionBySeverity) - 1
	}
	return actionBySeverity[severity]
}

var interventionText = map[Action]string{
	ActionGentleReminder:     "Friendly reminder: keep the game fun and fair for everyone at the table.",
	ActionGameplaySuggestion: "Try reading the discussion before acting; the best plays come from what happens in the game.",
	ActionFairnessReminder:   "Please keep all information inside the game. Outside hints spoil it for the others.",
	ActionCooldown:           "Your actions are paused for a short moment. Take a breath and rejoin the discussion.",
	ActionTemporaryTimeout:   "You are on a short timeout. You can act again once it ends.",
}
