package statesync

import (
	"fmt"
	"sort"
	"time"
)

// Replay folds a delta log into the snapshot it describes. Deltas are applied
// in sequence order; conflict records carry no change and are skipped.
func Replay(sessionID string, gameType GameType, deltas []GameStateDelta) (*GameStateSnapshot, error) {
	ordered := make([]GameStateDelta, len(deltas))
	copy(ordered, deltas)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SequenceNumber < ordered[j].SequenceNumber
	})

	var (
		doc     map[string]any
		version int64
		seq     int64
		ts      time.Time
		owner   string
	)
	for _, d := range ordered {
		if d.SessionID != sessionID {
			return nil, fmt.Errorf("delta %d belongs to session %s", d.SequenceNumber, d.SessionID)
		}
		switch d.OpType {
		case OpCreate:
			initial, err := normalizeDocument(d.NewValue)
			if err != nil {
				return nil, fmt.Errorf("delta %d: %w", d.SequenceNumber, err)
			}
			doc = initial
		case OpUpdate, OpMerge:
			if doc == nil {
				return nil, fmt.Errorf("delta %d: update before create", d.SequenceNumber)
			}
			if err := setPath(doc, d.FieldPath, cloneValue(d.NewValue)); err != nil {
				return nil, fmt.Errorf("delta %d: %w", d.SequenceNumber, err)
			}
		case OpDelete:
			return nil, fmt.Errorf("session %s was deleted at sequence %d", sessionID, d.SequenceNumber)
		case OpConflict:
			seq = d.SequenceNumber
			continue
		}
		version = d.Version
		seq = d.SequenceNumber
		ts = d.Timestamp
		owner = d.OwnerProcessID
	}
	if doc == nil {
		return nil, fmt.Errorf("no create delta for session %s", sessionID)
	}
	return newSnapshot(sessionID, gameType, doc, version, seq, ts, owner), nil
}
