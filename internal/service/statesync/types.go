package statesync

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// GameType tags the variant carried in a snapshot's StateData.
type GameType string

type OpType string

const (
	OpCreate   OpType = "create"
	OpUpdate   OpType = "update"
	OpDelete   OpType = "delete"
	OpMerge    OpType = "merge"
	OpConflict OpType = "conflict"
)

var (
	errNotObject = errors.New("state document must be a JSON object")
	errEmptyPath = errors.New("field path is empty")
	errRaceLost  = errors.New("concurrent commit won the race")
)

// GameStateSnapshot is a complete, versioned materialization of one session's state.
// Snapshots are never modified after they are written.
type GameStateSnapshot struct {
	SessionID      string         `json:"sessionId"`
	GameType       GameType       `json:"gameType"`
	StateData      map[string]any `json:"stateData"`
	Version        int64          `json:"version"`
	Sequence       int64          `json:"sequence"`
	Timestamp      time.Time      `json:"timestamp"`
	OwnerProcessID string         `json:"ownerProcessId"`
	Checksum       string         `json:"checksum"`
}

// GameStateDelta is one recorded field-level change.
type GameStateDelta struct {
	SessionID      string    `json:"sessionId"`
	OpType         OpType    `json:"opType"`
	FieldPath      string    `json:"fieldPath"`
	OldValue       any       `json:"oldValue,omitempty"`
	NewValue       any       `json:"newValue,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	OwnerProcessID string    `json:"ownerProcessId"`
	PlayerID       string    `json:"playerId,omitempty"`
	SequenceNumber int64     `json:"sequenceNumber"`
	Version        int64     `json:"version"`
	Checksum       string    `json:"checksum"`
}

// FieldUpdate is one (fieldPath, newValue) pair of a batch.
type FieldUpdate struct {
	Path  string
	Value any
}

// Schema validates the documents of one game type at the synchronizer boundary.
type Schema interface {
	Validate(doc map[string]any) error
}

// OpaqueState wraps bytes of an unregistered game type as a document.
func OpaqueState(raw []byte) map[string]any {
	return map[string]any{"raw": base64.StdEncoding.EncodeToString(raw)}
}

// Normalize converts any JSON-marshalable value into the document form stored in snapshots.
func Normalize(v any) (map[string]any, error) {
	return normalizeDocument(v)
}

// Decode unmarshals a document into a typed value.
func Decode(doc map[string]any, v any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return decodeJSON(data, v)
}

// SnapshotChecksum hashes (sessionId, stateData, version, timestamp).
func SnapshotChecksum(sessionID string, stateData map[string]any, version int64, ts time.Time) string {
	data, _ := json.Marshal(stateData)
	h := sha256.New()
	h.Write([]byte(sessionID))
	h.Write([]byte{0})
	h.Write(data)
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(version, 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(ts.UnixNano(), 10)))
	return hex.EncodeToString(h.Sum(nil))
}

func deltaChecksum(d GameStateDelta) string {
	oldData, _ := json.Marshal(d.OldValue)
	newData, _ := json.Marshal(d.NewValue)
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d|%s|%d|", d.SessionID, d.OpType, d.FieldPath, d.SequenceNumber, d.OwnerProcessID, d.Timestamp.UnixNano())
	h.Write(oldData)
	h.Write([]byte{'|'})
	h.Write(newData)
	return hex.EncodeToString(h.Sum(nil))
}

func newSnapshot(sessionID string, gameType GameType, doc map[string]any, version, seq int64, ts time.Time, owner string) *GameStateSnapshot {
	return &GameStateSnapshot{
		SessionID:      sessionID,
		GameType:       gameType,
		StateData:      doc,
		Version:        version,
		Sequence:       seq,
		Timestamp:      ts,
		OwnerProcessID: owner,
		Checksum:       SnapshotChecksum(sessionID, doc, version, ts),
	}
}

// Verify recomputes the checksum.
func (s *GameStateSnapshot) Verify() bool {
	return s.Checksum == SnapshotChecksum(s.SessionID, s.StateData, s.Version, s.Timestamp)
}

func (s *GameStateSnapshot) clone() *GameStateSnapshot {
	cp := *s
	cp.StateData = cloneDocument(s.StateData)
	return &cp
}

// Field returns the value at path.
func (s *GameStateSnapshot) Field(path string) (any, bool) {
	return GetPath(s.StateData, path)
}

func sortedKeys(keys map[string]struct{}) []string {
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
