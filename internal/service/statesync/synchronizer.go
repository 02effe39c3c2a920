package statesync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"reflect"
	"sync"
	"time"

	appErr "party-service/pkg/errors"
	"party-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Config struct {
	OwnerID           string
	ConflictWindow    time.Duration
	CacheTTL          time.Duration
	ReconcileInterval time.Duration
	StoreTimeout      time.Duration
	StateTTL          time.Duration
	MaxWriteAttempts  int
	ConflictScan      int64
}

func DefaultConfig() Config {
	return Config{
		ConflictWindow:    30 * time.Second,
		CacheTTL:          30 * time.Second,
		ReconcileInterval: 5 * time.Second,
		StoreTimeout:      2 * time.Second,
		StateTTL:          24 * time.Hour,
		MaxWriteAttempts:  5,
		ConflictScan:      256,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.OwnerID == "" {
		host, _ := os.Hostname()
		c.OwnerID = fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
	}
	if c.ConflictWindow <= 0 {
		c.ConflictWindow = d.ConflictWindow
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = d.ReconcileInterval
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = d.StoreTimeout
	}
	if c.StateTTL <= 0 {
		c.StateTTL = d.StateTTL
	}
	if c.MaxWriteAttempts <= 0 {
		c.MaxWriteAttempts = d.MaxWriteAttempts
	}
	if c.ConflictScan <= 0 {
		c.ConflictScan = d.ConflictScan
	}
	return c
}

// storeReader is the read surface shared by *redis.Client and *redis.Tx.
type storeReader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

type cacheEntry struct {
	snap     *GameStateSnapshot
	syncedAt time.Time
}

// Synchronizer owns reads, writes and merges of session state over the Delta Store.
type Synchronizer struct {
	rdb *redis.Client
	cfg Config
	log *zap.Logger

	handlers *handlerRegistry

	schemaMu sync.RWMutex
	schemas  map[GameType]Schema

	mu      sync.Mutex
	cache   map[string]*cacheEntry
	tracked map[string]struct{}

	now func() time.Time
}

func NewSynchronizer(rdb *redis.Client, cfg Config, log *zap.Logger) *Synchronizer {
	cfg = cfg.withDefaults()
	s := &Synchronizer{
		rdb:      rdb,
		cfg:      cfg,
		log:      logger.Named(log, "statesync").With(zap.String("owner", cfg.OwnerID)),
		handlers: newHandlerRegistry(),
		schemas:  make(map[GameType]Schema),
		cache:    make(map[string]*cacheEntry),
		tracked:  make(map[string]struct{}),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, p := range []string{"players", "actionLog", "chatLog", "winnerIds"} {
		s.handlers.register(p, SetUnion)
	}
	for _, p := range []string{"score", "health", "dayNumber"} {
		s.handlers.register(p, MaxValueWins)
	}
	return s
}

func (s *Synchronizer) OwnerID() string {
	return s.cfg.OwnerID
}

// RegisterConflictHandler binds a handler to a field-path pattern.
func (s *Synchronizer) RegisterConflictHandler(pattern string, h ConflictHandler) {
	s.handlers.register(pattern, h)
}

// RegisterSchema binds a document validator to a game type.
func (s *Synchronizer) RegisterSchema(gameType GameType, schema Schema) {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	s.schemas[gameType] = schema
}

func (s *Synchronizer) validate(gameType GameType, doc map[string]any) error {
	s.schemaMu.RLock()
	schema, ok := s.schemas[gameType]
	s.schemaMu.RUnlock()
	if !ok {
		return nil
	}
	if err := schema.Validate(doc); err != nil {
		return appErr.Wrap(appErr.CodeInvalidArgument, fmt.Sprintf("invalid %s state", gameType), err)
	}
	return nil
}

func buildStateKey(sessionID string) string {
	return fmt.Sprintf("state:%s", sessionID)
}

func buildDeltaKey(sessionID string) string {
	return fmt.Sprintf("deltas:%s", sessionID)
}

func buildSeqKey(sessionID string) string {
	return fmt.Sprintf("state:%s:seq", sessionID)
}

func (s *Synchronizer) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var domain *appErr.Error
	if errors.As(err, &domain) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return appErr.Wrap(appErr.CodeTimeout, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// CreateState writes version 1 of a session and its create delta.
func (s *Synchronizer) CreateState(ctx context.Context, sessionID string, gameType GameType, initial any) (*GameStateSnapshot, error) {
	if sessionID == "" {
		return nil, appErr.New(appErr.CodeInvalidArgument, "session id is required")
	}
	doc, err := normalizeDocument(initial)
	if err != nil {
		return nil, appErr.Wrap(appErr.CodeInvalidArgument, "initial state", err)
	}
	if err := s.validate(gameType, doc); err != nil {
		return nil, err
	}

	start := time.Now()
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	now := s.now()
	snap := newSnapshot(sessionID, gameType, doc, 1, 1, now, s.cfg.OwnerID)
	delta := GameStateDelta{
		SessionID:      sessionID,
		OpType:         OpCreate,
		NewValue:       cloneDocument(doc),
		Timestamp:      now,
		OwnerProcessID: s.cfg.OwnerID,
		SequenceNumber: 1,
		Version:        1,
	}
	delta.Checksum = deltaChecksum(delta)

	snapData, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	deltaData, err := json.Marshal(delta)
	if err != nil {
		return nil, err
	}

	stateKey, deltaKey, seqKey := buildStateKey(sessionID), buildDeltaKey(sessionID), buildSeqKey(sessionID)
	err = s.rdb.Watch(sctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(sctx, stateKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return appErr.Newf(appErr.CodeAlreadyExists, "state for session %s already exists", sessionID)
		}
		_, err = tx.TxPipelined(sctx, func(pipe redis.Pipeliner) error {
			pipe.Del(sctx, deltaKey)
			pipe.Set(sctx, stateKey, snapData, s.cfg.StateTTL)
			pipe.Set(sctx, seqKey, 1, s.cfg.StateTTL)
			pipe.RPush(sctx, deltaKey, deltaData)
			pipe.Expire(sctx, deltaKey, s.cfg.StateTTL)
			return nil
		})
		return err
	}, stateKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil, appErr.Newf(appErr.CodeAlreadyExists, "state for session %s already exists", sessionID)
	}
	if err != nil {
		return nil, storeErr("create state", err)
	}

	writesTotal.WithLabelValues(string(OpCreate)).Inc()
	writeDuration.Observe(time.Since(start).Seconds())
	s.invalidate(sessionID)
	s.log.Debug("state created", zap.String("sessionID", sessionID), zap.String("gameType", string(gameType)))
	return snap.clone(), nil
}

// GetState serves the session snapshot, from the local cache when it is fresh.
func (s *Synchronizer) GetState(ctx context.Context, sessionID string) (*GameStateSnapshot, error) {
	now := s.now()
	s.mu.Lock()
	entry, ok := s.cache[sessionID]
	s.mu.Unlock()
	if ok && now.Sub(entry.syncedAt) < s.cfg.CacheTTL {
		cacheHits.Inc()
		return entry.snap.clone(), nil
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	snap, err := s.load(sctx, s.rdb, sessionID)
	if err != nil {
		if appErr.CodeOf(err) == appErr.CodeTimeout && ok && now.Sub(entry.syncedAt) < 2*s.cfg.CacheTTL {
			s.log.Warn("store timeout, serving cached state", zap.String("sessionID", sessionID))
			return entry.snap.clone(), nil
		}
		if appErr.CodeOf(err) == appErr.CodeNotFound {
			s.forget(sessionID)
		}
		return nil, err
	}

	s.mu.Lock()
	s.cache[sessionID] = &cacheEntry{snap: snap, syncedAt: now}
	s.tracked[sessionID] = struct{}{}
	s.mu.Unlock()
	return snap.clone(), nil
}

func (s *Synchronizer) load(ctx context.Context, c storeReader, sessionID string) (*GameStateSnapshot, error) {
	data, err := c.Get(ctx, buildStateKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, appErr.Wrap(appErr.CodeNotFound, "session not found", fmt.Errorf("session %s", sessionID))
	}
	if err != nil {
		return nil, storeErr("get state", err)
	}
	var snap GameStateSnapshot
	if err := decodeJSON(data, &snap); err != nil {
		return nil, appErr.Wrap(appErr.CodeIntegrity, "decode snapshot", err)
	}
	if snap.StateData == nil {
		snap.StateData = map[string]any{}
	}
	if !snap.Verify() {
		integrityFailures.Inc()
		s.log.Error("snapshot checksum mismatch",
			zap.String("sessionID", sessionID),
			zap.Int64("version", snap.Version),
		)
		return nil, appErr.Wrap(appErr.CodeIntegrity, "snapshot checksum mismatch", fmt.Errorf("session %s version %d", sessionID, snap.Version))
	}
	return &snap, nil
}

// UpdateField writes one field.
func (s *Synchronizer) UpdateField(ctx context.Context, sessionID, fieldPath string, newValue any, playerID string) (*GameStateSnapshot, error) {
	if len(splitPath(fieldPath)) == 0 {
		return nil, appErr.Wrap(appErr.CodeInvalidArgument, "update field", errEmptyPath)
	}
	return s.write(ctx, sessionID, []FieldUpdate{{Path: fieldPath, Value: newValue}}, playerID)
}

// BatchUpdate applies every update against one base snapshot, or none of them.
func (s *Synchronizer) BatchUpdate(ctx context.Context, sessionID string, updates []FieldUpdate, playerID string) (*GameStateSnapshot, error) {
	if len(updates) == 0 {
		return s.GetState(ctx, sessionID)
	}
	for _, u := range updates {
		if len(splitPath(u.Path)) == 0 {
			return nil, appErr.Wrap(appErr.CodeInvalidArgument, "batch update", errEmptyPath)
		}
	}
	return s.write(ctx, sessionID, updates, playerID)
}

type unresolvedConflict struct {
	path     string
	oldValue any
	newValue any
	version  int64
}

func (u *unresolvedConflict) Error() string {
	return fmt.Sprintf("no resolution for concurrent write to %s", u.path)
}

func (s *Synchronizer) write(ctx context.Context, sessionID string, updates []FieldUpdate, playerID string) (*GameStateSnapshot, error) {
	normalized := make([]FieldUpdate, len(updates))
	for i, u := range updates {
		v, err := normalize(u.Value)
		if err != nil {
			return nil, appErr.Wrap(appErr.CodeInvalidArgument, fmt.Sprintf("value for %s", u.Path), err)
		}
		normalized[i] = FieldUpdate{Path: u.Path, Value: v}
	}

	start := time.Now()
	defer s.invalidate(sessionID)
	for attempt := 1; attempt <= s.cfg.MaxWriteAttempts; attempt++ {
		snap, err := s.tryWrite(ctx, sessionID, normalized, playerID)
		if errors.Is(err, errRaceLost) {
			raceRetries.Inc()
			s.log.Debug("write lost optimistic race, re-reading",
				zap.String("sessionID", sessionID),
				zap.Int("attempt", attempt),
			)
			continue
		}
		var unresolved *unresolvedConflict
		if errors.As(err, &unresolved) {
			conflictsTotal.WithLabelValues("unresolved").Inc()
			s.recordConflict(ctx, sessionID, unresolved, playerID)
			return nil, appErr.Wrap(appErr.CodeConflict, "update rejected", err)
		}
		if err != nil {
			return nil, err
		}
		writeDuration.Observe(time.Since(start).Seconds())
		return snap, nil
	}
	return nil, appErr.Wrap(appErr.CodeConflict, "update rejected", errRaceLost)
}

func (s *Synchronizer) tryWrite(ctx context.Context, sessionID string, updates []FieldUpdate, playerID string) (*GameStateSnapshot, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	stateKey, deltaKey, seqKey := buildStateKey(sessionID), buildDeltaKey(sessionID), buildSeqKey(sessionID)
	var result *GameStateSnapshot
	var ops []OpType

	err := s.rdb.Watch(sctx, func(tx *redis.Tx) error {
		base, err := s.load(sctx, tx, sessionID)
		if err != nil {
			return err
		}
		seq, err := s.currentSeq(sctx, tx, sessionID, base)
		if err != nil {
			return err
		}
		now := s.now()
		recent, err := s.recentForeignDeltas(sctx, tx, sessionID, now)
		if err != nil {
			return err
		}

		next := cloneDocument(base.StateData)
		version := base.Version + 1
		deltas := make([]interface{}, 0, len(updates))
		ops = ops[:0]
		for _, u := range updates {
			oldValue, _ := GetPath(next, u.Path)
			value := u.Value
			op := OpUpdate
			if conflicting(recent, u.Path) {
				resolved, ok := s.handlers.resolve(u.Path)(sessionID, u.Path, cloneValue(oldValue), cloneValue(value), playerID)
				if !ok {
					return &unresolvedConflict{path: u.Path, oldValue: oldValue, newValue: value, version: base.Version}
				}
				resolved, err = normalize(resolved)
				if err != nil {
					return appErr.Wrap(appErr.CodeInvalidArgument, "resolved value", err)
				}
				if !reflect.DeepEqual(resolved, value) {
					op = OpMerge
				}
				conflictsTotal.WithLabelValues("resolved").Inc()
				value = resolved
			}
			if err := setPath(next, u.Path, cloneValue(value)); err != nil {
				return appErr.Wrap(appErr.CodeInvalidArgument, "apply update", err)
			}
			seq++
			d := GameStateDelta{
				SessionID:      sessionID,
				OpType:         op,
				FieldPath:      u.Path,
				OldValue:       oldValue,
				NewValue:       value,
				Timestamp:      now,
				OwnerProcessID: s.cfg.OwnerID,
				PlayerID:       playerID,
				SequenceNumber: seq,
				Version:        version,
			}
			d.Checksum = deltaChecksum(d)
			data, err := json.Marshal(d)
			if err != nil {
				return err
			}
			deltas = append(deltas, data)
			ops = append(ops, op)
		}
		if err := s.validate(base.GameType, next); err != nil {
			return err
		}

		snap := newSnapshot(sessionID, base.GameType, next, version, seq, now, s.cfg.OwnerID)
		snapData, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(sctx, func(pipe redis.Pipeliner) error {
			pipe.Set(sctx, stateKey, snapData, s.cfg.StateTTL)
			pipe.Set(sctx, seqKey, seq, s.cfg.StateTTL)
			pipe.RPush(sctx, deltaKey, deltas...)
			pipe.Expire(sctx, deltaKey, s.cfg.StateTTL)
			return nil
		})
		if err != nil {
			return err
		}
		result = snap
		return nil
	}, stateKey, seqKey)

	if errors.Is(err, redis.TxFailedErr) {
		return nil, errRaceLost
	}
	if err != nil {
		var unresolved *unresolvedConflict
		if errors.As(err, &unresolved) {
			return nil, err
		}
		return nil, storeErr("write state", err)
	}
	for _, op := range ops {
		writesTotal.WithLabelValues(string(op)).Inc()
	}
	return result.clone(), nil
}

func (s *Synchronizer) currentSeq(ctx context.Context, c storeReader, sessionID string, base *GameStateSnapshot) (int64, error) {
	seq, err := c.Get(ctx, buildSeqKey(sessionID)).Int64()
	if errors.Is(err, redis.Nil) {
		return base.Sequence, nil
	}
	if err != nil {
		return 0, storeErr("get sequence", err)
	}
	return seq, nil
}

// recentForeignDeltas returns deltas of other owners inside the conflict window.
func (s *Synchronizer) recentForeignDeltas(ctx context.Context, c storeReader, sessionID string, now time.Time) ([]GameStateDelta, error) {
	raw, err := c.LRange(ctx, buildDeltaKey(sessionID), -s.cfg.ConflictScan, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, storeErr("scan deltas", err)
	}
	cutoff := now.Add(-s.cfg.ConflictWindow)
	out := make([]GameStateDelta, 0)
	for _, item := range raw {
		var d GameStateDelta
		if err := decodeJSON([]byte(item), &d); err != nil {
			continue
		}
		if d.OwnerProcessID == s.cfg.OwnerID || d.Timestamp.Before(cutoff) {
			continue
		}
		if d.OpType == OpCreate || d.OpType == OpConflict {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func conflicting(recent []GameStateDelta, path string) bool {
	for _, d := range recent {
		if pathsOverlap(d.FieldPath, path) {
			return true
		}
	}
	return false
}

// recordConflict appends an audit-only conflict delta; it carries no state change.
func (s *Synchronizer) recordConflict(ctx context.Context, sessionID string, c *unresolvedConflict, playerID string) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	seqKey, deltaKey := buildSeqKey(sessionID), buildDeltaKey(sessionID)
	err := s.rdb.Watch(sctx, func(tx *redis.Tx) error {
		seq, err := tx.Get(sctx, seqKey).Int64()
		if err != nil {
			return err
		}
		d := GameStateDelta{
			SessionID:      sessionID,
			OpType:         OpConflict,
			FieldPath:      c.path,
			OldValue:       c.oldValue,
			NewValue:       c.newValue,
			Timestamp:      s.now(),
			OwnerProcessID: s.cfg.OwnerID,
			PlayerID:       playerID,
			SequenceNumber: seq + 1,
			Version:        c.version,
		}
		d.Checksum = deltaChecksum(d)
		data, err := json.Marshal(d)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(sctx, func(pipe redis.Pipeliner) error {
			pipe.Set(sctx, seqKey, seq+1, s.cfg.StateTTL)
			pipe.RPush(sctx, deltaKey, data)
			return nil
		})
		return err
	}, seqKey)
	if err != nil {
		s.log.Warn("failed to record conflict delta", zap.String("sessionID", sessionID), zap.Error(err))
	}
}

// DeleteState writes a terminal delete delta and clears the session keys.
func (s *Synchronizer) DeleteState(ctx context.Context, sessionID string) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	stateKey, deltaKey, seqKey := buildStateKey(sessionID), buildDeltaKey(sessionID), buildSeqKey(sessionID)
	err := s.rdb.Watch(sctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(sctx, stateKey).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return appErr.Wrap(appErr.CodeNotFound, "session not found", fmt.Errorf("session %s", sessionID))
		}
		seq, err := tx.Get(sctx, seqKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		d := GameStateDelta{
			SessionID:      sessionID,
			OpType:         OpDelete,
			Timestamp:      s.now(),
			OwnerProcessID: s.cfg.OwnerID,
			SequenceNumber: seq + 1,
		}
		d.Checksum = deltaChecksum(d)
		data, err := json.Marshal(d)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(sctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(sctx, deltaKey, data)
			pipe.Del(sctx, stateKey, deltaKey, seqKey)
			return nil
		})
		return err
	}, stateKey, seqKey)
	if errors.Is(err, redis.TxFailedErr) {
		return appErr.Wrap(appErr.CodeConflict, "delete state", errRaceLost)
	}
	if err != nil {
		return storeErr("delete state", err)
	}
	writesTotal.WithLabelValues(string(OpDelete)).Inc()
	s.forget(sessionID)
	s.log.Info("state deleted", zap.String("sessionID", sessionID))
	return nil
}

// Expire resets the backstop TTL of every key of the session.
func (s *Synchronizer) Expire(ctx context.Context, sessionID string, ttl time.Duration) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	_, err := s.rdb.TxPipelined(sctx, func(pipe redis.Pipeliner) error {
		pipe.Expire(sctx, buildStateKey(sessionID), ttl)
		pipe.Expire(sctx, buildDeltaKey(sessionID), ttl)
		pipe.Expire(sctx, buildSeqKey(sessionID), ttl)
		return nil
	})
	return storeErr("expire state", err)
}

// GetDeltas lists deltas in sequence order, optionally only those after since.
// maxCount <= 0 means no limit.
func (s *Synchronizer) GetDeltas(ctx context.Context, sessionID string, since *time.Time, maxCount int) ([]GameStateDelta, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	deltas, err := s.deltasFrom(sctx, sessionID, 0)
	if err != nil {
		return nil, err
	}
	out := make([]GameStateDelta, 0, len(deltas))
	for _, d := range deltas {
		if since != nil && !d.Timestamp.After(*since) {
			continue
		}
		out = append(out, d)
		if maxCount > 0 && len(out) >= maxCount {
			break
		}
	}
	return out, nil
}

// deltasFrom reads the log starting at list index start. The log is gapless and
// starts at sequence 1, so index i holds sequence i+1.
func (s *Synchronizer) deltasFrom(ctx context.Context, sessionID string, start int64) ([]GameStateDelta, error) {
	raw, err := s.rdb.LRange(ctx, buildDeltaKey(sessionID), start, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, storeErr("list deltas", err)
	}
	out := make([]GameStateDelta, 0, len(raw))
	for _, item := range raw {
		var d GameStateDelta
		if err := decodeJSON([]byte(item), &d); err != nil {
			return nil, appErr.Wrap(appErr.CodeIntegrity, "decode delta", err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Synchronizer) invalidate(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, sessionID)
	s.tracked[sessionID] = struct{}{}
}

func (s *Synchronizer) forget(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, sessionID)
	delete(s.tracked, sessionID)
}
