package statesync

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Run drives the reconciliation loop until ctx is done.
func (s *Synchronizer) Run(ctx context.Context) {
	s.log.Info("reconciler started", zap.Duration("interval", s.cfg.ReconcileInterval))

	ticker := time.NewTicker(s.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("reconciler stopped")
			return
		case <-ticker.C:
			s.ReconcileOnce(ctx)
		}
	}
}

// ReconcileOnce pulls new deltas for every tracked session into the local cache.
func (s *Synchronizer) ReconcileOnce(ctx context.Context) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.tracked))
	for id := range s.tracked {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if err := s.reconcileSession(ctx, id); err != nil {
			s.log.Warn("reconcile session failed", zap.String("sessionID", id), zap.Error(err))
		}
	}
}

func (s *Synchronizer) reconcileSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	entry, ok := s.cache[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	deltas, err := s.deltasFrom(sctx, sessionID, entry.snap.Sequence)
	if err != nil {
		return err
	}

	now := s.now()
	if len(deltas) == 0 {
		// Delete and TTL expiry drop the log together with the snapshot.
		n, err := s.rdb.Exists(sctx, buildStateKey(sessionID)).Result()
		if err != nil {
			return storeErr("exists state", err)
		}
		if n == 0 {
			s.forget(sessionID)
			s.log.Info("session gone from store", zap.String("sessionID", sessionID))
			return nil
		}
		s.mu.Lock()
		if cur, ok := s.cache[sessionID]; ok && cur == entry {
			cur.syncedAt = now
		}
		s.mu.Unlock()
		return nil
	}

	doc := cloneDocument(entry.snap.StateData)
	version, seq, ts := entry.snap.Version, entry.snap.Sequence, entry.snap.Timestamp
	applied := 0
	for _, d := range deltas {
		if d.SequenceNumber <= seq {
			continue
		}
		switch d.OpType {
		case OpConflict:
			seq = d.SequenceNumber
			continue
		case OpCreate:
			initial, err := normalizeDocument(d.NewValue)
			if err != nil {
				return err
			}
			doc = initial
		case OpUpdate, OpMerge:
			local, _ := GetPath(doc, d.FieldPath)
			value := cloneValue(d.NewValue)
			if d.OwnerProcessID != s.cfg.OwnerID && !jsonEqual(local, d.OldValue) {
				if resolved, ok := s.handlers.resolve(d.FieldPath)(sessionID, d.FieldPath, local, value, d.PlayerID); ok {
					if n, err := normalize(resolved); err == nil {
						value = n
					}
				}
			}
			if err := setPath(doc, d.FieldPath, value); err != nil {
				return err
			}
		}
		version, seq, ts = d.Version, d.SequenceNumber, d.Timestamp
		applied++
	}

	snap := newSnapshot(sessionID, entry.snap.GameType, doc, version, seq, ts, entry.snap.OwnerProcessID)
	s.mu.Lock()
	if cur, ok := s.cache[sessionID]; ok && cur == entry {
		s.cache[sessionID] = &cacheEntry{snap: snap, syncedAt: now}
	}
	s.mu.Unlock()

	reconciledDeltas.Add(float64(applied))
	s.log.Debug("reconciled session",
		zap.String("sessionID", sessionID),
		zap.Int("deltas", applied),
		zap.Int64("version", version),
	)
	return nil
}
