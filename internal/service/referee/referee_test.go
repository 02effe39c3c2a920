package referee_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"party-service/internal/model"
	"party-service/internal/service/bus"
	"party-service/internal/service/referee"
	"party-service/internal/service/statesync"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fixture struct {
	db   *gorm.DB
	sync *statesync.Synchronizer
	bus  *bus.LocalBus
	ref  *referee.Referee
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.CheatRecord{}); err != nil {
		t.Fatalf("failed to migrate cheat records: %v", err)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	syncer := statesync.NewSynchronizer(rdb, statesync.Config{OwnerID: "proc-a"}, zap.NewNop())
	b := bus.NewLocalBus(8, zap.NewNop())
	ref := referee.NewReferee(db, syncer, b, referee.Config{CooldownDuration: time.Minute}, zap.NewNop())
	return &fixture{db: db, sync: syncer, bus: b, ref: ref}
}

func TestReviewCleanActionIsPersisted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	result, err := f.ref.Review(ctx, "s1", "p1", []referee.Event{{Type: "chat", Text: "hello all"}})
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if result.SeverityLevel != 0 {
		t.Fatalf("expected clean result, got %+v", result)
	}

	var count int64
	if err := f.db.Model(&model.CheatRecord{}).Where("session_id = ?", "s1").Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one persisted record, got %d", count)
	}
}

func TestReviewWritesCooldownAndNotifies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.sync.CreateState(ctx, "s1", "mafia", map[string]any{"cooldowns": map[string]any{}}); err != nil {
		t.Fatalf("create state failed: %v", err)
	}
	sub, err := f.bus.Subscribe(ctx, bus.PlayerTopic("s1", "p1"))
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer sub.Close()

	history := timedEvents("investigate", 1950, 2050, 1950, 2050, 1950, 2050, 1950, 2050, 1950, 2050)
	before := time.Now()
	result, err := f.ref.Review(ctx, "s1", "p1", history)
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if result.SeverityLevel != 4 {
		t.Fatalf("expected severity 4, got %d", result.SeverityLevel)
	}

	snap, err := f.sync.GetState(ctx, "s1")
	if err != nil {
		t.Fatalf("get state failed: %v", err)
	}
	raw, ok := snap.Field("cooldowns.p1")
	if !ok {
		t.Fatalf("cooldown not written: %v", snap.StateData)
	}
	until, err := raw.(json.Number).Int64()
	if err != nil {
		t.Fatalf("bad cooldown value %v", raw)
	}
	if until < before.Add(time.Minute).UnixMilli() {
		t.Fatalf("cooldown %d ends too early", until)
	}

	select {
	case msg := <-sub.C():
		var iv referee.Intervention
		if err := msg.Decode(&iv); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if msg.Type != referee.MessageIntervention || iv.Action != referee.ActionCooldown || iv.Until != until {
			t.Fatalf("unexpected intervention %s %+v", msg.Type, iv)
		}
	case <-time.After(time.Second):
		t.Fatalf("no intervention delivered")
	}
}

func TestLowSeverityOnlyReminds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.sync.CreateState(ctx, "s1", "mafia", map[string]any{"cooldowns": map[string]any{}}); err != nil {
		t.Fatalf("create state failed: %v", err)
	}
	sub, _ := f.bus.Subscribe(ctx, bus.PlayerTopic("s1", "p1"))
	defer sub.Close()

	result, err := f.ref.Review(ctx, "s1", "p1", []referee.Event{{Type: "chat", Text: "trust me, definitely Bo"}})
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if result.RecommendedAction != referee.ActionGameplaySuggestion {
		t.Fatalf("expected gameplay suggestion, got %s", result.RecommendedAction)
	}
	snap, err := f.sync.GetState(ctx, "s1")
	if err != nil {
		t.Fatalf("get state failed: %v", err)
	}
	if _, ok := snap.Field("cooldowns.p1"); ok {
		t.Fatalf("cooldown written below severity 4")
	}
	select {
	case msg := <-sub.C():
		if msg.Type != referee.MessageIntervention {
			t.Fatalf("unexpected message %s", msg.Type)
		}
	case <-time.After(time.Second):
		t.Fatalf("no reminder delivered")
	}
}

func TestHistoryFiltersBySeverity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.sync.CreateState(ctx, "s1", "mafia", map[string]any{}); err != nil {
		t.Fatalf("create state failed: %v", err)
	}
	inputs := [][]referee.Event{
		{{Type: "chat", Text: "good luck everyone"}},
		{{Type: "chat", Text: "dm me your role"}},
		{{Type: "chat", Text: "nice game"}},
	}
	for _, history := range inputs {
		if _, err := f.ref.Review(ctx, "s1", "p2", history); err != nil {
			t.Fatalf("review failed: %v", err)
		}
	}

	all, err := f.ref.History(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	flagged, err := f.ref.History(ctx, "s1", 1)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(flagged) != 1 || !flagged[0].Has(referee.IndicatorOutsideCommunication) {
		t.Fatalf("unexpected flagged history %+v", flagged)
	}
	if flagged[0].Evidence[string(referee.IndicatorOutsideCommunication)] == nil {
		t.Fatalf("evidence not restored: %+v", flagged[0].Evidence)
	}
}
