package mafia_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"party-service/internal/service/mafia"
	appErr "party-service/pkg/errors"

	"go.uber.org/zap"
)

func TestRetryInterceptorRetriesConflicts(t *testing.T) {
	r := mafia.RetryInterceptor{InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, MaxTries: 5, Log: zap.NewNop()}
	call := mafia.Call{Op: "SubmitAction", SessionID: "s1", PlayerID: "p1"}

	attempts := 0
	err := r.Intercept(context.Background(), call, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return appErr.ErrConflict
		}
		return nil
	})
	if err != nil || attempts != 3 {
		t.Fatalf("expected success on third attempt, got %v after %d", err, attempts)
	}

	attempts = 0
	err = r.Intercept(context.Background(), call, func(context.Context) error {
		attempts++
		return appErr.Illegal("not your turn")
	})
	if attempts != 1 {
		t.Fatalf("illegal actions must not be retried, got %d attempts", attempts)
	}
	if !errors.Is(err, appErr.ErrIllegalAction) || appErr.Reason(err) != "not your turn" {
		t.Fatalf("expected the original illegal error, got %v", err)
	}
}

func TestRetryInterceptorGivesUp(t *testing.T) {
	r := mafia.RetryInterceptor{InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, MaxTries: 3}
	attempts := 0
	err := r.Intercept(context.Background(), mafia.Call{Op: "AdvancePhase"}, func(context.Context) error {
		attempts++
		return appErr.ErrTimeout
	})
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if !errors.Is(err, appErr.ErrTimeout) {
		t.Fatalf("expected the last timeout error, got %v", err)
	}
}

func TestRateLimitInterceptor(t *testing.T) {
	rl := mafia.NewRateLimitInterceptor(0.001, 2)
	ok := func(context.Context) error { return nil }
	player := mafia.Call{Op: "SubmitAction", SessionID: "s1", PlayerID: "p1"}

	for i := 0; i < 2; i++ {
		if err := rl.Intercept(context.Background(), player, ok); err != nil {
			t.Fatalf("call %d should pass: %v", i, err)
		}
	}
	if err := rl.Intercept(context.Background(), player, ok); !errors.Is(err, appErr.ErrRateLimited) {
		t.Fatalf("expected rate limit, got %v", err)
	}

	other := mafia.Call{Op: "SubmitAction", SessionID: "s1", PlayerID: "p2"}
	if err := rl.Intercept(context.Background(), other, ok); err != nil {
		t.Fatalf("players are limited independently: %v", err)
	}
	system := mafia.Call{Op: "AdvancePhase", SessionID: "s1"}
	for i := 0; i < 5; i++ {
		if err := rl.Intercept(context.Background(), system, ok); err != nil {
			t.Fatalf("system calls are not limited: %v", err)
		}
	}
}

func TestInterceptorFuncOrder(t *testing.T) {
	var trace []string
	mark := func(name string) mafia.Interceptor {
		return mafia.InterceptorFunc(func(ctx context.Context, call mafia.Call, next mafia.Handler) error {
			trace = append(trace, name)
			return next(ctx)
		})
	}
	e := newEngine(t)
	e.engine.SetInterceptors(mark("outer"), mark("inner"))

	if _, err := e.engine.CreateSession(context.Background(), mafia.CreateSessionRequest{FamilyGroupID: "fam", HostID: "p1"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if len(trace) != 2 || trace[0] != "outer" || trace[1] != "inner" {
		t.Fatalf("unexpected interceptor order %v", trace)
	}
}
