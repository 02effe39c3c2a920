package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	appErr "party-service/pkg/errors"
)

func TestIsMatchesByCode(t *testing.T) {
	err := appErr.Illegal("dead players cannot act")
	if !stderrors.Is(err, appErr.ErrIllegalAction) {
		t.Fatalf("expected illegal action match")
	}
	if stderrors.Is(err, appErr.ErrConflict) {
		t.Fatalf("did not expect conflict match")
	}
	if appErr.Reason(err) != "dead players cannot act" {
		t.Fatalf("unexpected reason %q", appErr.Reason(err))
	}
}

func TestWrappedCodeSurvives(t *testing.T) {
	cause := appErr.Wrap(appErr.CodeTimeout, "get state", stderrors.New("deadline"))
	wrapped := fmt.Errorf("load session: %w", cause)

	if appErr.CodeOf(wrapped) != appErr.CodeTimeout {
		t.Fatalf("expected timeout code, got %s", appErr.CodeOf(wrapped))
	}
	if !appErr.IsRetryable(wrapped) {
		t.Fatalf("timeout should be retryable")
	}
	if appErr.IsRetryable(appErr.ErrIntegrity) {
		t.Fatalf("integrity errors are not retryable")
	}
	if appErr.CodeOf(stderrors.New("plain")) != appErr.CodeUnknown {
		t.Fatalf("plain errors map to unknown")
	}
}
