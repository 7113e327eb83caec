package optimistic

import (
	"context"
	"errors"
	"testing"
)

func TestDoKeepsChangeOnSuccess(t *testing.T) {
	count := 3
	err := Do(context.Background(), Update{
		Apply:   func() { count-- },
		Revert:  func() { count++ },
		Confirm: func(context.Context) error { return nil },
	})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestDoRevertsOnFailure(t *testing.T) {
	boom := errors.New("boom")
	count := 3
	err := Do(context.Background(), Update{
		Apply:  func() { count-- },
		Revert: func() { count++ },
		Confirm: func(context.Context) error {
			count += 10 // a concurrent change landing mid-flight
			return boom
		},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if count != 13 {
		t.Errorf("count = %d, want 13 (inverse keeps concurrent change)", count)
	}
}

func TestDoRequiresConfirm(t *testing.T) {
	if err := Do(context.Background(), Update{}); err == nil {
		t.Error("expected error without Confirm")
	}
}
