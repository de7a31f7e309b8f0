package logger_test

import (
	"context"
	"testing"

	"github.com/jonesrussell/north-cloud/autotagger/internal/logger"
)

func TestFromContext_ReturnsStoredLogger(t *testing.T) {
	t.Parallel()

	l, err := logger.New(logger.Config{Level: "warn", OutputPaths: []string{"stderr"}})
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}

	ctx := logger.WithContext(context.Background(), l)
	if got := logger.FromContext(ctx); got != l {
		t.Errorf("FromContext returned %v, want stored logger", got)
	}
}

func TestFromContext_FallbackIsSingleton(t *testing.T) {
	t.Parallel()

	a := logger.FromContext(context.Background())
	b := logger.FromContext(context.Background())
	if a == nil {
		t.Fatal("expected non-nil fallback logger")
	}
	if a != b {
		t.Error("expected the same fallback instance on every call")
	}

	a.Warn("fallback usable", logger.ContentID("42"), logger.Feature("category"))
}

func TestNop_WithReturnsUsableLogger(t *testing.T) {
	t.Parallel()

	l := logger.NewNop().With(logger.String("service", "autotagger"))
	l.Info("discarded")
	if err := l.Sync(); err != nil {
		t.Errorf("Sync() = %v, want nil", err)
	}
}
