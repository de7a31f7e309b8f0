package domain_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
)

func TestKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, domain.KindNone},
		{"not enabled", domain.ErrNotEnabled, domain.KindNotEnabled},
		{"wrapped credentials", fmt.Errorf("analyze: %w", domain.ErrCredentialsMissing), domain.KindCredentialsMissing},
		{"transport", &domain.TransportError{Err: context.DeadlineExceeded, Timeout: true}, domain.KindTransport},
		{"provider", &domain.ProviderError{StatusCode: 401, Code: "401", Message: "Unauthorized"}, domain.KindProvider},
		{"invalid", &domain.InvalidResponseError{Raw: []byte("not json")}, domain.KindInvalidResponse},
		{"linking", &domain.LinkingError{Feature: domain.FeatureKeyword, Err: errors.New("db down")}, domain.KindLinking},
		{"other", errors.New("boom"), domain.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := domain.Kind(tt.err); got != tt.want {
				t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestTransportError_UnwrapsCause(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("classify: %w", &domain.TransportError{Err: context.DeadlineExceeded, Timeout: true})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected cause to be reachable through errors.Is")
	}

	var te *domain.TransportError
	if !errors.As(err, &te) || !te.Timeout {
		t.Errorf("expected timeout TransportError, got %v", err)
	}
}

func TestInvalidResponseError_KeepsRawBody(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("analyze: %w", &domain.InvalidResponseError{StatusCode: 200, Raw: []byte("not json")})

	var ire *domain.InvalidResponseError
	if !errors.As(err, &ire) {
		t.Fatalf("expected InvalidResponseError, got %T", err)
	}
	if string(ire.Raw) != "not json" {
		t.Errorf("Raw = %q, want %q", ire.Raw, "not json")
	}
}
