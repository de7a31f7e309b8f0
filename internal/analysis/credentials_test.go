package analysis_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jonesrussell/north-cloud/autotagger/internal/analysis"
)

type optionStore map[string]string

func (s optionStore) Option(_ context.Context, key string) (string, bool, error) {
	v, ok := s[key]
	return v, ok, nil
}

type failingStore struct{}

func (failingStore) Option(context.Context, string) (string, bool, error) {
	return "", false, errors.New("db down")
}

func TestChain_FirstNonEmptyWins(t *testing.T) {
	t.Setenv(analysis.EnvUsername, "env-user")
	t.Setenv(analysis.EnvPassword, "")

	chain := analysis.Chain{
		analysis.StaticResolver{},
		analysis.EnvResolver{},
		analysis.SettingsResolver{Store: optionStore{
			analysis.OptionUsername: "stored-user",
			analysis.OptionPassword: "stored-pass",
		}},
	}

	creds := analysis.ResolveCredentials(context.Background(), chain)
	if creds.Username != "env-user" {
		t.Errorf("username = %q, want env-user", creds.Username)
	}
	if creds.Password != "stored-pass" {
		t.Errorf("password = %q, want stored-pass", creds.Password)
	}
}

func TestSettingsResolver_StoreErrorIsNotFound(t *testing.T) {
	r := analysis.SettingsResolver{Store: failingStore{}}
	if v, ok := r.Resolve(context.Background(), analysis.KeyUsername); ok || v != "" {
		t.Errorf("expected not found, got %q/%v", v, ok)
	}
}

func TestChain_Empty(t *testing.T) {
	t.Setenv(analysis.EnvUsername, "")
	t.Setenv(analysis.EnvPassword, "")

	creds := analysis.ResolveCredentials(context.Background(), analysis.Chain{analysis.EnvResolver{}, nil})
	if !creds.Empty() {
		t.Errorf("expected empty credentials, got %+v", creds)
	}
}
