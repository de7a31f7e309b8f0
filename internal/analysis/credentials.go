package analysis

import (
	"context"
	"os"
	"strings"
)

// CredentialKey names one credential value.
type CredentialKey string

// Credential keys.
const (
	KeyUsername CredentialKey = "username"
	KeyPassword CredentialKey = "password"
)

// Resolver looks up one credential value. found is false when the source
// has nothing non-empty for key.
type Resolver interface {
	Resolve(ctx context.Context, key CredentialKey) (value string, found bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, key CredentialKey) (string, bool)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, key CredentialKey) (string, bool) {
	return f(ctx, key)
}

// StaticResolver returns values supplied at construction.
type StaticResolver struct {
	Username string
	Password string //nolint:gosec // G117: provider credential
}

// Resolve implements Resolver.
func (s StaticResolver) Resolve(_ context.Context, key CredentialKey) (string, bool) {
	switch key {
	case KeyUsername:
		return s.Username, s.Username != ""
	case KeyPassword:
		return s.Password, s.Password != ""
	default:
		return "", false
	}
}

// Environment variables read by EnvResolver.
const (
	EnvUsername = "AUTOTAGGER_NLU_USERNAME"
	EnvPassword = "AUTOTAGGER_NLU_PASSWORD" //nolint:gosec // G101: variable name, not a secret
)

// EnvResolver reads credentials from the process environment.
type EnvResolver struct{}

// Resolve implements Resolver.
func (EnvResolver) Resolve(_ context.Context, key CredentialKey) (string, bool) {
	name := EnvUsername
	if key == KeyPassword {
		name = EnvPassword
	}
	v := strings.TrimSpace(os.Getenv(name))
	return v, v != ""
}

// OptionStore is the persisted-settings source consulted by SettingsResolver.
type OptionStore interface {
	Option(ctx context.Context, key string) (string, bool, error)
}

// Settings option keys holding provider credentials.
const (
	OptionUsername = "nlu_username"
	OptionPassword = "nlu_password" //nolint:gosec // G101: option name, not a secret
)

// SettingsResolver reads credentials persisted through the settings store.
// Store errors are treated as not found so the chain can fail with
// CredentialsMissing instead of an opaque database error.
type SettingsResolver struct {
	Store OptionStore
}

// Resolve implements Resolver.
func (s SettingsResolver) Resolve(ctx context.Context, key CredentialKey) (string, bool) {
	if s.Store == nil {
		return "", false
	}
	option := OptionUsername
	if key == KeyPassword {
		option = OptionPassword
	}
	v, ok, err := s.Store.Option(ctx, option)
	if err != nil || !ok || v == "" {
		return "", false
	}
	return v, true
}

// Chain tries resolvers in order; the first non-empty value wins.
type Chain []Resolver

// Resolve implements Resolver.
func (c Chain) Resolve(ctx context.Context, key CredentialKey) (string, bool) {
	for _, r := range c {
		if r == nil {
			continue
		}
		if v, ok := r.Resolve(ctx, key); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// Credentials is a resolved username/password pair.
type Credentials struct {
	Username string
	Password string //nolint:gosec // G117: provider credential
}

// Empty reports whether neither value resolved.
func (c Credentials) Empty() bool {
	return c.Username == "" && c.Password == ""
}

// ResolveCredentials resolves both keys through r.
func ResolveCredentials(ctx context.Context, r Resolver) Credentials {
	user, _ := r.Resolve(ctx, KeyUsername)
	pass, _ := r.Resolve(ctx, KeyPassword)
	return Credentials{Username: user, Password: pass}
}
