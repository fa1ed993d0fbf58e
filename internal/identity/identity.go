// Package identity verifies bearer credentials against an external identity
// service and resolves them to actor profiles. Profiles are used for display
// attribution in logs and events only; vote authorization always comes from
// the ledger's legislator registry.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrUnverified is returned when the identity service rejects a credential.
var ErrUnverified = errors.New("credential not verified")

// Profile describes a verified actor.
type Profile struct {
	Subject     string `json:"subject"`
	DisplayName string `json:"display_name,omitempty"`
	Party       string `json:"party,omitempty"`
}

// Verifier resolves a bearer credential to an actor profile.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Profile, error)
}

// HTTPVerifier verifies credentials against an identity service endpoint.
// Successful lookups are cached briefly to keep per-request overhead down.
type HTTPVerifier struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.Mutex
	cache map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	profile *Profile
	expires time.Time
}

// NewHTTPVerifier creates a verifier targeting the given base URL
// (e.g. "https://id.example.org").
func NewHTTPVerifier(baseURL string) *HTTPVerifier {
	return &HTTPVerifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      make(map[string]cacheEntry),
		ttl:        time.Minute,
	}
}

// Verify calls GET /v1/verify with the credential as a bearer token.
// A 401 or 403 response maps to ErrUnverified.
func (v *HTTPVerifier) Verify(ctx context.Context, token string) (*Profile, error) {
	if token == "" {
		return nil, ErrUnverified
	}

	v.mu.Lock()
	if entry, ok := v.cache[token]; ok && time.Now().Before(entry.expires) {
		v.mu.Unlock()
		return entry.profile, nil
	}
	v.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/v1/verify", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verifying credential: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnverified
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("identity service returned %d: %s", resp.StatusCode, body)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}

	v.mu.Lock()
	v.cache[token] = cacheEntry{profile: &profile, expires: time.Now().Add(v.ttl)}
	v.mu.Unlock()

	return &profile, nil
}

// StaticVerifier resolves credentials from a fixed map. Useful for tests and
// single-operator deployments.
type StaticVerifier map[string]Profile

func (s StaticVerifier) Verify(_ context.Context, token string) (*Profile, error) {
	p, ok := s[token]
	if !ok {
		return nil, ErrUnverified
	}
	return &p, nil
}
