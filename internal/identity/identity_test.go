package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestHTTPVerifier(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/v1/verify" {
			t.Errorf("path = %s", r.URL.Path)
		}
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			json.NewEncoder(w).Encode(Profile{Subject: "leg-12", DisplayName: "M. Rivera", Party: "Green"})
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	t.Cleanup(srv.Close)

	v := NewHTTPVerifier(srv.URL)

	profile, err := v.Verify(context.Background(), "good")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if profile.Subject != "leg-12" || profile.DisplayName != "M. Rivera" {
		t.Errorf("unexpected profile: %+v", profile)
	}

	if _, err := v.Verify(context.Background(), "bad"); !errors.Is(err, ErrUnverified) {
		t.Errorf("error = %v, want ErrUnverified", err)
	}
}

func TestHTTPVerifier_CachesSuccess(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(Profile{Subject: "leg-1"})
	}))
	t.Cleanup(srv.Close)

	v := NewHTTPVerifier(srv.URL)
	for range 3 {
		if _, err := v.Verify(context.Background(), "tok"); err != nil {
			t.Fatalf("Verify: %v", err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("identity service called %d times, want 1", got)
	}
}

func TestHTTPVerifier_EmptyToken(t *testing.T) {
	v := NewHTTPVerifier("http://identity.invalid")
	if _, err := v.Verify(context.Background(), ""); !errors.Is(err, ErrUnverified) {
		t.Errorf("error = %v, want ErrUnverified", err)
	}
}

func TestStaticVerifier(t *testing.T) {
	v := StaticVerifier{"tok": {Subject: "leg-9", Party: "Blue"}}

	profile, err := v.Verify(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if profile.Party != "Blue" {
		t.Errorf("unexpected profile: %+v", profile)
	}

	if _, err := v.Verify(context.Background(), "other"); !errors.Is(err, ErrUnverified) {
		t.Errorf("error = %v, want ErrUnverified", err)
	}
}
