package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/domain"
)

const testSecret = "test-secret"

func TestVerifyRoundTrip(t *testing.T) {
	v := NewHMACVerifier(testSecret)

	token := Sign(testSecret, domain.Identity{
		ID:     "u1",
		Role:   domain.RoleUser,
		HostID: "h1",
	}, time.Now().Add(time.Hour))

	identity, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if identity.ID != "u1" || identity.Role != domain.RoleUser || identity.HostID != "h1" {
		t.Fatalf("identity = %+v", identity)
	}
}

func TestVerifyScopesHostToItself(t *testing.T) {
	v := NewHMACVerifier(testSecret)

	// hostId in a host token is ignored, a host always scopes to its own id
	token := Sign(testSecret, domain.Identity{
		ID:     "h1",
		Role:   domain.RoleHost,
		HostID: "someone-else",
	}, time.Now().Add(time.Hour))

	identity, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if identity.HostID != "h1" {
		t.Fatalf("host scoped to %q, want itself", identity.HostID)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	v := NewHMACVerifier(testSecret)
	good := Sign(testSecret, domain.Identity{ID: "u1", Role: domain.RoleUser, HostID: "h1"}, time.Now().Add(time.Hour))

	cases := map[string]string{
		"no separator":    strings.ReplaceAll(good, ".", "_"),
		"flipped payload": "x" + good,
		"flipped sig":     good[:len(good)-1] + "x",
		"wrong secret":    Sign("other-secret", domain.Identity{ID: "u1", Role: domain.RoleUser, HostID: "h1"}, time.Now().Add(time.Hour)),
		"not base64":      "???.???",
		"empty":           "",
	}
	for name, token := range cases {
		if _, err := v.Verify(token); !errors.Is(err, domain.ErrInvalidCredential) {
			t.Errorf("%s: Verify() error = %v, want ErrInvalidCredential", name, err)
		}
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	v := NewHMACVerifier(testSecret)
	token := Sign(testSecret, domain.Identity{ID: "u1", Role: domain.RoleUser, HostID: "h1"}, time.Now().Add(-time.Minute))

	if _, err := v.Verify(token); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("Verify() error = %v, want ErrInvalidCredential", err)
	}
}

func TestVerifyRejectsUserWithoutHost(t *testing.T) {
	v := NewHMACVerifier(testSecret)
	token := Sign(testSecret, domain.Identity{ID: "u1", Role: domain.RoleUser}, time.Now().Add(time.Hour))

	if _, err := v.Verify(token); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("Verify() error = %v, want ErrInvalidCredential", err)
	}
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	v := NewHMACVerifier(testSecret)
	token := Sign(testSecret, domain.Identity{ID: "u1", Role: "admin", HostID: "h1"}, time.Now().Add(time.Hour))

	if _, err := v.Verify(token); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("Verify() error = %v, want ErrInvalidCredential", err)
	}
}
