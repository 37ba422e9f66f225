package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/domain"
)

// HMACVerifier validates tokens issued by the account service: a
// base64url claims document followed by a base64url HMAC-SHA256 signature
// over the raw claims bytes, joined by a dot. Both ends share the secret.
type HMACVerifier struct {
	secret []byte
	now    func() time.Time
}

type claims struct {
	ID     string `json:"id"`
	Role   string `json:"role"`
	HostID string `json:"hostId"`
	Exp    int64  `json:"exp"`
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{
		secret: []byte(secret),
		now:    time.Now,
	}
}

func (v *HMACVerifier) Verify(token string) (domain.Identity, error) {
	body, sig, ok := strings.Cut(token, ".")
	if !ok {
		return domain.Identity{}, domain.ErrInvalidCredential
	}

	rawBody, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return domain.Identity{}, domain.ErrInvalidCredential
	}
	rawSig, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return domain.Identity{}, domain.ErrInvalidCredential
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(rawBody)
	if !hmac.Equal(rawSig, mac.Sum(nil)) {
		return domain.Identity{}, domain.ErrInvalidCredential
	}

	var c claims
	if err := json.Unmarshal(rawBody, &c); err != nil {
		return domain.Identity{}, domain.ErrInvalidCredential
	}
	if c.ID == "" || c.Exp == 0 || v.now().Unix() >= c.Exp {
		return domain.Identity{}, domain.ErrInvalidCredential
	}

	identity := domain.Identity{ID: c.ID, HostID: c.HostID}
	switch domain.Role(c.Role) {
	case domain.RoleHost:
		identity.Role = domain.RoleHost
		// a host always scopes to itself
		identity.HostID = c.ID
	case domain.RoleUser:
		identity.Role = domain.RoleUser
		if identity.HostID == "" {
			return domain.Identity{}, domain.ErrInvalidCredential
		}
	default:
		return domain.Identity{}, domain.ErrInvalidCredential
	}
	return identity, nil
}

// Sign produces a token for the given identity, used by operational
// tooling and tests. Production tokens come from the account service.
func Sign(secret string, identity domain.Identity, expiresAt time.Time) string {
	rawBody, _ := json.Marshal(claims{
		ID:     identity.ID,
		Role:   string(identity.Role),
		HostID: identity.HostID,
		Exp:    expiresAt.Unix(),
	})
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return base64.RawURLEncoding.EncodeToString(rawBody) + "." +
		base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
