package web

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	"todolists/internal/store"
)

// sessionClaim is the cookie payload. SID names the server-side state and Exp
// bounds how long the cookie may be presented without being re-issued.
type sessionClaim struct {
	SID string `json:"sid"`
	Exp int64  `json:"exp"`
}

var (
	errTokenFormat    = errors.New("invalid token format")
	errTokenSignature = errors.New("invalid token signature")
	errTokenExpired   = errors.New("token expired")
)

// LoadOrInitSecretKey reads the cookie signing key at path, creating a random
// one on first use.
func LoadOrInitSecretKey(path string) ([]byte, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("web: secret path is empty")
	}
	if b, err := os.ReadFile(path); err == nil && len(strings.TrimSpace(string(b))) > 0 {
		return []byte(strings.TrimSpace(string(b))), nil
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	enc := base64.RawURLEncoding.EncodeToString(raw)
	if err := store.WriteFileAtomic(path, []byte(enc+"\n"), 0o600); err != nil {
		return nil, err
	}
	return []byte(enc), nil
}

func signToken(secret []byte, c sessionClaim) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	p := base64.RawURLEncoding.EncodeToString(b)
	return p + "." + tokenSig(secret, p), nil
}

func tokenSig(secret []byte, payload string) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// verifyToken checks the signature first, so nothing from an unsigned payload
// is ever decoded.
func verifyToken(secret []byte, token string, now time.Time) (sessionClaim, error) {
	p, sig, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || p == "" || sig == "" {
		return sessionClaim{}, errTokenFormat
	}
	if !hmac.Equal([]byte(sig), []byte(tokenSig(secret, p))) {
		return sessionClaim{}, errTokenSignature
	}
	raw, err := base64.RawURLEncoding.DecodeString(p)
	if err != nil {
		return sessionClaim{}, errTokenFormat
	}
	var c sessionClaim
	if err := json.Unmarshal(raw, &c); err != nil || strings.TrimSpace(c.SID) == "" {
		return sessionClaim{}, errTokenFormat
	}
	if now.Unix() > c.Exp {
		return sessionClaim{}, errTokenExpired
	}
	return c, nil
}

func newSessionToken(secret []byte, sessionID string, exp time.Time) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", errors.New("missing session id")
	}
	return signToken(secret, sessionClaim{SID: sessionID, Exp: exp.Unix()})
}

// csrfKey derives the 32-byte CSRF authentication key from the cookie secret.
func csrfKey(secret []byte) []byte {
	sum := sha256.Sum256(append([]byte("todolists-csrf:"), secret...))
	return sum[:]
}
