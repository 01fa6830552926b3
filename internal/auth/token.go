package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultIssuer = "carelink"

// Claims is the identity/role/expiry data recovered from a validated token.
type Claims struct {
	UserID    int64
	Role      Role
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies the signed claims envelope: an HS256 JWT whose
// jti names the server-side session record. Tokens are unguessable; nothing
// about them derives from the username.
type Tokens struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokens constructs a token codec. The clock is injectable for tests.
func NewTokens(secret []byte, issuer string, now func() time.Time) (*Tokens, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	if strings.TrimSpace(issuer) == "" {
		issuer = defaultIssuer
	}
	if now == nil {
		now = time.Now
	}
	return &Tokens{secret: secret, issuer: issuer, now: now}, nil
}

// Issue signs a token for the given subject. The returned claims carry the
// generated token id, which keys the session record.
func (t *Tokens) Issue(userID int64, role Role, ttl time.Duration) (string, Claims, error) {
	if userID < 1 {
		return "", Claims{}, errors.New("auth: user id must be positive")
	}
	if !role.Valid() {
		return "", Claims{}, fmt.Errorf("auth: unknown role %q", role)
	}
	if ttl <= 0 {
		return "", Claims{}, errors.New("auth: ttl must be greater than zero")
	}

	now := t.now().UTC()
	expiresAt := now.Add(ttl)
	claims := tokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, Claims{
		UserID:    userID,
		Role:      role,
		TokenID:   claims.ID,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// Parse verifies the signature and required claims. Expired tokens fail with
// ErrExpired, distinct from structurally invalid ones, so callers can decide
// between prompting re-login and rejecting outright. On ErrExpired the
// returned claims are still populated: the signature checked out and only the
// deadline failed, so callers may use the token id to settle the session.
func (t *Tokens) Parse(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(tk *jwt.Token) (any, error) {
		if tk.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithIssuer(t.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && parsed != nil {
			if tc, ok := parsed.Claims.(*tokenClaims); ok {
				if claims, convErr := claimsFromToken(tc); convErr == nil {
					return claims, ErrExpired
				}
			}
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrInvalidToken
	}

	tc, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	return claimsFromToken(tc)
}

func claimsFromToken(tc *tokenClaims) (Claims, error) {
	if tc.ID == "" || tc.ExpiresAt == nil || tc.IssuedAt == nil {
		return Claims{}, ErrInvalidToken
	}
	if !tc.Role.Valid() {
		return Claims{}, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(strings.TrimSpace(tc.Subject), 10, 64)
	if err != nil || userID < 1 {
		return Claims{}, ErrInvalidToken
	}
	return Claims{
		UserID:    userID,
		Role:      tc.Role,
		TokenID:   tc.ID,
		IssuedAt:  tc.IssuedAt.Time,
		ExpiresAt: tc.ExpiresAt.Time,
	}, nil
}
