// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token authentication. Tokens are HMAC-signed
// JWTs carrying the caller's id (sub) and which side of the marketplace they
// act as (kind). The middleware resolves both into a domain.Identity and
// stashes it in the Gin context; handlers read it back via IdentityFrom.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/mdmonauwarulislam/jobpulse/internal/domain"
)

// Context keys used to stash the authenticated identity.
const (
	ctxKeyIdentity = "identity"
	ctxKeyUserID   = "userID"
)

// IdentityFrom returns the authenticated identity stored by Auth. The boolean
// is false when the request was not authenticated.
func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(ctxKeyIdentity)
	if !ok {
		return domain.Identity{}, false
	}
	id, ok := v.(domain.Identity)
	return id, ok && id.ID != ""
}

// Auth returns a Gin middleware that requires a valid Bearer token signed
// with the given secret (HS256). Expected claims:
//
//	sub  — the caller's id
//	kind — "applicant" (or legacy "user") | "employer"
//
// Requests without a valid token are rejected with 401 and the standard
// error envelope.
func Auth(secret string) gin.HandlerFunc {
	keyFn := func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			unauthorized(c)
			return
		}

		claims := jwt.MapClaims{}
		tok, err := jwt.ParseWithClaims(raw, claims, keyFn,
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		)
		if err != nil || !tok.Valid {
			unauthorized(c)
			return
		}

		sub, _ := claims["sub"].(string)
		kindClaim, _ := claims["kind"].(string)
		kind, ok := participantKindFromClaim(kindClaim)
		if sub == "" || !ok {
			unauthorized(c)
			return
		}

		c.Set(ctxKeyIdentity, domain.Identity{ID: sub, Kind: kind})
		c.Set(ctxKeyUserID, sub)
		c.Next()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer x" header.
func bearerToken(h string) string {
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// participantKindFromClaim maps the token's kind claim to a participant side.
// Applicant-side tokens historically carry "user".
func participantKindFromClaim(s string) (domain.ParticipantKind, bool) {
	switch s {
	case "applicant", "user":
		return domain.ParticipantApplicant, true
	case "employer":
		return domain.ParticipantEmployer, true
	}
	return "", false
}

// unauthorized aborts the request with the standard 401 envelope.
func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   "unauthorized",
		"message": "missing or invalid credentials",
	})
}
