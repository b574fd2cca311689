package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
	StaffIDKey   contextKey = "staff_id"
	CenterIDKey  contextKey = "center_id"
)

// Claims are the console token claims. StaffID links the user to the staff
// directory; CenterID scopes reports for center-level users.
type Claims struct {
	jwt.RegisteredClaims
	Roles    []string `json:"roles"`
	StaffID  string   `json:"staff_id,omitempty"`
	CenterID string   `json:"center_id,omitempty"`
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey switches to HS256 validation. Meant for development and
	// tests.
	SigningKey []byte
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256", "HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	var jwks *JWKSCache
	if len(cfg.SigningKey) == 0 {
		jwks = NewJWKSCache(cfg.JWKSURL, defaultJWKSCacheTTL)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, err := bearerToken(c.Request())
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}

			keyFunc := func(t *jwt.Token) (interface{}, error) {
				if jwks == nil {
					return cfg.SigningKey, nil
				}
				kid, _ := t.Header["kid"].(string)
				if kid == "" {
					return nil, fmt.Errorf("token has no kid header")
				}
				return jwks.Key(c.Request().Context(), kid)
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, keyFunc, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			setIdentity(c, claims.Subject, claims.Roles, claims.StaffID, claims.CenterID)
			return next(c)
		}
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		// Browsers cannot set headers on a websocket handshake.
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			if tok := strings.TrimSpace(r.URL.Query().Get("access_token")); tok != "" {
				return tok, nil
			}
		}
		return "", fmt.Errorf("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("invalid authorization format")
	}
	return strings.TrimSpace(parts[1]), nil
}

// DevAuthMiddleware authenticates every request as a development admin. The
// X-Dev-Role and X-Dev-Staff-ID headers impersonate other console users.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := c.Request().Header.Get("X-Dev-Role")
			if role == "" {
				role = RoleAdmin
			}
			staffID := c.Request().Header.Get("X-Dev-Staff-ID")
			setIdentity(c, "dev-user", []string{role}, staffID, "")
			return next(c)
		}
	}
}

func setIdentity(c echo.Context, userID string, roles []string, staffID, centerID string) {
	c.Set("user_id", userID)
	ctx := c.Request().Context()
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, UserRolesKey, roles)
	ctx = context.WithValue(ctx, StaffIDKey, staffID)
	ctx = context.WithValue(ctx, CenterIDKey, centerID)
	c.SetRequest(c.Request().WithContext(ctx))
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}

func StaffIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(StaffIDKey).(string)
	return id
}

func CenterIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(CenterIDKey).(string)
	return id
}
