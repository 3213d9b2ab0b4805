package middleware

import (
	"context"
	"net/http"
	"strings"

	"paperlib-sync-server/pkg/jwt"
	"paperlib-sync-server/pkg/response"
)

type contextKey string

const (
	UserIDKey   contextKey = "userID"
	ClientIDKey contextKey = "clientID"
)

// ClientIDHeader carries the calling client's tag on REST writes.
const ClientIDHeader = "X-Client-ID"

const maxClientIDLength = 100

// AuthMiddleware accepts access tokens only and puts the user id and the
// client tag on the request context.
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "Missing authorization header")
				return
			}

			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				response.Unauthorized(w, "Invalid authorization header format")
				return
			}

			claims, err := jwt.ValidateToken(token, jwtSecret)
			if err != nil || claims.TokenType == "refresh" {
				response.Unauthorized(w, "Invalid or expired token")
				return
			}

			clientID := strings.TrimSpace(r.Header.Get(ClientIDHeader))
			if len(clientID) > maxClientIDLength {
				response.BadRequest(w, "X-Client-ID too long")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, ClientIDKey, clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(r *http.Request) string {
	userID, ok := r.Context().Value(UserIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

// GetClientID returns the client tag set by AuthMiddleware, falling back
// to the raw header on routes mounted without it.
func GetClientID(r *http.Request) string {
	if clientID, ok := r.Context().Value(ClientIDKey).(string); ok {
		return clientID
	}
	return strings.TrimSpace(r.Header.Get(ClientIDHeader))
}
