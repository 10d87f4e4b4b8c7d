package api

import (
	"context"
	"net/http"
)

// Authentication is an upstream concern: the auth gateway terminates the
// session and injects the identity headers. This middleware only lifts them
// into the request context.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	RoleAdmin = "ADMIN"
)

type contextKey string

const (
	userIDKey   contextKey = "userID"
	userRoleKey contextKey = "userRole"
)

func RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(HeaderUserID)
		if userID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"authentication required"}`))
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = context.WithValue(ctx, userRoleKey, r.Header.Get(HeaderUserRole))
		next(w, r.WithContext(ctx))
	}
}

func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func IsAdmin(ctx context.Context) bool {
	role, _ := ctx.Value(userRoleKey).(string)
	return role == RoleAdmin
}
