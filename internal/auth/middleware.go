package auth

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const callerKey ctxKey = "caller"

func CallerFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(callerKey)
	c, ok := v.(string)
	return c, ok
}

func RequireServiceToken(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if h == "" || !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			token := strings.TrimPrefix(h, "Bearer ")

			caller, err := svc.Verify(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), callerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
