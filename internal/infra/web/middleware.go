package web

import (
	"context"
	"math/rand"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"ai-credits-billing/internal/infra/logging"
	"ai-credits-billing/internal/usecase"
)

type principalCtxKey struct{}

// principalFrom returns the authenticated principal stored by authMiddleware.
func principalFrom(ctx context.Context) *usecase.Principal {
	p, _ := ctx.Value(principalCtxKey{}).(*usecase.Principal)
	return p
}

// authMiddleware resolves the bearer token into a Principal. Requests
// without a valid token are rejected before the handler runs.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		p := &usecase.Principal{UserID: claims.Subject, Email: claims.Email}
		ctx := context.WithValue(r.Context(), principalCtxKey{}, p)
		ctx = logging.WithUserID(ctx, p.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestIDMiddleware tags every request with a ULID for log correlation.
func requestIDMiddleware(next http.Handler) http.Handler {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// logMiddleware emits one structured line per request.
func logMiddleware(base *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logging.With(r.Context(), base).Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("request handled")
		})
	}
}
