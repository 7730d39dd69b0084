package middleware

import (
	"net/http"
	"strconv"

	"github.com/RoyceAzure/lab/storefront/internal/api"
	"github.com/RoyceAzure/lab/storefront/internal/apperror"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/redis_repo"
	"github.com/RoyceAzure/lab/storefront/internal/util"
	"github.com/rs/zerolog"
)

// NewRateLimitMiddleware 每位會員各自一個 token bucket
// redis 無法使用時放行, 限流不影響結帳正確性
func NewRateLimitMiddleware(limiter redis_repo.IRateLimitRepository, scope string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":anonymous"
			if memberID, ok := util.MemberIDFromContext(r.Context()); ok {
				key = scope + ":" + strconv.FormatInt(memberID, 10)
			}

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable, request allowed")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				api.WriteError(w, apperror.TooManyRequests())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
