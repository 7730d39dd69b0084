package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/RoyceAzure/lab/storefront/internal/api"
	"github.com/RoyceAzure/lab/storefront/internal/apperror"
	"github.com/RoyceAzure/lab/storefront/internal/constants"
	"github.com/RoyceAzure/lab/storefront/internal/util"
)

// AuthMiddleware 會員身分由上游 session 層驗證後放在 X-Member-ID
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(constants.MemberIDHeader))
		memberID, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || memberID <= 0 {
			api.WriteError(w, apperror.Unauthenticated())
			return
		}
		next.ServeHTTP(w, r.WithContext(util.WithMemberID(r.Context(), memberID)))
	})
}
