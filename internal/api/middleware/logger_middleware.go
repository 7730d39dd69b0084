package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/api"
	"github.com/RoyceAzure/lab/storefront/internal/apperror"
	"github.com/RoyceAzure/lab/storefront/internal/util"
	"github.com/rs/zerolog"
)

type StatusRecoder struct {
	http.ResponseWriter
	status int
}

func (w *StatusRecoder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *StatusRecoder) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// 記錄request 請求
// 有一起處理recover
func LoggerMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recoder := &StatusRecoder{ResponseWriter: w}
			start := time.Now()

			defer func() {
				memberID, _ := util.MemberIDFromContext(r.Context())
				event := logger.Info()

				if rec := recover(); rec != nil {
					var errMsg string
					if e, ok := rec.(error); ok {
						errMsg = e.Error()
					} else {
						errMsg = fmt.Sprintf("%v", rec)
					}
					event = logger.Error().Str("error", errMsg).Bytes("stack", debug.Stack())
					if recoder.status == 0 {
						api.WriteError(recoder, apperror.Internal(fmt.Errorf("panic: %s", errMsg)))
					}
				}

				event.
					Str("request_id", util.RequestIDFromContext(r.Context())).
					Int64("member_id", memberID).
					Str("method", r.Method).
					Str("url", r.URL.String()).
					Int("status", recoder.Status()).
					Dur("latency", time.Since(start)).
					Msg("request completed")
			}()

			next.ServeHTTP(recoder, r)
		})
	}
}
