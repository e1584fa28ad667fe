package health

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/faucet/core/logger"
)

// Check reports whether one dependency is usable.
type Check func(context.Context) error

// DefaultTimeout bounds all checks of one readiness probe.
const DefaultTimeout = 5 * time.Second

// Readiness runs every check and answers "READY", or 503 when any check
// fails. Failure details are logged, never returned to the caller.
func Readiness(log *slog.Logger, checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), DefaultTimeout)
		defer cancel()

		errs := make([]error, 0, len(checks))
		for _, check := range checks {
			if err := check(ctx); err != nil {
				errs = append(errs, err)
			}
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := errors.Join(errs...); err != nil {
			if log != nil {
				log.ErrorContext(ctx, "readiness check failed", logger.Error(err))
			}
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(http.StatusText(http.StatusServiceUnavailable)))
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	}
}
