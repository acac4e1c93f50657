// Package reporting forwards handler failures to Sentry. Without a DSN every call is a no-op.
package reporting

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

// Options configures the Sentry client
type Options struct {
	DSN         string
	Environment string
	Release     string
}

// Init sets up the global Sentry client. Failures are logged, never fatal.
func Init(opts Options, logger *zap.Logger) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         opts.DSN,
		Environment: opts.Environment,
		Release:     opts.Release,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			event.User = sentry.User{}
			return event
		},
	})
	if err != nil {
		logger.Warn("Sentry init failed", zap.Error(err))
		return
	}
	if opts.DSN == "" {
		logger.Info("SENTRY_DSN not set, error tracking disabled")
	} else {
		logger.Info("Sentry initialized", zap.String("environment", opts.Environment))
	}
}

// Flush waits for buffered events to be delivered
func Flush() { sentry.Flush(2 * time.Second) }

// CaptureError reports err with the given tags
func CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// CapturePanic reports a recovered panic value with the given tags
func CapturePanic(recovered any, tags map[string]string) {
	if recovered == nil {
		return
	}
	err, ok := recovered.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", recovered)
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelFatal)
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}
