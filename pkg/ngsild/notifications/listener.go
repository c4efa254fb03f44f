// Package notifications runs an http endpoint that receives the
// notifications a context broker posts for matching subscriptions and
// hands the contained entities to a callback.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	ngsierrors "github.com/diwise/ngsild-client/pkg/ngsild/errors"
	"github.com/diwise/ngsild-client/pkg/ngsild/types/subscriptions"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/chi/v5"
	"github.com/riandyrn/otelchi"
	"github.com/rs/cors"
)

// NotificationReceiverFunc is invoked once per received notification.
// A returned error is reported back to the broker as an internal error.
type NotificationReceiverFunc func(ctx context.Context, notification *subscriptions.Notification) error

type Listener interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

type listener struct {
	server *http.Server
}

// NewListener creates a notification listener serving POST requests on
// the given path, "/notify" if empty.
func NewListener(serviceName, address, path string, receiver NotificationReceiverFunc) Listener {
	if path == "" {
		path = "/notify"
	}

	r := newRouter(serviceName)
	r.Post(path, NewNotificationHandler(receiver))

	return &listener{
		server: &http.Server{
			Addr:              address,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (l *listener) Start(ctx context.Context) error {
	logger := logging.GetFromContext(ctx)
	logger.Info("starting notification listener", "address", l.server.Addr)

	err := l.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("notification listener failed: %w", err)
	}

	return nil
}

func (l *listener) Shutdown(ctx context.Context) error {
	return l.server.Shutdown(ctx)
}

func newRouter(serviceName string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
		Debug:            false,
	}).Handler)

	r.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(r)))

	return r
}

// NewNotificationHandler parses incoming notification bodies and passes
// them on to the receiver, responding with a problem report on failure.
func NewNotificationHandler(receiver NotificationReceiverFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.GetFromContext(ctx)

		body, err := io.ReadAll(r.Body)
		defer r.Body.Close()

		if err != nil {
			ngsierrors.NewInvalidRequest("unable to read request body").WriteResponse(w)
			return
		}

		notification := &subscriptions.Notification{}
		if err = notification.UnmarshalJSON(body); err != nil {
			logger.Warn("received malformed notification", "err", err.Error())
			ngsierrors.NewBadRequestData(err.Error()).WriteResponse(w)
			return
		}

		if err = receiver(ctx, notification); err != nil {
			logger.Error("failed to process notification", "subscription", notification.SubscriptionId, "err", err.Error())
			ngsierrors.NewInternalError(err.Error()).WriteResponse(w)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}
