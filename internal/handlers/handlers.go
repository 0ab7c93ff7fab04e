package handlers

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jikku/phishsim/internal/eventlog"
	"github.com/jikku/phishsim/internal/models"
)

// notifyTimeout bounds a background notification
const notifyTimeout = 10 * time.Second

// EventStore receives a copy of every recorded event
type EventStore interface {
	Record(ctx context.Context, ev models.Event) error
	Ping(ctx context.Context) error
}

// Notifier publishes recorded events to an operator channel
type Notifier interface {
	Notify(ctx context.Context, ev models.Event) error
}

// Deps wires the handlers. Opens, Credentials and RedirectURL are required;
// the rest is optional.
type Deps struct {
	Opens       eventlog.Sink
	Credentials eventlog.Sink
	RedirectURL string

	Store    EventStore
	Notifier Notifier
	Logger   *zap.Logger
	Now      func() time.Time
}

// Handlers serves the open tracker and the credential capture endpoints
type Handlers struct {
	opens       eventlog.Sink
	credentials eventlog.Sink
	redirectURL string
	store       EventStore
	notifier    Notifier
	logger      *zap.Logger
	now         func() time.Time
}

// New creates the handlers from deps
func New(deps Deps) *Handlers {
	h := &Handlers{
		opens:       deps.Opens,
		credentials: deps.Credentials,
		redirectURL: deps.RedirectURL,
		store:       deps.Store,
		notifier:    deps.Notifier,
		logger:      deps.Logger,
		now:         deps.Now,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// record appends ev to sink and fans it out to the mirror and notifier.
// Every failure stops here: callers respond the same way whatever happens.
func (h *Handlers) record(ctx context.Context, sink eventlog.Sink, ev models.Event) {
	if err := sink.Append(ev.Line()); err != nil {
		h.logger.Warn("event append failed",
			zap.String("kind", string(ev.Kind)),
			zap.String("source_ip", ev.SourceIP),
			zap.Error(err),
		)
	}

	// The client may hang up after the response; the record should still land
	ctx = context.WithoutCancel(ctx)

	if h.store != nil {
		if err := h.store.Record(ctx, ev); err != nil {
			h.logger.Warn("event mirror failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
		}
	}

	if h.notifier != nil {
		go func() {
			nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
			defer cancel()
			if err := h.notifier.Notify(nctx, ev); err != nil {
				h.logger.Warn("notification failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
			}
		}()
	}
}

// sourceIP returns the peer address of the request without the port, or
// RemoteAddr unchanged when it carries no port
func sourceIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
