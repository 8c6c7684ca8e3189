package admin

import (
	"context"

	"github.com/asaidimu/go-restful/auth"
	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/core/persistence"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Watcher reacts to admin table events: deleted tokens are evicted from the
// cache and audits are counted.
type Watcher struct {
	store  *Store
	cache  interface{ Delete(ctx context.Context, key string) error }
	audits *prometheus.CounterVec
	logger *zap.Logger
	subs   []string
}

// Watch subscribes to the engine's token and audit events. reg receives the
// <namespace>_auth_audits_total counter; a nil reg skips metrics.
func (a *Admin) Watch(reg prometheus.Registerer, namespace string) (*Watcher, error) {
	w := &Watcher{store: a.Store, logger: a.logger}
	if a.opts.Cache != nil {
		w.cache = a.opts.Cache
	}
	if reg != nil {
		w.audits = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "audits_total",
			Help:      "Logins and logouts recorded in the audit table.",
		}, []string{"action"})
		if err := reg.Register(w.audits); err != nil {
			return nil, err
		}
	}

	tokens := a.Store.tokens
	audits := a.Store.audits
	w.subs = append(w.subs,
		tokens.RegisterSubscription(persistence.RegisterSubscriptionOptions{
			Event:    persistence.RecordDeleteSuccess,
			Label:    ptr("admin.token-eviction"),
			Callback: w.evict,
		}),
		audits.RegisterSubscription(persistence.RegisterSubscriptionOptions{
			Event:    persistence.RecordCreateSuccess,
			Label:    ptr("admin.audit-metrics"),
			Callback: w.count,
		}),
	)
	return w, nil
}

// Close removes the subscriptions.
func (w *Watcher) Close() {
	for _, id := range w.subs {
		w.store.Engine().Unsubscribe(id)
	}
	w.subs = nil
}

func (w *Watcher) evict(ctx context.Context, ev persistence.PersistenceEvent) error {
	if w.cache == nil {
		return nil
	}
	for _, row := range ev.Output {
		value := core.ToString(row["token"])
		if value == "" {
			continue
		}
		if err := w.cache.Delete(ctx, auth.TokenCacheKey(value)); err != nil {
			w.logger.Warn("Failed to evict deleted token", zap.Any("token_id", row["id"]), zap.Error(err))
		}
	}
	return nil
}

func (w *Watcher) count(_ context.Context, ev persistence.PersistenceEvent) error {
	for _, row := range ev.Output {
		action := core.ToString(row["action"])
		w.logger.Info("Audit recorded",
			zap.String("action", action),
			zap.String("username", core.ToString(row["username"])),
		)
		if w.audits != nil {
			w.audits.WithLabelValues(action).Inc()
		}
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
