// Package broadcastsvc holds the subscribers presenting permission failures outside the process.
package broadcastsvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mystudenthub/backend/core"
)

// Reporter is the central subscriber of the broadcast bus: it logs every permission failure
// and counts it per operation and collection.
type Reporter struct {
	logger core.Logger
	denied *prometheus.CounterVec
}

func NewReporter(logger core.Logger, reg prometheus.Registerer) (*Reporter, error) {
	denied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mystudenthub",
		Name:      "permission_denied_total",
		Help:      "Document operations denied by the access policy.",
	}, []string{"operation", "collection"})
	if err := reg.Register(denied); err != nil {
		return nil, err
	}
	return &Reporter{logger: logger, denied: denied}, nil
}

// Handle matches broadcast.Handler.
func (r *Reporter) Handle(_ context.Context, ev *core.PermissionError) {
	r.denied.WithLabelValues(string(ev.Operation), collectionOf(ev.Path)).Inc()

	extra := map[string]interface{}{
		"path":      ev.Path,
		"operation": string(ev.Operation),
		"actorUid":  ev.ActorUID,
	}
	if ev.RequestResourceData != nil {
		extra["requestResourceData"] = ev.RequestResourceData
	}
	r.logger.Warn(fmt.Sprintf("permission denied: %s %s", ev.Operation, ev.Path), ev, extra)
}

func collectionOf(path string) string {
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}
