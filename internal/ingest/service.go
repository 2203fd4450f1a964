package ingest

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/wearlab/motion-relay-service/internal/hub"
	"github.com/wearlab/motion-relay-service/internal/metrics"
	"github.com/wearlab/motion-relay-service/internal/packet"
	"github.com/wearlab/motion-relay-service/internal/store"
)

// Service ties validation, persistence, and broadcast together. Distinct
// ingests may run concurrently; each one's persist-then-broadcast sequence
// is internally ordered, and the hub serializes registry access.
type Service struct {
	store   store.Store
	hub     *hub.Hub
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates an ingestion service.
func New(st store.Store, h *hub.Hub, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		store:   st,
		hub:     h,
		logger:  logger,
		metrics: m,
	}
}

// Ingest validates p, caches it as latest, appends it to the store, and
// broadcasts it to all observers. Returns the generated id on success.
// Validation failures return *packet.ValidationError; persistence failures
// return *store.StorageError and the packet is not broadcast.
func (s *Service) Ingest(ctx context.Context, p packet.Packet) (int64, error) {
	start := time.Now()

	if err := p.Validate(); err != nil {
		s.metrics.RecordValidationError()
		return 0, err
	}

	s.hub.SetLatest(p)

	id, err := s.store.Append(ctx, p)
	if err != nil {
		s.metrics.RecordStorageError()
		s.logger.Error("packet persistence failed",
			slog.String("session_id", p.SessionID),
			slog.String("label", p.Label),
			slog.String("error", err.Error()),
		)
		return 0, err
	}

	s.logger.Info("packet ingested",
		slog.String("session_id", p.SessionID),
		slog.String("label", p.Label),
		slog.Float64("ax", p.AX),
		slog.Float64("ay", p.AY),
		slog.Float64("az", p.AZ),
	)

	delivered := s.hub.Broadcast(p)
	s.metrics.RecordIngest(time.Since(start).Seconds())

	s.logger.Debug("packet broadcast",
		slog.Int64("id", id),
		slog.Int("delivered", delivered),
	)

	return id, nil
}
