package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wearlab/motion-relay-service/internal/hub"
	"github.com/wearlab/motion-relay-service/internal/metrics"
	"github.com/wearlab/motion-relay-service/internal/packet"
	"github.com/wearlab/motion-relay-service/internal/store"
)

// memStore is an in-memory Store recording appended packets.
type memStore struct {
	mu      sync.Mutex
	packets []packet.Packet
	failErr error
}

func (m *memStore) Append(ctx context.Context, p packet.Packet) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return 0, &store.StorageError{Op: "append", Err: m.failErr}
	}
	m.packets = append(m.packets, p)
	return int64(len(m.packets)), nil
}

func (m *memStore) Recent(ctx context.Context, f store.Filter) ([]store.StoredPacket, error) {
	return nil, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.packets)
}

// recordingSubscriber collects broadcast packets.
type recordingSubscriber struct {
	mu       sync.Mutex
	received []packet.Packet
}

func (r *recordingSubscriber) Send(p packet.Packet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, p)
	return nil
}

func (r *recordingSubscriber) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.received)
}

func newTestService(st store.Store) (*Service, *hub.Hub) {
	m := metrics.New(prometheus.NewRegistry())
	h := hub.New(nil, m)
	return New(st, h, nil, m), h
}

func validPacket() packet.Packet {
	return packet.Packet{
		UserID:    "u001",
		SessionID: "s001",
		Label:     "strong_jab",
		TS:        1700000000000000,
		AX:        1.1, AY: -0.2, AZ: 9.8,
		GX: 0.01, GY: 0.02, GZ: -0.01,
	}
}

func TestIngestSuccess(t *testing.T) {
	st := &memStore{}
	svc, h := newTestService(st)
	sub := &recordingSubscriber{}
	h.Add(sub)

	id, err := svc.Ingest(context.Background(), validPacket())
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if id != 1 {
		t.Errorf("Expected id 1, got %d", id)
	}
	if st.count() != 1 {
		t.Errorf("Expected 1 stored packet, got %d", st.count())
	}
	if sub.count() != 1 {
		t.Errorf("Expected 1 delivered packet, got %d", sub.count())
	}
	if sub.received[0] != validPacket() {
		t.Errorf("Delivered packet differs from ingested: %+v", sub.received[0])
	}

	latest, ok := h.Latest()
	if !ok || latest.Label != "strong_jab" {
		t.Errorf("Expected latest cache updated, got %+v ok=%v", latest, ok)
	}
}

func TestIngestValidationFailure(t *testing.T) {
	st := &memStore{}
	svc, h := newTestService(st)
	sub := &recordingSubscriber{}
	h.Add(sub)

	p := validPacket()
	p.Label = ""

	_, err := svc.Ingest(context.Background(), p)
	if err == nil {
		t.Fatal("Expected validation error")
	}
	var verr *packet.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected *packet.ValidationError, got %T", err)
	}

	if st.count() != 0 {
		t.Errorf("Expected no stored packets, got %d", st.count())
	}
	if sub.count() != 0 {
		t.Errorf("Expected no broadcasts, got %d", sub.count())
	}
	if _, ok := h.Latest(); ok {
		t.Error("Expected latest cache untouched after validation failure")
	}
}

func TestIngestStorageFailure(t *testing.T) {
	st := &memStore{failErr: errors.New("disk full")}
	svc, h := newTestService(st)
	sub := &recordingSubscriber{}
	h.Add(sub)

	_, err := svc.Ingest(context.Background(), validPacket())
	if err == nil {
		t.Fatal("Expected storage error")
	}
	var serr *store.StorageError
	if !errors.As(err, &serr) {
		t.Fatalf("Expected *store.StorageError, got %T", err)
	}

	if sub.count() != 0 {
		t.Errorf("Expected no broadcasts after storage failure, got %d", sub.count())
	}
}

func TestIngestLatestTracksLastSuccess(t *testing.T) {
	st := &memStore{}
	svc, h := newTestService(st)

	for _, label := range []string{"jab", "cross", "uppercut"} {
		p := validPacket()
		p.Label = label
		if _, err := svc.Ingest(context.Background(), p); err != nil {
			t.Fatalf("Ingest failed: %v", err)
		}
	}

	latest, ok := h.Latest()
	if !ok || latest.Label != "uppercut" {
		t.Errorf("Expected latest to be the last ingested packet, got %+v", latest)
	}
}

func TestIngestConcurrent(t *testing.T) {
	st := &memStore{}
	svc, h := newTestService(st)
	sub := &recordingSubscriber{}
	h.Add(sub)

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Ingest(context.Background(), validPacket()); err != nil {
				t.Errorf("Ingest failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if st.count() != n {
		t.Errorf("Expected %d stored packets, got %d", n, st.count())
	}
	if sub.count() != n {
		t.Errorf("Expected %d deliveries, got %d", n, sub.count())
	}
}
