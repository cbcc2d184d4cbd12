package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-mgmt-api/internal/models"
)

type memoryAuditRepo struct {
	mu       sync.Mutex
	saved    []*models.AuditLog
	failures int
	release  chan struct{}
}

func (m *memoryAuditRepo) Create(ctx context.Context, log *models.AuditLog) error {
	if m.release != nil {
		<-m.release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errors.New("audit table locked")
	}
	m.saved = append(m.saved, log)
	return nil
}

func (m *memoryAuditRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func TestAuditDispatcherPersistsWithRetry(t *testing.T) {
	repo := &memoryAuditRepo{failures: 1}
	metrics := NewMetricsService()
	d := NewAuditDispatcher(repo, metrics, nil, AuditConfig{Workers: 1, MaxRetries: 2, RetryDelay: time.Millisecond})
	d.Start(context.Background())
	defer d.Stop()

	d.Record(context.Background(), &models.AuditLog{Action: models.AuditActionPromote, Resource: "promotions"})

	require.Eventually(t, func() bool { return repo.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	saved := repo.saved[0]
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())
	assert.Equal(t, uint64(1), metrics.Snapshot().AuditQueued)
}

func TestAuditDispatcherFlushesOnStop(t *testing.T) {
	repo := &memoryAuditRepo{release: make(chan struct{})}
	d := NewAuditDispatcher(repo, nil, nil, AuditConfig{Workers: 1, BufferSize: 16, DrainTimeout: 2 * time.Second})
	d.Start(context.Background())

	for i := 0; i < 4; i++ {
		d.Record(context.Background(), &models.AuditLog{Action: models.AuditActionSync, Resource: "sync"})
	}
	close(repo.release)
	d.Stop()

	assert.Equal(t, 4, repo.count())
}

func TestAuditDispatcherDropsWhenFull(t *testing.T) {
	repo := &memoryAuditRepo{release: make(chan struct{})}
	metrics := NewMetricsService()
	d := NewAuditDispatcher(repo, metrics, nil, AuditConfig{Workers: 1, BufferSize: 1})
	d.Start(context.Background())
	defer func() {
		close(repo.release)
		d.Stop()
	}()

	for i := 0; i < 5; i++ {
		d.Record(context.Background(), &models.AuditLog{Action: models.AuditActionLogin, Resource: "auth"})
	}
	snap := metrics.Snapshot()
	assert.Equal(t, uint64(5), snap.AuditQueued+snap.AuditDropped)
	assert.GreaterOrEqual(t, snap.AuditDropped, uint64(3))
}
