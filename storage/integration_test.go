//go:build integration

package storage_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/visionvansh/clipifypost-sub001/models"
	"github.com/visionvansh/clipifypost-sub001/services"
	"github.com/visionvansh/clipifypost-sub001/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func startPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "clipify",
				"POSTGRES_PASSWORD": "clipify",
				"POSTGRES_DB":       "clipify",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=clipify password=clipify dbname=clipify sslmode=disable", host, port.Port())
	db, err := storage.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, storage.Migrate(db))
	require.NoError(t, storage.Ping(db))
	return db
}

func TestPostgresConcurrentPaymentsNeverExceedPayout(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	invites := services.NewInviteService(db, zap.NewNop())

	require.NoError(t, db.Create(&models.Student{ID: "alice", Username: "alice", SignedUpToWebsite: true}).Error)
	require.NoError(t, db.Create(&models.Student{ID: "bob", Username: "bob", SignedUpToWebsite: true}).Error)
	_, err := invites.CreateInvite(ctx, "alice", "bob", "bob")
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Invite{}).Where("invited_id = ?", "bob").
		Update("status", models.InviteApproved).Error)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = invites.RecordPayment(ctx, "admin", "alice", "2024-05", decimal.RequireFromString("0.5"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, services.ErrInvariant), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	sum, err := invites.Summary(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, sum.Paid.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, sum.Remaining.IsZero())
}

func TestPostgresConcurrentInvitesStayUnique(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	invites := services.NewInviteService(db, zap.NewNop())

	require.NoError(t, db.Create(&models.Student{ID: "alice", Username: "alice"}).Error)
	require.NoError(t, db.Create(&models.Student{ID: "bob", Username: "bob"}).Error)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := invites.CreateInvite(ctx, "alice", "bob", "bob")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var n int64
	require.NoError(t, db.Model(&models.Invite{}).Where("inviter_id = ?", "alice").Count(&n).Error)
	assert.EqualValues(t, 1, n)
}
