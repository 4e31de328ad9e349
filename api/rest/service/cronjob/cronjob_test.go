package cronjob

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shiplane/shiplane/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.CronJob{}))
	return db
}

func seedCronJob(t *testing.T, db *gorm.DB) *models.CronJob {
	t.Helper()
	job := &models.CronJob{
		ID:                 uuid.New(),
		ReleaseID:          uuid.New(),
		Stage1Status:       models.StageStatusPending,
		Stage2Status:       models.StageStatusPending,
		Stage3Status:       models.StageStatusPending,
		CronStatus:         models.CronStatusPending,
		LockTimeoutSeconds: 120,
	}
	require.NoError(t, db.Create(job).Error)
	return job
}

func TestAcquireLockWhenFree(t *testing.T) {
	db := openTestDB(t)
	svc := &cronJobService{ctx: context.Background(), db: db}
	job := seedCronJob(t, db)

	now := time.Now().UTC()
	acquired, err := svc.AcquireLock(job.ReleaseID, "node-a", now)
	require.NoError(t, err)
	require.True(t, acquired)

	stored, err := svc.GetByReleaseID(job.ReleaseID)
	require.NoError(t, err)
	require.Equal(t, "node-a", stored.LockedBy)
	require.NotNil(t, stored.LockedAt)
}

func TestAcquireLockContention(t *testing.T) {
	db := openTestDB(t)
	svc := &cronJobService{ctx: context.Background(), db: db}
	job := seedCronJob(t, db)

	now := time.Now().UTC()
	acquired, err := svc.AcquireLock(job.ReleaseID, "node-a", now)
	require.NoError(t, err)
	require.True(t, acquired)

	// A live foreign lease refuses a second holder.
	acquired, err = svc.AcquireLock(job.ReleaseID, "node-b", now.Add(time.Second))
	require.NoError(t, err)
	require.False(t, acquired)

	stored, err := svc.GetByReleaseID(job.ReleaseID)
	require.NoError(t, err)
	require.Equal(t, "node-a", stored.LockedBy)
}

func TestAcquireLockRenewsOwnLease(t *testing.T) {
	db := openTestDB(t)
	svc := &cronJobService{ctx: context.Background(), db: db}
	job := seedCronJob(t, db)

	first := time.Now().UTC()
	acquired, err := svc.AcquireLock(job.ReleaseID, "node-a", first)
	require.NoError(t, err)
	require.True(t, acquired)

	renewed := first.Add(10 * time.Second)
	acquired, err = svc.AcquireLock(job.ReleaseID, "node-a", renewed)
	require.NoError(t, err)
	require.True(t, acquired)

	stored, err := svc.GetByReleaseID(job.ReleaseID)
	require.NoError(t, err)
	require.Equal(t, "node-a", stored.LockedBy)
	require.WithinDuration(t, renewed, *stored.LockedAt, time.Second)
}

func TestAcquireLockAfterExpiry(t *testing.T) {
	db := openTestDB(t)
	svc := &cronJobService{ctx: context.Background(), db: db}
	job := seedCronJob(t, db)

	start := time.Now().UTC()
	acquired, err := svc.AcquireLock(job.ReleaseID, "node-a", start)
	require.NoError(t, err)
	require.True(t, acquired)

	// Past the timeout the lease is stealable.
	late := start.Add(121 * time.Second)
	acquired, err = svc.AcquireLock(job.ReleaseID, "node-b", late)
	require.NoError(t, err)
	require.True(t, acquired)

	stored, err := svc.GetByReleaseID(job.ReleaseID)
	require.NoError(t, err)
	require.Equal(t, "node-b", stored.LockedBy)
}

func TestReleaseLockOnlyByHolder(t *testing.T) {
	db := openTestDB(t)
	svc := &cronJobService{ctx: context.Background(), db: db}
	job := seedCronJob(t, db)

	now := time.Now().UTC()
	acquired, err := svc.AcquireLock(job.ReleaseID, "node-a", now)
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, svc.ReleaseLock(job.ReleaseID, "node-b"))
	stored, err := svc.GetByReleaseID(job.ReleaseID)
	require.NoError(t, err)
	require.Equal(t, "node-a", stored.LockedBy)

	require.NoError(t, svc.ReleaseLock(job.ReleaseID, "node-a"))
	stored, err = svc.GetByReleaseID(job.ReleaseID)
	require.NoError(t, err)
	require.Empty(t, stored.LockedBy)
}

func TestLockExpired(t *testing.T) {
	now := time.Now().UTC()
	locked := now.Add(-60 * time.Second)

	job := &models.CronJob{
		LockedBy:           "node-a",
		LockedAt:           &locked,
		LockTimeoutSeconds: 120,
	}
	require.False(t, job.LockExpired(now))

	stale := now.Add(-121 * time.Second)
	job.LockedAt = &stale
	require.True(t, job.LockExpired(now))

	require.True(t, (&models.CronJob{}).LockExpired(now))
}
