package release

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
	require.NoError(t, db.AutoMigrate(&models.Release{}, &models.CronJob{}))
	return db
}

func TestCreateMakesCronJobCompanion(t *testing.T) {
	db := openTestDB(t)
	svc := &releaseService{ctx: context.Background(), db: db}

	rel, err := svc.Create(&CreateRequest{
		TenantID:   uuid.New(),
		Type:       models.ReleaseTypePlanned,
		Branch:     "release/1.0.0",
		BaseBranch: "main",
		KickOffAt:  time.Now().UTC().Add(time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, models.ReleaseStatusCreated, rel.Status)

	var job models.CronJob
	require.NoError(t, db.First(&job, "release_id = ?", rel.ID).Error)
	require.Equal(t, models.CronStatusPending, job.CronStatus)
	require.Equal(t, models.StageStatusPending, job.Stage1Status)
	require.Equal(t, 120, job.LockTimeoutSeconds)
}

func TestGetScopedEnforcesTenant(t *testing.T) {
	db := openTestDB(t)
	svc := &releaseService{ctx: context.Background(), db: db}

	tenantID := uuid.New()
	rel, err := svc.Create(&CreateRequest{
		TenantID:  tenantID,
		Type:      models.ReleaseTypeHotfix,
		Branch:    "hotfix/1.0.1",
		KickOffAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	got, err := svc.GetScoped(tenantID, rel.ID)
	require.NoError(t, err)
	require.Equal(t, rel.ID, got.ID)

	_, err = svc.GetScoped(uuid.New(), rel.ID)
	require.ErrorIs(t, err, ErrTenantMismatch)
}

func TestListFilters(t *testing.T) {
	db := openTestDB(t)
	svc := &releaseService{ctx: context.Background(), db: db}

	tenantID := uuid.New()
	for i := 0; i < 3; i++ {
		_, err := svc.Create(&CreateRequest{
			TenantID:  tenantID,
			Type:      models.ReleaseTypePlanned,
			Branch:    "release/1.0.0",
			KickOffAt: time.Now().UTC(),
		})
		require.NoError(t, err)
	}
	_, err := svc.Create(&CreateRequest{
		TenantID:  uuid.New(),
		Type:      models.ReleaseTypePlanned,
		Branch:    "release/9.9.9",
		KickOffAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	releases, err := svc.List(&ListRequest{TenantID: tenantID})
	require.NoError(t, err)
	require.Len(t, releases, 3)

	releases, err = svc.List(&ListRequest{TenantID: tenantID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, releases, 2)

	releases, err = svc.List(&ListRequest{Status: models.ReleaseStatusShipped})
	require.NoError(t, err)
	require.Empty(t, releases)
}
