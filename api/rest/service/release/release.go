package release

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shiplane/shiplane/internal/models"
	"github.com/shiplane/shiplane/pkg/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrTenantMismatch is returned when a caller addresses a release
// belonging to another tenant. Cross-tenant access is a hard error,
// never a silent filter.
var ErrTenantMismatch = errors.New("release does not belong to tenant")

type Release interface {
	List(*ListRequest) (models.Releases, error)
	Get(uuid.UUID) (*models.Release, error)
	GetScoped(tenantID, id uuid.UUID) (*models.Release, error)
	Create(*CreateRequest) (*models.Release, error)
	SetStatus(id uuid.UUID, status models.ReleaseStatus) error
}

type releaseService struct {
	ctx context.Context
	db  *gorm.DB
}

func Service(ctx context.Context) Release {
	return &releaseService{ctx: ctx, db: db.Connection()}
}

// WithDatabase returns a service bound to an explicit connection.
func WithDatabase(ctx context.Context, conn *gorm.DB) Release {
	return &releaseService{ctx: ctx, db: conn}
}

type ListRequest struct {
	TenantID uuid.UUID
	Status   models.ReleaseStatus
	Limit    int
}

func (r *releaseService) List(req *ListRequest) (models.Releases, error) {
	var (
		releases = make(models.Releases, 0)
		q        = r.db.WithContext(r.ctx)
	)

	if req.TenantID != uuid.Nil {
		q = q.Where("tenant_id = ?", req.TenantID)
	}
	if req.Status != "" {
		q = q.Where("status = ?", req.Status)
	}
	if req.Limit > 0 {
		q = q.Limit(req.Limit)
	}

	return releases, q.Order("created_at DESC").Find(&releases).Error
}

func (r *releaseService) Get(id uuid.UUID) (*models.Release, error) {
	release := &models.Release{}
	return release, r.db.WithContext(r.ctx).First(release, "id = ?", id).Error
}

func (r *releaseService) GetScoped(tenantID, id uuid.UUID) (*models.Release, error) {
	release, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if release.TenantID != tenantID {
		return nil, ErrTenantMismatch
	}
	return release, nil
}

type CreateRequest struct {
	TenantID               uuid.UUID             `json:"tenant_id"`
	Type                   models.ReleaseType    `json:"type"`
	Branch                 string                `json:"branch"`
	BaseBranch             string                `json:"base_branch"`
	KickOffAt              time.Time             `json:"kick_off_at"`
	TargetReleaseAt        *time.Time            `json:"target_release_at,omitempty"`
	PlatformTargets        datatypes.JSON        `json:"platform_targets,omitempty"`
	Config                 map[string]interface{} `json:"config,omitempty"`
	LockTimeoutSeconds     int                   `json:"lock_timeout_seconds,omitempty"`
	AutoTransitionToStage3 bool                  `json:"auto_transition_to_stage3"`
}

// Create persists a release together with its cron job companion in
// one transaction; the pair must never exist separately.
func (r *releaseService) Create(req *CreateRequest) (*models.Release, error) {
	release := &models.Release{
		ID:              uuid.New(),
		TenantID:        req.TenantID,
		Type:            req.Type,
		Status:          models.ReleaseStatusCreated,
		Branch:          req.Branch,
		BaseBranch:      req.BaseBranch,
		KickOffAt:       req.KickOffAt,
		TargetReleaseAt: req.TargetReleaseAt,
		PlatformTargets: req.PlatformTargets,
	}

	lockTimeout := req.LockTimeoutSeconds
	if lockTimeout <= 0 {
		lockTimeout = 120
	}

	cronJob := &models.CronJob{
		ID:                     uuid.New(),
		ReleaseID:              release.ID,
		Stage1Status:           models.StageStatusPending,
		Stage2Status:           models.StageStatusPending,
		Stage3Status:           models.StageStatusPending,
		CronStatus:             models.CronStatusPending,
		Config:                 req.Config,
		LockTimeoutSeconds:     lockTimeout,
		AutoTransitionToStage3: req.AutoTransitionToStage3,
	}

	err := r.db.WithContext(r.ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(release).Error; err != nil {
			return err
		}
		return tx.Create(cronJob).Error
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create release")
	}

	return release, nil
}

func (r *releaseService) SetStatus(id uuid.UUID, status models.ReleaseStatus) error {
	return r.db.WithContext(r.ctx).
		Model(&models.Release{}).
		Where("id = ?", id).
		Update("status", status).Error
}
