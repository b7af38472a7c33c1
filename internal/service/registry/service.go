package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blockpreventer/bridge/internal/model"
	"github.com/blockpreventer/bridge/internal/repository"
	"github.com/blockpreventer/bridge/pkg/errors"
	"github.com/blockpreventer/bridge/pkg/logger"
	"github.com/blockpreventer/bridge/pkg/security"
	"github.com/blockpreventer/bridge/pkg/validator"
)

// Service manages package and profile lifecycle: creation, configuration
// updates, and manual pause/resume. Send-time state transitions live in the
// queue and block-detection services.
type Service struct {
	packageRepo repository.PackageRepository
	profileRepo repository.ProfileRepository
	ledgerRepo  repository.LedgerRepository
	queueRepo   repository.QueueRepository
	encryptor   security.Encryptor
	validator   validator.Validator
	logger      *logger.Logger
}

func NewService(
	packageRepo repository.PackageRepository,
	profileRepo repository.ProfileRepository,
	ledgerRepo repository.LedgerRepository,
	queueRepo repository.QueueRepository,
	enc security.Encryptor,
	v validator.Validator,
	log *logger.Logger,
) *Service {
	return &Service{
		packageRepo: packageRepo,
		profileRepo: profileRepo,
		ledgerRepo:  ledgerRepo,
		queueRepo:   queueRepo,
		encryptor:   enc,
		validator:   v,
		logger:      log.WithComponent("registry"),
	}
}

// CreatePackage validates and persists a new package with its rate policy.
func (s *Service) CreatePackage(ctx context.Context, pkg *model.Package) error {
	applyPackageDefaults(pkg)
	if err := s.validator.Validate(pkg); err != nil {
		return errors.BadRequest(err.Error(), err)
	}
	if err := s.packageRepo.Create(ctx, pkg); err != nil {
		return errors.Internal(err)
	}
	s.logger.Info("package created", "package_id", pkg.ID.String(), "name", pkg.Name)
	return nil
}

func (s *Service) GetPackage(ctx context.Context, id uuid.UUID) (*model.Package, error) {
	pkg, err := s.packageRepo.Get(ctx, id)
	if err != nil {
		return nil, errors.NotFound("package", err)
	}
	return pkg, nil
}

func (s *Service) ListPackages(ctx context.Context) ([]*model.Package, error) {
	return s.packageRepo.List(ctx)
}

func (s *Service) UpdatePackage(ctx context.Context, pkg *model.Package) error {
	if err := s.validator.Validate(pkg); err != nil {
		return errors.BadRequest(err.Error(), err)
	}
	if err := s.packageRepo.Update(ctx, pkg); err != nil {
		return errors.Internal(err)
	}
	return nil
}

// CreateProfile encrypts the provider credentials, persists the profile and
// seeds its ledger row.
func (s *Service) CreateProfile(ctx context.Context, profile *model.Profile) error {
	if _, err := s.packageRepo.Get(ctx, profile.PackageID); err != nil {
		return errors.NotFound("package", err)
	}
	if profile.Status == "" {
		profile.Status = model.ProfileStatusActive
	}
	if err := s.validator.Validate(profile); err != nil {
		return errors.BadRequest(err.Error(), err)
	}

	var err error
	if profile.ProviderUUID, err = s.encryptor.EncryptString(profile.ProviderUUID); err != nil {
		return errors.Internal(fmt.Errorf("failed to encrypt provider uuid: %w", err))
	}
	if profile.ProviderToken, err = s.encryptor.EncryptString(profile.ProviderToken); err != nil {
		return errors.Internal(fmt.Errorf("failed to encrypt provider token: %w", err))
	}

	if err := s.profileRepo.Create(ctx, profile); err != nil {
		return errors.Internal(err)
	}
	if err := s.ledgerRepo.Ensure(ctx, profile.ID, time.Now()); err != nil {
		return errors.Internal(fmt.Errorf("failed to seed ledger: %w", err))
	}
	s.logger.Info("profile created", "profile_id", profile.ID.String(), "package_id", profile.PackageID.String())
	return nil
}

func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	profile, err := s.profileRepo.Get(ctx, id)
	if err != nil {
		return nil, errors.NotFound("profile", err)
	}
	return profile, nil
}

func (s *Service) ListProfiles(ctx context.Context, packageID uuid.UUID) ([]*model.Profile, error) {
	return s.profileRepo.ListByPackage(ctx, packageID)
}

// PauseProfile takes a profile out of rotation by operator request. Waiting
// queue items are cancelled the same way an auto-pause would.
func (s *Service) PauseProfile(ctx context.Context, id uuid.UUID, reason string, resumeAt *time.Time) error {
	if reason == "" {
		reason = "paused by operator"
	}
	moved, err := s.profileRepo.SetStatus(ctx, id, model.ProfileStatusActive, model.ProfileStatusPaused, &reason, resumeAt)
	if err != nil {
		return errors.Internal(err)
	}
	if !moved {
		return errors.Conflict("profile is not active", nil)
	}
	cancelled, err := s.queueRepo.CancelWaitingByProfile(ctx, id, "profile paused by operator")
	if err != nil {
		return errors.Internal(err)
	}
	s.logger.Info("profile paused", "profile_id", id.String(), "reason", reason, "cancelled_items", cancelled)
	return nil
}

// ResumeProfile puts a paused profile back into rotation immediately.
func (s *Service) ResumeProfile(ctx context.Context, id uuid.UUID) error {
	moved, err := s.profileRepo.SetStatus(ctx, id, model.ProfileStatusPaused, model.ProfileStatusActive, nil, nil)
	if err != nil {
		return errors.Internal(err)
	}
	if !moved {
		return errors.Conflict("profile is not paused", nil)
	}
	s.logger.Info("profile resumed", "profile_id", id.String())
	return nil
}

func applyPackageDefaults(pkg *model.Package) {
	if pkg.Status == "" {
		pkg.Status = model.PackageStatusActive
	}
	if pkg.DistributionMode == "" {
		pkg.DistributionMode = model.DistributionRoundRobin
	}
	if pkg.MaxConcurrentSends <= 0 {
		pkg.MaxConcurrentSends = 1
	}
	if pkg.FreezeDurationHours <= 0 {
		pkg.FreezeDurationHours = 2
	}
	if pkg.RushMultiplier <= 0 {
		pkg.RushMultiplier = 1.5
	}
	if pkg.QuietMultiplier <= 0 {
		pkg.QuietMultiplier = 0.7
	}
	if pkg.RushThreshold <= 0 {
		pkg.RushThreshold = 10
	}
	if pkg.QuietThreshold <= 0 {
		pkg.QuietThreshold = 5
	}
	if pkg.AutoPauseFailures <= 0 {
		pkg.AutoPauseFailures = 5
	}
	if pkg.AutoPauseSuccessRate <= 0 {
		pkg.AutoPauseSuccessRate = 50
	}
	if pkg.RetryMaxAttempts <= 0 {
		pkg.RetryMaxAttempts = 3
	}
	if pkg.RetryBaseDelaySec <= 0 {
		pkg.RetryBaseDelaySec = 5
	}
}
