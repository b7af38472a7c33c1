package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/blockpreventer/bridge/internal/model"
)

// All repository interfaces in one file
type (
	PackageRepository interface {
		Create(ctx context.Context, pkg *model.Package) error
		Get(ctx context.Context, id uuid.UUID) (*model.Package, error)
		Update(ctx context.Context, pkg *model.Package) error
		UpdateLimits(ctx context.Context, id uuid.UUID, hourly, threeHour, daily int) error
		List(ctx context.Context) ([]*model.Package, error)
		ListActive(ctx context.Context) ([]*model.Package, error)
	}

	ProfileRepository interface {
		Create(ctx context.Context, profile *model.Profile) error
		Get(ctx context.Context, id uuid.UUID) (*model.Profile, error)
		Update(ctx context.Context, profile *model.Profile) error
		ListByPackage(ctx context.Context, packageID uuid.UUID) ([]*model.Profile, error)
		ListByPackageAndStatus(ctx context.Context, packageID uuid.UUID, status model.ProfileStatus) ([]*model.Profile, error)

		// SetStatus is a compare-and-set: the transition only happens if the
		// profile still has the expected status. Returns false when the row
		// was already moved by a concurrent flow.
		SetStatus(ctx context.Context, id uuid.UUID, from, to model.ProfileStatus, reason *string, resumeAt *time.Time) (bool, error)
		SetScores(ctx context.Context, id uuid.UUID, health, risk int, weight float64) error
		TouchLastSend(ctx context.Context, id uuid.UUID, at time.Time) error
		MarkBlocked(ctx context.Context, id uuid.UUID, at time.Time) error
		ListDueForResume(ctx context.Context, now time.Time) ([]*model.Profile, error)
	}

	LedgerRepository interface {
		Get(ctx context.Context, profileID uuid.UUID) (*model.ProfileLedger, error)
		GetBatch(ctx context.Context, profileIDs []uuid.UUID) (map[uuid.UUID]*model.ProfileLedger, error)
		Ensure(ctx context.Context, profileID uuid.UUID, now time.Time) error

		// RecordOutcome applies a completed send in one statement: counter
		// increments, success-rate refresh and the freshly computed cooldown
		// all land atomically so a concurrent health check never sees a
		// half-applied outcome.
		RecordOutcome(ctx context.Context, o *model.SendOutcome) error

		// SaveWindows persists the ledger after ApplyResets. Guarded on the
		// stored window markers so concurrent resets cannot double-zero.
		SaveWindows(ctx context.Context, l *model.ProfileLedger) error
		RecordReceived(ctx context.Context, profileID uuid.UUID) error
	}

	MessageRepository interface {
		Create(ctx context.Context, msg *model.Message) error
		Get(ctx context.Context, id uuid.UUID) (*model.Message, error)
		List(ctx context.Context, packageID uuid.UUID, status model.MessageStatus, limit, offset int) ([]*model.Message, error)
		SetStatus(ctx context.Context, id uuid.UUID, status model.MessageStatus) error
		// BumpCounts atomically increments processed/success/failed and marks
		// the message completed when every recipient is accounted for.
		BumpCounts(ctx context.Context, id uuid.UUID, success bool) error
		ListScheduledDue(ctx context.Context, now time.Time, limit int) ([]*model.Message, error)
	}

	QueueRepository interface {
		Create(ctx context.Context, item *model.QueueItem) error
		CreateBatch(ctx context.Context, items []*model.QueueItem) error
		Get(ctx context.Context, id uuid.UUID) (*model.QueueItem, error)
		ListDue(ctx context.Context, now time.Time, limit int) ([]*model.QueueItem, error)

		// MarkProcessing is a compare-and-set from waiting; false means the
		// item was taken (or cancelled) by someone else.
		MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error)
		MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
		Requeue(ctx context.Context, id uuid.UUID, at time.Time, reason string) error
		Cancel(ctx context.Context, id uuid.UUID, reason string) (bool, error)
		// CancelWaitingByProfile is the cascade-cancel used when a profile is
		// pulled from rotation. Returns how many items were cancelled.
		CancelWaitingByProfile(ctx context.Context, profileID uuid.UUID, reason string) (int64, error)

		CountWaitingByPackage(ctx context.Context, packageID uuid.UUID) (int, error)
		CountProcessingByPackage(ctx context.Context, packageID uuid.UUID) (int, error)
		PendingCountByProfile(ctx context.Context, profileIDs []uuid.UUID) (map[uuid.UUID]int, error)
		LastScheduledForProfile(ctx context.Context, profileID uuid.UUID) (*time.Time, error)
		LastScheduledForPackage(ctx context.Context, packageID uuid.UUID) (*time.Time, error)
		NextDueForPackage(ctx context.Context, packageID uuid.UUID) (*time.Time, error)
		ListByPackage(ctx context.Context, packageID uuid.UUID, status model.QueueStatus, limit int) ([]*model.QueueItem, error)
	}

	DeliveryRepository interface {
		Create(ctx context.Context, log *model.DeliveryLog) error
		Recent(ctx context.Context, profileID uuid.UUID, limit int) ([]*model.DeliveryLog, error)
		CountSince(ctx context.Context, profileID uuid.UUID, since time.Time) (total, failed int, err error)
		CountSentSince(ctx context.Context, profileID uuid.UUID, since time.Time) (int, error)
		RecentErrors(ctx context.Context, profileID uuid.UUID, since time.Time, limit int) ([]string, error)
		// MaxRecipientsPerMessage returns the largest number of distinct
		// recipients one message body reached through this profile since the
		// given time; feeds the duplicate-content risk pattern.
		MaxRecipientsPerMessage(ctx context.Context, profileID uuid.UUID, since time.Time) (int, error)
	}

	RouteRepository interface {
		Get(ctx context.Context, packageID uuid.UUID, customerAddress string) (*model.ConversationRoute, error)
		Upsert(ctx context.Context, route *model.ConversationRoute) error
	}

	AlertRepository interface {
		Create(ctx context.Context, alert *model.Alert) error
		ExistsSince(ctx context.Context, alertType model.AlertType, profileID *uuid.UUID, severity model.AlertSeverity, since time.Time) (bool, error)
		List(ctx context.Context, packageID *uuid.UUID, unreadOnly bool, limit int) ([]*model.Alert, error)
		MarkRead(ctx context.Context, id uuid.UUID) error
	}
)
