// Package fake provides in-memory repository doubles for service tests.
// State is seeded and inspected directly; only the behavior the services
// depend on is modeled.
package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blockpreventer/bridge/internal/model"
)

type PackageRepo struct {
	mu           sync.Mutex
	Packages     map[uuid.UUID]*model.Package
	LimitUpdates int
}

func NewPackageRepo() *PackageRepo {
	return &PackageRepo{Packages: make(map[uuid.UUID]*model.Package)}
}

func (f *PackageRepo) Create(_ context.Context, pkg *model.Package) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pkg.ID == uuid.Nil {
		pkg.ID = uuid.New()
	}
	f.Packages[pkg.ID] = pkg
	return nil
}

func (f *PackageRepo) Get(_ context.Context, id uuid.UUID) (*model.Package, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pkg, ok := f.Packages[id]
	if !ok {
		return nil, fmt.Errorf("package %s not found", id)
	}
	return pkg, nil
}

func (f *PackageRepo) Update(_ context.Context, pkg *model.Package) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Packages[pkg.ID] = pkg
	return nil
}

func (f *PackageRepo) UpdateLimits(_ context.Context, id uuid.UUID, hourly, threeHour, daily int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pkg, ok := f.Packages[id]
	if !ok {
		return fmt.Errorf("package %s not found", id)
	}
	pkg.MaxPerHour = hourly
	pkg.MaxPer3Hours = threeHour
	pkg.MaxPerDay = daily
	f.LimitUpdates++
	return nil
}

func (f *PackageRepo) List(_ context.Context) ([]*model.Package, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.Package, 0, len(f.Packages))
	for _, pkg := range f.Packages {
		out = append(out, pkg)
	}
	return out, nil
}

func (f *PackageRepo) ListActive(ctx context.Context) ([]*model.Package, error) {
	all, _ := f.List(ctx)
	var out []*model.Package
	for _, pkg := range all {
		if pkg.Status == model.PackageStatusActive {
			out = append(out, pkg)
		}
	}
	return out, nil
}

type ProfileRepo struct {
	mu       sync.Mutex
	Profiles map[uuid.UUID]*model.Profile
}

func NewProfileRepo() *ProfileRepo {
	return &ProfileRepo{Profiles: make(map[uuid.UUID]*model.Profile)}
}

func (f *ProfileRepo) Create(_ context.Context, p *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.Profiles[p.ID] = p
	return nil
}

func (f *ProfileRepo) Get(_ context.Context, id uuid.UUID) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s not found", id)
	}
	return p, nil
}

func (f *ProfileRepo) Update(_ context.Context, p *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Profiles[p.ID] = p
	return nil
}

func (f *ProfileRepo) ListByPackage(_ context.Context, packageID uuid.UUID) ([]*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Profile
	for _, p := range f.Profiles {
		if p.PackageID == packageID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *ProfileRepo) ListByPackageAndStatus(_ context.Context, packageID uuid.UUID, status model.ProfileStatus) ([]*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Profile
	for _, p := range f.Profiles {
		if p.PackageID == packageID && p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *ProfileRepo) SetStatus(_ context.Context, id uuid.UUID, from, to model.ProfileStatus, reason *string, resumeAt *time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Profiles[id]
	if !ok {
		return false, fmt.Errorf("profile %s not found", id)
	}
	if p.Status != from {
		return false, nil
	}
	p.Status = to
	p.PauseReason = reason
	p.ResumeAt = resumeAt
	return true, nil
}

func (f *ProfileRepo) SetScores(_ context.Context, id uuid.UUID, health, risk int, weight float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Profiles[id]; ok {
		p.HealthScore = health
		p.RiskScore = risk
		p.WeightScore = weight
	}
	return nil
}

func (f *ProfileRepo) TouchLastSend(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Profiles[id]; ok {
		p.LastSendAt = &at
	}
	return nil
}

func (f *ProfileRepo) MarkBlocked(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Profiles[id]; ok {
		p.LastBlockAt = &at
	}
	return nil
}

func (f *ProfileRepo) ListDueForResume(_ context.Context, now time.Time) ([]*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Profile
	for _, p := range f.Profiles {
		if p.Status == model.ProfileStatusPaused && p.ResumeAt != nil && !p.ResumeAt.After(now) {
			out = append(out, p)
		}
	}
	return out, nil
}

type LedgerRepo struct {
	mu       sync.Mutex
	Ledgers  map[uuid.UUID]*model.ProfileLedger
	Outcomes []*model.SendOutcome
	Received map[uuid.UUID]int
}

func NewLedgerRepo() *LedgerRepo {
	return &LedgerRepo{
		Ledgers:  make(map[uuid.UUID]*model.ProfileLedger),
		Received: make(map[uuid.UUID]int),
	}
}

func (f *LedgerRepo) get(profileID uuid.UUID) *model.ProfileLedger {
	l, ok := f.Ledgers[profileID]
	if !ok {
		now := time.Now()
		l = &model.ProfileLedger{
			ProfileID:      profileID,
			SuccessRate24h: 100,
			HourResetAt:    now,
			Hour3ResetAt:   now,
			DayResetAt:     now,
		}
		f.Ledgers[profileID] = l
	}
	return l
}

func (f *LedgerRepo) Get(_ context.Context, profileID uuid.UUID) (*model.ProfileLedger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.get(profileID), nil
}

func (f *LedgerRepo) GetBatch(_ context.Context, profileIDs []uuid.UUID) (map[uuid.UUID]*model.ProfileLedger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID]*model.ProfileLedger, len(profileIDs))
	for _, id := range profileIDs {
		out[id] = f.get(id)
	}
	return out, nil
}

func (f *LedgerRepo) Ensure(_ context.Context, profileID uuid.UUID, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.get(profileID)
	return nil
}

func (f *LedgerRepo) RecordOutcome(_ context.Context, o *model.SendOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Outcomes = append(f.Outcomes, o)
	l := f.get(o.ProfileID)
	if o.Success {
		l.SentTotal++
		l.SentHour++
		l.Sent3Hours++
		l.SentDay++
	} else {
		l.FailedHour++
		l.FailedDay++
	}
	l.CooldownSeconds = o.CooldownSeconds
	l.CooldownMode = o.CooldownMode
	expires := o.CooldownExpiresAt
	l.CooldownExpiresAt = &expires
	return nil
}

func (f *LedgerRepo) SaveWindows(_ context.Context, l *model.ProfileLedger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ledgers[l.ProfileID] = l
	return nil
}

func (f *LedgerRepo) RecordReceived(_ context.Context, profileID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Received[profileID]++
	f.get(profileID).ReceivedDay++
	return nil
}

type MessageRepo struct {
	mu       sync.Mutex
	Messages map[uuid.UUID]*model.Message
	Statuses map[uuid.UUID]model.MessageStatus
	Bumps    int
}

func NewMessageRepo() *MessageRepo {
	return &MessageRepo{
		Messages: make(map[uuid.UUID]*model.Message),
		Statuses: make(map[uuid.UUID]model.MessageStatus),
	}
}

func (f *MessageRepo) Create(_ context.Context, msg *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	f.Messages[msg.ID] = msg
	return nil
}

func (f *MessageRepo) Get(_ context.Context, id uuid.UUID) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.Messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s not found", id)
	}
	return msg, nil
}

func (f *MessageRepo) List(_ context.Context, _ uuid.UUID, _ model.MessageStatus, _, _ int) ([]*model.Message, error) {
	return nil, nil
}

func (f *MessageRepo) SetStatus(_ context.Context, id uuid.UUID, status model.MessageStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Statuses[id] = status
	if msg, ok := f.Messages[id]; ok {
		msg.Status = status
	}
	return nil
}

func (f *MessageRepo) BumpCounts(_ context.Context, _ uuid.UUID, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Bumps++
	return nil
}

func (f *MessageRepo) ListScheduledDue(_ context.Context, _ time.Time, _ int) ([]*model.Message, error) {
	return nil, nil
}

type QueueRepo struct {
	mu           sync.Mutex
	Items        map[uuid.UUID]*model.QueueItem
	Created      []*model.QueueItem
	CascadeCalls int
}

func NewQueueRepo() *QueueRepo {
	return &QueueRepo{Items: make(map[uuid.UUID]*model.QueueItem)}
}

func (f *QueueRepo) Create(_ context.Context, item *model.QueueItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	f.Items[item.ID] = item
	f.Created = append(f.Created, item)
	return nil
}

func (f *QueueRepo) CreateBatch(ctx context.Context, items []*model.QueueItem) error {
	for _, item := range items {
		if err := f.Create(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (f *QueueRepo) Get(_ context.Context, id uuid.UUID) (*model.QueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.Items[id]
	if !ok {
		return nil, fmt.Errorf("queue item %s not found", id)
	}
	return item, nil
}

func (f *QueueRepo) ListDue(_ context.Context, now time.Time, limit int) ([]*model.QueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.QueueItem
	for _, item := range f.Items {
		if item.Status == model.QueueStatusWaiting && !item.ScheduledSendAt.After(now) {
			// Copies, like rows scanned from the database; later status
			// writes go through the stored item.
			c := *item
			out = append(out, &c)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *QueueRepo) MarkProcessing(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.Items[id]
	if !ok || item.Status != model.QueueStatusWaiting {
		return false, nil
	}
	item.Status = model.QueueStatusProcessing
	item.AttemptCount++
	return true, nil
}

func (f *QueueRepo) MarkSent(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item, ok := f.Items[id]; ok {
		item.Status = model.QueueStatusSent
		item.SentAt = &at
	}
	return nil
}

func (f *QueueRepo) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item, ok := f.Items[id]; ok {
		item.Status = model.QueueStatusFailed
		item.LastError = &reason
	}
	return nil
}

func (f *QueueRepo) Requeue(_ context.Context, id uuid.UUID, at time.Time, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item, ok := f.Items[id]; ok {
		item.Status = model.QueueStatusWaiting
		item.ScheduledSendAt = at
		item.LastError = &reason
	}
	return nil
}

func (f *QueueRepo) Cancel(_ context.Context, id uuid.UUID, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.Items[id]
	if !ok || item.Status.Terminal() {
		return false, nil
	}
	item.Status = model.QueueStatusCancelled
	item.LastError = &reason
	return true, nil
}

func (f *QueueRepo) CancelWaitingByProfile(_ context.Context, profileID uuid.UUID, reason string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CascadeCalls++
	var n int64
	for _, item := range f.Items {
		if item.ProfileID == profileID && item.Status == model.QueueStatusWaiting {
			item.Status = model.QueueStatusCancelled
			item.LastError = &reason
			n++
		}
	}
	return n, nil
}

func (f *QueueRepo) CountWaitingByPackage(_ context.Context, _ uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, item := range f.Items {
		if item.Status == model.QueueStatusWaiting {
			n++
		}
	}
	return n, nil
}

func (f *QueueRepo) CountProcessingByPackage(_ context.Context, _ uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, item := range f.Items {
		if item.Status == model.QueueStatusProcessing {
			n++
		}
	}
	return n, nil
}

func (f *QueueRepo) PendingCountByProfile(_ context.Context, profileIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID]int, len(profileIDs))
	for _, item := range f.Items {
		if item.Status == model.QueueStatusWaiting || item.Status == model.QueueStatusProcessing {
			out[item.ProfileID]++
		}
	}
	return out, nil
}

func (f *QueueRepo) LastScheduledForProfile(_ context.Context, _ uuid.UUID) (*time.Time, error) {
	return nil, nil
}

func (f *QueueRepo) LastScheduledForPackage(_ context.Context, _ uuid.UUID) (*time.Time, error) {
	return nil, nil
}

func (f *QueueRepo) NextDueForPackage(_ context.Context, _ uuid.UUID) (*time.Time, error) {
	return nil, nil
}

func (f *QueueRepo) ListByPackage(_ context.Context, _ uuid.UUID, status model.QueueStatus, limit int) ([]*model.QueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.QueueItem
	for _, item := range f.Items {
		if item.Status == status {
			out = append(out, item)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type DeliveryRepo struct {
	mu   sync.Mutex
	Logs []*model.DeliveryLog
}

func NewDeliveryRepo() *DeliveryRepo {
	return &DeliveryRepo{}
}

func (f *DeliveryRepo) Create(_ context.Context, log *model.DeliveryLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	f.Logs = append(f.Logs, log)
	return nil
}

// Recent returns the newest logs first, like the SQL implementation.
func (f *DeliveryRepo) Recent(_ context.Context, profileID uuid.UUID, limit int) ([]*model.DeliveryLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.DeliveryLog
	for i := len(f.Logs) - 1; i >= 0 && len(out) < limit; i-- {
		if f.Logs[i].ProfileID == profileID {
			out = append(out, f.Logs[i])
		}
	}
	return out, nil
}

func (f *DeliveryRepo) CountSince(_ context.Context, profileID uuid.UUID, since time.Time) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total, failed := 0, 0
	for _, log := range f.Logs {
		if log.ProfileID == profileID && !log.CreatedAt.Before(since) {
			total++
			if log.Status == model.DeliveryStatusFailed {
				failed++
			}
		}
	}
	return total, failed, nil
}

func (f *DeliveryRepo) CountSentSince(_ context.Context, profileID uuid.UUID, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, log := range f.Logs {
		if log.ProfileID == profileID && log.Status == model.DeliveryStatusSent && !log.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *DeliveryRepo) RecentErrors(_ context.Context, profileID uuid.UUID, since time.Time, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for i := len(f.Logs) - 1; i >= 0 && len(out) < limit; i-- {
		log := f.Logs[i]
		if log.ProfileID == profileID && log.ErrorMessage != nil && !log.CreatedAt.Before(since) {
			out = append(out, *log.ErrorMessage)
		}
	}
	return out, nil
}

func (f *DeliveryRepo) MaxRecipientsPerMessage(_ context.Context, _ uuid.UUID, _ time.Time) (int, error) {
	return 0, nil
}

type RouteRepo struct {
	mu      sync.Mutex
	Routes  map[string]*model.ConversationRoute
	Upserts int
}

func NewRouteRepo() *RouteRepo {
	return &RouteRepo{Routes: make(map[string]*model.ConversationRoute)}
}

func routeKey(packageID uuid.UUID, customerAddress string) string {
	return packageID.String() + ":" + customerAddress
}

func (f *RouteRepo) Get(_ context.Context, packageID uuid.UUID, customerAddress string) (*model.ConversationRoute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Routes[routeKey(packageID, customerAddress)], nil
}

func (f *RouteRepo) Upsert(_ context.Context, route *model.ConversationRoute) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if route.ID == uuid.Nil {
		route.ID = uuid.New()
	}
	f.Routes[routeKey(route.PackageID, route.CustomerAddress)] = route
	f.Upserts++
	return nil
}

type AlertRepo struct {
	mu     sync.Mutex
	Alerts []*model.Alert
}

func NewAlertRepo() *AlertRepo {
	return &AlertRepo{}
}

func (f *AlertRepo) Create(_ context.Context, alert *model.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	f.Alerts = append(f.Alerts, alert)
	return nil
}

func (f *AlertRepo) ExistsSince(_ context.Context, alertType model.AlertType, profileID *uuid.UUID, severity model.AlertSeverity, since time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.Alerts {
		if a.Type != alertType || a.Severity != severity || a.CreatedAt.Before(since) {
			continue
		}
		if profileID == nil && a.ProfileID == nil {
			return true, nil
		}
		if profileID != nil && a.ProfileID != nil && *profileID == *a.ProfileID {
			return true, nil
		}
	}
	return false, nil
}

func (f *AlertRepo) List(_ context.Context, _ *uuid.UUID, _ bool, _ int) ([]*model.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Alerts, nil
}

func (f *AlertRepo) MarkRead(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.Alerts {
		if a.ID == id {
			a.IsRead = true
		}
	}
	return nil
}
