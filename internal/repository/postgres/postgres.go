package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/blockpreventer/bridge/internal/repository"
)

type packageRepository struct {
	db *sqlx.DB
}

type profileRepository struct {
	db *sqlx.DB
}

type ledgerRepository struct {
	db *sqlx.DB
}

type messageRepository struct {
	db *sqlx.DB
}

type queueRepository struct {
	db *sqlx.DB
}

type deliveryRepository struct {
	db *sqlx.DB
}

type routeRepository struct {
	db *sqlx.DB
}

type alertRepository struct {
	db *sqlx.DB
}

func NewPackageRepository(db *sqlx.DB) repository.PackageRepository {
	return &packageRepository{db: db}
}

func NewProfileRepository(db *sqlx.DB) repository.ProfileRepository {
	return &profileRepository{db: db}
}

func NewLedgerRepository(db *sqlx.DB) repository.LedgerRepository {
	return &ledgerRepository{db: db}
}

func NewMessageRepository(db *sqlx.DB) repository.MessageRepository {
	return &messageRepository{db: db}
}

func NewQueueRepository(db *sqlx.DB) repository.QueueRepository {
	return &queueRepository{db: db}
}

func NewDeliveryRepository(db *sqlx.DB) repository.DeliveryRepository {
	return &deliveryRepository{db: db}
}

func NewRouteRepository(db *sqlx.DB) repository.RouteRepository {
	return &routeRepository{db: db}
}

func NewAlertRepository(db *sqlx.DB) repository.AlertRepository {
	return &alertRepository{db: db}
}
