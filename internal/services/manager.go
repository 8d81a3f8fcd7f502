package services

import (
	"log/slog"

	"github.com/bmtt-school/times-tables-service/internal/auth"
	"github.com/bmtt-school/times-tables-service/internal/cache"
	"github.com/bmtt-school/times-tables-service/internal/events"
	"github.com/bmtt-school/times-tables-service/internal/repositories"
	"github.com/bmtt-school/times-tables-service/internal/validator"
)

// ServiceManager wires every service over the shared infrastructure. Built
// once in main and handed to the handler layer.
type ServiceManager struct {
	Auth       AuthService
	Roster     RosterService
	Attempt    AttemptService
	Attainment AttainmentService
	Export     ExportService
}

func NewServiceManager(
	repo repositories.TransactionRepository,
	cacheSvc cache.CacheService,
	publisher events.EventPublisher,
	codec *auth.SessionCodec,
	v *validator.Validator,
	logger *slog.Logger,
) *ServiceManager {
	attainment := NewAttainmentService(repo, cacheSvc, publisher, logger)
	return &ServiceManager{
		Auth:       NewAuthService(repo, codec, v, logger),
		Roster:     NewRosterService(repo, v, logger),
		Attempt:    NewAttemptService(repo, cacheSvc, publisher, v, logger),
		Attainment: attainment,
		Export:     NewExportService(repo, attainment, logger),
	}
}
