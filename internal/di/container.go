package di

import (
	"go.uber.org/zap"

	"github.com/stagepass/backoffice/internal/events"
	"github.com/stagepass/backoffice/internal/handler"
	"github.com/stagepass/backoffice/internal/inventory"
	"github.com/stagepass/backoffice/internal/repository"
	"github.com/stagepass/backoffice/internal/service"
	"github.com/stagepass/backoffice/internal/worker"
	"github.com/stagepass/backoffice/pkg/clock"
	"github.com/stagepass/backoffice/pkg/database"
)

// Container holds all dependencies for the backoffice service
type Container struct {
	// Infrastructure
	DB        *database.PostgresDB
	Ledger    inventory.Ledger
	Publisher events.Publisher
	Sweeper   *worker.Sweeper
	Clock     clock.Clock

	// Repositories
	TicketTypeRepo   repository.TicketTypeRepository
	TicketRepo       repository.TicketRepository
	PricingRuleRepo  repository.PricingRuleRepository
	SpecialOfferRepo repository.SpecialOfferRepository
	SaleRepo         repository.SaleRepository

	// Services
	OfferValidator service.OfferValidator
	SaleService    service.SaleService
	CatalogService service.CatalogService

	// Handlers
	HealthHandler *handler.HealthHandler
	SaleHandler   *handler.SaleHandler
	AdminHandler  *handler.AdminHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB               *database.PostgresDB
	Ledger           inventory.Ledger
	Publisher        events.Publisher
	Clock            clock.Clock
	Logger           *zap.Logger
	TicketTypeRepo   repository.TicketTypeRepository
	TicketRepo       repository.TicketRepository
	PricingRuleRepo  repository.PricingRuleRepository
	SpecialOfferRepo repository.SpecialOfferRepository
	SaleRepo         repository.SaleRepository
	SaleConfig       service.SaleServiceConfig
	SweeperConfig    *worker.SweeperConfig
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:               cfg.DB,
		Ledger:           cfg.Ledger,
		Publisher:        cfg.Publisher,
		Clock:            cfg.Clock,
		TicketTypeRepo:   cfg.TicketTypeRepo,
		TicketRepo:       cfg.TicketRepo,
		PricingRuleRepo:  cfg.PricingRuleRepo,
		SpecialOfferRepo: cfg.SpecialOfferRepo,
		SaleRepo:         cfg.SaleRepo,
	}

	// Initialize services
	c.OfferValidator = service.NewOfferValidator(c.SpecialOfferRepo, c.Clock, cfg.Logger)
	c.SaleService = service.NewSaleService(
		c.Ledger,
		c.TicketTypeRepo,
		c.TicketRepo,
		c.PricingRuleRepo,
		c.SaleRepo,
		c.OfferValidator,
		c.Publisher,
		c.Clock,
		cfg.Logger,
		cfg.SaleConfig,
	)
	c.CatalogService = service.NewCatalogService(
		c.TicketTypeRepo,
		c.PricingRuleRepo,
		c.SpecialOfferRepo,
		c.Ledger,
		c.Clock,
		cfg.Logger,
	)

	// Background workers
	c.Sweeper = worker.NewSweeper(c.Ledger, c.Clock, cfg.Logger, cfg.SweeperConfig)

	// Initialize handlers
	c.HealthHandler = handler.NewHealthHandler(c.DB)
	c.SaleHandler = handler.NewSaleHandler(c.SaleService)
	c.AdminHandler = handler.NewAdminHandler(c.CatalogService)

	return c
}
