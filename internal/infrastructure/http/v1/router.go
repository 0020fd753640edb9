// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"apotheca/internal/domain/catalogs/company"
	"apotheca/internal/domain/catalogs/item"
	"apotheca/internal/domain/documents/adjustment"
	"apotheca/internal/domain/documents/purchase"
	"apotheca/internal/domain/documents/sale"
	"apotheca/internal/domain/documents/transfer"
	"apotheca/internal/domain/ledger"
	"apotheca/internal/domain/openingbalance"
	"apotheca/internal/domain/pricing"
	"apotheca/internal/domain/refreshqueue"
	"apotheca/internal/domain/reports"
	"apotheca/internal/domain/snapshot"
	"apotheca/internal/infrastructure/http/v1/handlers"
	"apotheca/internal/infrastructure/http/v1/middleware"
	"apotheca/internal/infrastructure/storage/postgres"
	"apotheca/internal/infrastructure/storage/postgres/catalog_repo"
	"apotheca/internal/infrastructure/storage/postgres/document_repo"
	"apotheca/internal/infrastructure/storage/postgres/ledger_repo"
	"apotheca/internal/infrastructure/storage/postgres/queue_repo"
	"apotheca/internal/infrastructure/storage/postgres/report_repo"
	"apotheca/internal/infrastructure/storage/postgres/snapshot_repo"
	"apotheca/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Pool      *postgres.Pool
	TxManager *postgres.TxManager
	Logger    *logger.Logger

	// JWTValidator verifies bearer tokens. Issuance is external.
	JWTValidator middleware.JWTValidator
}

// NewRouter builds the Gin router and the full service graph behind it.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Order matters: recovery outermost, errors rendered last.
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// Repositories share the one TxManager; a transaction placed on the
	// context by any service covers every repo call underneath it.
	ledgerRepo := ledger_repo.New(cfg.TxManager)
	snapshotRepo := snapshot_repo.New(cfg.TxManager)
	queueRepo := queue_repo.New(cfg.TxManager)
	itemRepo := catalog_repo.NewItemRepo(cfg.TxManager)
	branchRepo := catalog_repo.NewBranchRepo(cfg.TxManager)
	companyRepo := catalog_repo.NewCompanyRepo(cfg.TxManager)
	reportRepo := report_repo.New(cfg.TxManager)

	auditService, err := postgres.NewAuditService(cfg.TxManager)
	if err != nil {
		return nil, err
	}

	ledgerService := ledger.NewService(ledgerRepo)
	costResolver := pricing.NewResolver(ledgerRepo, itemRepo)

	queueService := refreshqueue.NewService(queueRepo, cfg.TxManager, itemRepo)
	refresher := snapshot.NewRefresher(
		snapshotRepo, ledgerRepo, costResolver,
		itemRepo, branchRepo, companyRepo, queueService,
	)
	queueService.BindRefresher(refresher)

	itemService := item.NewService(itemRepo, refresher)
	companyService := company.NewService(companyRepo, branchRepo, queueService)

	purchaseService := purchase.NewService(
		document_repo.NewPurchaseRepo(cfg.TxManager),
		ledgerService, refresher, auditService, cfg.TxManager)
	saleService := sale.NewService(
		document_repo.NewSaleRepo(cfg.TxManager),
		ledgerService, refresher, auditService, cfg.TxManager)
	adjustmentService := adjustment.NewService(
		document_repo.NewAdjustmentRepo(cfg.TxManager),
		ledgerService, refresher, auditService, cfg.TxManager)
	transferService := transfer.NewService(
		document_repo.NewTransferRepo(cfg.TxManager),
		ledgerService, costResolver, refresher, auditService, cfg.TxManager)

	openingService := openingbalance.NewService(
		ledgerService, ledgerRepo, refresher, auditService, cfg.TxManager)

	reportService := reports.NewService(reportRepo, ledgerService)

	base := handlers.NewBaseHandler()
	stockHandler := handlers.NewStockHandler(base, snapshotRepo)
	itemHandler := handlers.NewItemHandler(base, itemService, companyService)
	docHandler := handlers.NewDocumentHandler(base, purchaseService, saleService, adjustmentService, transferService)
	reportHandler := handlers.NewReportHandler(base, reportService)
	queueHandler := handlers.NewQueueHandler(base, queueService, refresher)
	openingHandler := handlers.NewOpeningBalanceHandler(base, openingService)

	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTValidator))
	{
		stock := api.Group("/stock")
		{
			stock.GET("/search", stockHandler.Search)
			stock.GET("/branches/:branch_id", stockHandler.ListByBranch)
			stock.GET("/branches/:branch_id/items/:item_id", stockHandler.GetPair)
		}

		items := api.Group("/items")
		{
			items.POST("", itemHandler.Create)
			items.GET("/:id", itemHandler.Get)
			items.PUT("/:id", itemHandler.Update)
		}
		api.PUT("/company/margin", itemHandler.UpdateCompanyMargin)

		docs := api.Group("/documents")
		{
			docs.POST("/purchases", docHandler.CreatePurchase)
			docs.GET("/purchases/:id", docHandler.GetPurchase)
			docs.POST("/purchases/:id/post", docHandler.PostPurchase)

			docs.POST("/sales", docHandler.CreateSale)
			docs.GET("/sales/:id", docHandler.GetSale)
			docs.POST("/sales/:id/post", docHandler.PostSale)

			docs.POST("/adjustments", docHandler.CreateAdjustment)
			docs.POST("/adjustments/:id/post", docHandler.PostAdjustment)

			docs.POST("/transfers", docHandler.CreateTransfer)
			docs.POST("/transfers/:id/post", docHandler.PostTransfer)
		}

		opening := api.Group("/ledger/opening-balances")
		{
			opening.POST("", openingHandler.Set)
			opening.PUT("/:id", openingHandler.Correct)
		}

		rep := api.Group("/reports")
		{
			rep.GET("/movement", reportHandler.Movement)
			rep.GET("/expiry", reportHandler.Expiry)
			rep.GET("/valuation", reportHandler.Valuation)
			rep.GET("/reconcile", reportHandler.Reconcile)
		}

		queue := api.Group("/queue")
		{
			queue.GET("/stats", queueHandler.Stats)
			queue.POST("/refresh/:branch_id", queueHandler.RefreshBranch)
		}
	}

	return router, nil
}
