package api

import (
	"github.com/gin-gonic/gin"
	"github.com/nori/caliper/internal/api/handler"
	"github.com/nori/caliper/internal/api/middleware"
	"github.com/nori/caliper/internal/service"
)

// Services bundles everything the HTTP surface depends on.
type Services struct {
	Estimates *service.EstimateService
	Reports   *service.ReportService
	Sourcing  *service.SourcingService
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(svcs Services, mode string, cors middleware.CORSConfig) *gin.Engine {
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORS(cors))

	healthHandler := handler.NewHealthHandler()
	estimateHandler := handler.NewEstimateHandler(svcs.Estimates)
	reportHandler := handler.NewReportHandler(svcs.Reports)
	sourcingHandler := handler.NewSourcingHandler(svcs.Sourcing)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Estimates
		v1.POST("/estimate", estimateHandler.Estimate)

		// Reports
		v1.GET("/reports/:id", reportHandler.GetReport)
		v1.POST("/reports/:id/evidence-upgrade", reportHandler.EvidenceUpgrade)
		v1.POST("/reports/:id/manual-label", reportHandler.ManualLabel)

		// Sourcing
		v1.POST("/reports/:id/sourcing-job", sourcingHandler.CreateJob)
		v1.GET("/reports/:id/supplier-statuses", sourcingHandler.GetStatuses)
		v1.POST("/sourcing-jobs/:id/close", sourcingHandler.CloseJob)
		v1.POST("/job-suppliers/:id/quote", sourcingHandler.RecordQuote)
		v1.POST("/job-suppliers/:id/replied", sourcingHandler.MarkReplied)
	}

	return r
}
