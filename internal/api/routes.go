package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures the v1 API routes.
func SetupRoutes(router *gin.Engine, handler *Handler) {
	v1 := router.Group("/api/v1")
	{
		classify := v1.Group("/classify")
		{
			classify.POST("/batch", handler.ClassifyBatch)         // POST /api/v1/classify/batch
			classify.POST("/:content_id", handler.ClassifyContent) // POST /api/v1/classify/:content_id[?preview=true]
		}

		settings := v1.Group("/settings")
		{
			settings.GET("/features", handler.ListFeatureSettings)
			settings.GET("/features/:feature", handler.GetFeatureSettings)
			settings.PUT("/features/:feature", handler.UpdateFeatureSettings)
			settings.GET("/tag-filter", handler.GetTagFilter)
			settings.PUT("/tag-filter", handler.UpdateTagFilter)
		}

		v1.GET("/diagnostics/:content_id", handler.GetDiagnostics)
	}
}
