package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api")
	{
		api.GET("/comparables", handler.GetComparables)
		api.GET("/recent-searches", handler.GetRecentSearches)
		api.POST("/refresh-dataset", handler.RefreshDataset)
		api.GET("/health", handler.Health)
	}
}
