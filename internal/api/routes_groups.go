package api

import (
	"github.com/gin-gonic/gin"

	"github.com/plumeapp/plume/internal/handlers"
)

func registerGroupRoutes(api *gin.RouterGroup, groupHandler *handlers.GroupHandler) {
	groups := api.Group("/groups")
	{
		groups.GET("", groupHandler.List)
		groups.GET("/:id", groupHandler.Get)
		groups.POST("", groupHandler.Create)
		groups.POST("/:id/members", groupHandler.AddMember)
		groups.DELETE("/:id", groupHandler.Delete)
	}
}
