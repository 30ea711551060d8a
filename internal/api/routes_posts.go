package api

import (
	"github.com/gin-gonic/gin"

	"github.com/plumeapp/plume/internal/handlers"
)

func registerPostRoutes(api *gin.RouterGroup, postHandler *handlers.PostHandler, permHandler *handlers.PermissionHandler) {
	posts := api.Group("/posts")
	{
		posts.GET("", postHandler.List)
		posts.GET("/:id", postHandler.Get)
		posts.POST("", postHandler.Create)

		posts.PUT("/:id/permissions", permHandler.Update)
		posts.GET("/:id/can-view", permHandler.CanView)
		posts.GET("/:id/can-edit", permHandler.CanEdit)
	}
}
