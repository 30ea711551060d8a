package api

import (
	"github.com/gin-gonic/gin"

	"github.com/plumeapp/plume/internal/handlers"
)

func registerUserRoutes(api *gin.RouterGroup, userHandler *handlers.UserHandler) {
	users := api.Group("/users")
	{
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.POST("", userHandler.Create)
	}
}
