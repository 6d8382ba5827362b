package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func setupRoutes(appServer *AppServer) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	router.GET("/health", appServer.healthHandler)

	mcpHandler := mcp.NewStreamableHTTPHandler(
		func(*http.Request) *mcp.Server { return appServer.mcpServer },
		nil,
	)
	router.Any("/mcp", gin.WrapH(mcpHandler))
	router.Any("/mcp/*path", gin.WrapH(mcpHandler))

	api := router.Group("/api/v1")
	{
		api.GET("/login/status", appServer.checkLoginStatusHandler)
		api.GET("/screenshot", appServer.screenshotHandler)

		runs := api.Group("/unfollow/runs")
		runs.POST("", appServer.startUnfollowHandler)
		runs.GET("", appServer.listRunsHandler)
		runs.GET("/:id", appServer.getRunHandler)
		runs.DELETE("/:id", appServer.cancelRunHandler)
	}

	return router
}
