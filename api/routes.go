package api

import (
	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"
)

func registerRoutes(e *echo.Echo, logger *log.Logger, config *viper.Viper, deps *ServerDependencies) {
	e.GET("/getCars", handleGetCars(logger, deps.Service))
	e.GET("/getLights", handleGetLights(logger, deps.Service))
	e.GET("/getObstacles", handleGetObstacles(logger, deps.Service))
	e.GET("/getDestinations", handleGetDestinations(logger, deps.Service))
	e.GET("/getRoads", handleGetRoads(logger, deps.Service))
	e.GET("/update", handleGetUpdate(logger, deps.Service))

	e.GET("/metrics", handleGetMetrics(logger, deps.Service))
	e.GET("/metrics/history", handleGetMetricsHistory(logger, deps.Service))
	e.GET("/runs", handleGetRuns(logger, deps.Service))

	e.POST("/init", handlePostInit(logger, deps.Service, deps.BuildModel),
		requireAuthMiddleware(logger, config))

	e.GET("/auth/token", handleGetToken(logger, config))
	e.POST("/auth/verify", handlePostVerifyToken(logger, config))

	e.GET("/live", handleWebsocketConn(logger, deps.Hub, deps.NewSessionCookie))
}
