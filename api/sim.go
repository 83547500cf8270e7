package api

import (
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/tifye/kousaten/assert"
	"github.com/tifye/kousaten/sim"
)

// positionsResponse matches the envelope 3D clients already consume:
// every entity endpoint answers {"positions": [...]}.
type positionsResponse struct {
	Positions any `json:"positions"`
}

// carPosition places a car on the client's ground plane: the grid's y
// becomes the scene's z, and y is the fixed model height.
type carPosition struct {
	ID      string `json:"id"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Z       int    `json:"z"`
	Dir     string `json:"dirActual"`
	NextDir string `json:"nextDir"`
	State   string `json:"state"`
}

func handleGetCars(logger *log.Logger, svc *Service) echo.HandlerFunc {
	assert.AssertNotNil(logger)
	assert.AssertNotNil(svc)
	return func(c echo.Context) error {
		views := svc.CarViews()
		positions := make([]carPosition, 0, len(views))
		for _, v := range views {
			positions = append(positions, carPosition{
				ID:      fmt.Sprint(v.ID),
				X:       v.X,
				Y:       1,
				Z:       v.Y,
				Dir:     v.Dir,
				NextDir: v.NextDir,
				State:   v.State,
			})
		}
		return c.JSON(http.StatusOK, positionsResponse{Positions: positions})
	}
}

type lightPosition struct {
	ID    string `json:"id"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"`
	Open  bool   `json:"state"`
	Cycle int    `json:"cycle"`
}

func handleGetLights(logger *log.Logger, svc *Service) echo.HandlerFunc {
	assert.AssertNotNil(logger)
	assert.AssertNotNil(svc)
	return func(c echo.Context) error {
		views := svc.LightViews()
		positions := make([]lightPosition, 0, len(views))
		for _, v := range views {
			positions = append(positions, lightPosition{
				ID:    fmt.Sprint(v.ID),
				X:     v.X,
				Y:     1,
				Z:     v.Y,
				Open:  v.Open,
				Cycle: v.Cycle,
			})
		}
		return c.JSON(http.StatusOK, positionsResponse{Positions: positions})
	}
}

type entityPosition struct {
	ID       string `json:"id"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Z        int    `json:"z"`
	Dir      string `json:"dir,omitempty"`
	Rotation int    `json:"rotation"`
}

func toEntityPositions(views []rotatedView) []entityPosition {
	positions := make([]entityPosition, 0, len(views))
	for _, v := range views {
		positions = append(positions, entityPosition{
			ID:       fmt.Sprint(v.ID),
			X:        v.X,
			Y:        1,
			Z:        v.Y,
			Rotation: v.Rotation,
		})
	}
	return positions
}

func handleGetObstacles(logger *log.Logger, svc *Service) echo.HandlerFunc {
	assert.AssertNotNil(logger)
	assert.AssertNotNil(svc)
	return func(c echo.Context) error {
		positions := toEntityPositions(svc.ObstacleViews())
		return c.JSON(http.StatusOK, positionsResponse{Positions: positions})
	}
}

func handleGetDestinations(logger *log.Logger, svc *Service) echo.HandlerFunc {
	assert.AssertNotNil(logger)
	assert.AssertNotNil(svc)
	return func(c echo.Context) error {
		positions := toEntityPositions(svc.DestinationViews())
		return c.JSON(http.StatusOK, positionsResponse{Positions: positions})
	}
}

type roadPosition struct {
	ID         string `json:"id"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Z          int    `json:"z"`
	Dir        string `json:"dir"`
	Decorative bool   `json:"decorative,omitempty"`
}

func handleGetRoads(logger *log.Logger, svc *Service) echo.HandlerFunc {
	assert.AssertNotNil(logger)
	assert.AssertNotNil(svc)
	return func(c echo.Context) error {
		views := svc.RoadViews()
		positions := make([]roadPosition, 0, len(views))
		for _, v := range views {
			positions = append(positions, roadPosition{
				ID:         fmt.Sprint(v.ID),
				X:          v.X,
				Y:          1,
				Z:          v.Y,
				Dir:        v.Dir,
				Decorative: v.Decorative,
			})
		}
		return c.JSON(http.StatusOK, positionsResponse{Positions: positions})
	}
}

func handleGetUpdate(logger *log.Logger, svc *Service) echo.HandlerFunc {
	assert.AssertNotNil(logger)
	assert.AssertNotNil(svc)
	type response struct {
		Message     string `json:"message"`
		CurrentStep int    `json:"currentStep"`
		Running     bool   `json:"running"`
	}
	return func(c echo.Context) error {
		tick, running, err := svc.StepOnce(c.Request().Context())
		if err != nil {
			logger.Error("step", "err", err)
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, response{
			Message:     fmt.Sprintf("Model updated to step %d.", tick),
			CurrentStep: tick,
			Running:     running,
		})
	}
}

func handlePostInit(logger *log.Logger, svc *Service, build func(cfg sim.Config) (*sim.Model, error)) echo.HandlerFunc {
	assert.AssertNotNil(logger)
	assert.AssertNotNil(svc)
	assert.AssertNotNil(build)
	type request struct {
		SpawnInterval *int     `json:"spawnInterval"`
		Patience      *int     `json:"patience"`
		JamChance     *float64 `json:"jamChance"`
		Seed1         *uint64  `json:"seed1"`
		Seed2         *uint64  `json:"seed2"`
	}
	type response struct {
		Message string `json:"message"`
		RunID   string `json:"runId"`
	}
	return func(c echo.Context) error {
		var req request
		if err := c.Bind(&req); err != nil {
			return c.String(http.StatusBadRequest, "malformed parameters")
		}

		cfg := sim.DefaultConfig()
		if req.SpawnInterval != nil {
			cfg.SpawnInterval = *req.SpawnInterval
		}
		if req.Patience != nil {
			cfg.Patience = *req.Patience
		}
		if req.JamChance != nil {
			cfg.JamChance = *req.JamChance
		}
		if req.Seed1 != nil {
			cfg.Seed1 = *req.Seed1
		}
		if req.Seed2 != nil {
			cfg.Seed2 = *req.Seed2
		}

		err := svc.Reset(func() (*sim.Model, error) {
			return build(cfg)
		})
		if err != nil {
			logger.Error("model init", "err", err)
			return c.NoContent(http.StatusInternalServerError)
		}

		return c.JSON(http.StatusOK, response{
			Message: "Parameters received, model initiated.",
			RunID:   svc.RunID(),
		})
	}
}

func handleGetMetrics(logger *log.Logger, svc *Service) echo.HandlerFunc {
	assert.AssertNotNil(logger)
	assert.AssertNotNil(svc)
	type response struct {
		sim.Metrics
		AverageSteps float64 `json:"averageSteps"`
		RunID        string  `json:"runId"`
		Running      bool    `json:"running"`
	}
	return func(c echo.Context) error {
		metrics := svc.Metrics()
		return c.JSON(http.StatusOK, response{
			Metrics:      metrics,
			AverageSteps: metrics.AverageSteps(),
			RunID:        svc.RunID(),
			Running:      svc.Running(),
		})
	}
}

func handleGetMetricsHistory(logger *log.Logger, svc *Service) echo.HandlerFunc {
	assert.AssertNotNil(logger)
	assert.AssertNotNil(svc)
	type request struct {
		Limit uint `query:"limit"`
	}
	return func(c echo.Context) error {
		req := request{Limit: 100}
		_ = c.Bind(&req)
		if req.Limit > 1000 {
			req.Limit = 1000
		}

		rows, err := svc.History(c.Request().Context(), req.Limit)
		if err != nil {
			logger.Error("metrics history", "err", err)
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, rows)
	}
}

func handleGetRuns(logger *log.Logger, svc *Service) echo.HandlerFunc {
	assert.AssertNotNil(logger)
	assert.AssertNotNil(svc)
	return func(c echo.Context) error {
		summaries, err := svc.RunSummaries(c.Request().Context())
		if err != nil {
			logger.Error("run summaries", "err", err)
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, summaries)
	}
}
