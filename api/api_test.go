package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/pquerna/otp/totp"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tifye/kousaten/sim"
	"github.com/tifye/kousaten/storage"
	"github.com/tifye/kousaten/stream"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

// buildTestModel lays a short eastbound corridor with an obstacle lot
// north of it and a destination at the east end.
func buildTestModel(cfg sim.Config) *sim.Model {
	m := sim.NewModel(6, 2, cfg, testLogger())
	for x := 0; x < 5; x++ {
		m.AddRoad(sim.Coord{X: x, Y: 0}, sim.Right, false)
	}
	m.AddObstacle(sim.Coord{X: 0, Y: 1})
	m.AddDestination(sim.Coord{X: 5, Y: 0})
	return m
}

func newTestService(t *testing.T, ticks *storage.TickStore) (*Service, *sim.Model, *stream.Hub) {
	t.Helper()

	cfg := sim.DefaultConfig()
	cfg.SpawnInterval = 0

	var model *sim.Model
	hub := stream.NewHub(testLogger())
	svc, err := NewService(testLogger(), func() (*sim.Model, error) {
		model = buildTestModel(cfg)
		return model, nil
	}, hub, ticks)
	require.NoError(t, err)
	return svc, model, hub
}

func doJSON(t *testing.T, h echo.HandlerFunc, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	require.NoError(t, h(c))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestGetCarsPositions(t *testing.T) {
	svc, model, _ := newTestService(t, nil)

	dest := model.Destinations()[0]
	_, err := model.AddCar(sim.Coord{X: 0, Y: 0}, dest)
	require.NoError(t, err)

	rec, body := doJSON(t, handleGetCars(testLogger(), svc), httptest.NewRequest(http.MethodGet, "/getCars", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	positions := body["positions"].([]any)
	require.Len(t, positions, 1)
	car := positions[0].(map[string]any)
	assert.IsType(t, "", car["id"], "ids are serialized as strings")
	assert.Equal(t, 0.0, car["x"])
	assert.Equal(t, 1.0, car["y"], "y is the fixed model height")
	assert.Equal(t, 0.0, car["z"], "grid y maps to scene z")
	assert.Equal(t, "Right", car["dirActual"])
	assert.Equal(t, "moving", car["state"])
}

func TestGetRoadsPositions(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	rec, body := doJSON(t, handleGetRoads(testLogger(), svc), httptest.NewRequest(http.MethodGet, "/getRoads", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	positions := body["positions"].([]any)
	require.Len(t, positions, 5)
	road := positions[0].(map[string]any)
	assert.Equal(t, "Right", road["dir"])
}

func TestRotationHints(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	// The obstacle at (0,1) has road to its south: faces south, 0.
	_, body := doJSON(t, handleGetObstacles(testLogger(), svc), httptest.NewRequest(http.MethodGet, "/getObstacles", nil))
	obstacles := body["positions"].([]any)
	require.Len(t, obstacles, 1)
	assert.Equal(t, 0.0, obstacles[0].(map[string]any)["rotation"])

	// The destination at (5,0) has road only to its west: 90, flipped
	// by 180 for the model's authored orientation.
	_, body = doJSON(t, handleGetDestinations(testLogger(), svc), httptest.NewRequest(http.MethodGet, "/getDestinations", nil))
	dests := body["positions"].([]any)
	require.Len(t, dests, 1)
	assert.Equal(t, 270.0, dests[0].(map[string]any)["rotation"])
}

func TestUpdateStepsAndBroadcasts(t *testing.T) {
	db, err := storage.InitDuckDB("")
	require.NoError(t, err)
	defer db.Close()

	svc, _, hub := newTestService(t, storage.NewTickStore(db))

	var frames []stream.Frame
	hub.Connect(func(id stream.ID, data []byte) {
		var f stream.Frame
		require.NoError(t, json.Unmarshal(data, &f))
		frames = append(frames, f)
	})

	rec, body := doJSON(t, handleGetUpdate(testLogger(), svc), httptest.NewRequest(http.MethodGet, "/update", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["currentStep"])

	require.Len(t, frames, 1)
	assert.Equal(t, "tick", frames[0].Type)

	rows, err := svc.History(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Tick)
}

func TestMetricsEndpoint(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	_, body := doJSON(t, handleGetMetrics(testLogger(), svc), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, body, "totalSpawned")
	assert.Contains(t, body, "totalArrived")
	assert.Contains(t, body, "averageSteps")
	assert.Contains(t, body, "runId")
}

func TestInitRequiresToken(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	config := viper.New()
	config.Set("JWT_SIGNING_KEY", "test-signing-key")

	e := echo.New()
	build := func(cfg sim.Config) (*sim.Model, error) { return buildTestModel(cfg), nil }
	e.POST("/init", handlePostInit(testLogger(), svc, build), requireAuthMiddleware(testLogger(), config))

	req := httptest.NewRequest(http.MethodPost, "/init", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/init", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenFlowAndInit(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	key, err := totp.Generate(totp.GenerateOpts{Issuer: "kousaten", AccountName: "test"})
	require.NoError(t, err)

	config := viper.New()
	config.Set("JWT_SIGNING_KEY", "test-signing-key")
	config.Set("OTP_SECRET", key.Secret())

	e := echo.New()
	build := func(cfg sim.Config) (*sim.Model, error) { return buildTestModel(cfg), nil }
	e.GET("/auth/token", handleGetToken(testLogger(), config))
	e.POST("/init", handlePostInit(testLogger(), svc, build), requireAuthMiddleware(testLogger(), config))

	passcode, err := totp.GenerateCode(key.Secret(), time.Now())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/token", nil)
	req.Header.Set("Passcode", passcode)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	token := rec.Body.String()
	require.NotEmpty(t, token)

	firstRun := svc.RunID()
	req = httptest.NewRequest(http.MethodPost, "/init", strings.NewReader(`{"spawnInterval": 7}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, firstRun, svc.RunID(), "init starts a new run")

	// Wrong passcode never mints a token.
	req = httptest.NewRequest(http.MethodGet, "/auth/token", nil)
	req.Header.Set("Passcode", "000000")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
