package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/tifye/kousaten/api"
	"github.com/tifye/kousaten/citymap"
	"github.com/tifye/kousaten/sim"
	"github.com/tifye/kousaten/storage"
	"github.com/tifye/kousaten/stream"
	"golang.org/x/time/rate"
)

func main() {
	config := viper.New()
	config.AutomaticEnv()

	err := godotenv.Load()
	if err != nil {
		log.Warn("could not load .env file: %s", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	logger := log.NewWithOptions(os.Stdout, log.Options{
		Level: log.DebugLevel,
	})

	err = run(ctx, logger, config)
	if err != nil {
		logger.Error(err)
	}
}

func run(ctx context.Context, logger *log.Logger, config *viper.Viper) error {
	config.SetDefault("PORT", 8585)
	port := config.GetInt("PORT")

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("net listen: %s", err)
	}

	deps, cfs, err := initDependencies(logger, config)
	if err != nil {
		return fmt.Errorf("init deps: %s", err)
	}
	defer func() {
		if err := cfs.Cleanup(); err != nil {
			logger.Error("cleanup funcs", "err", err)
		}
	}()

	s := api.NewServer(logger, config, deps)
	go func() {
		logger.Printf("serving on %s", ln.Addr())
		err := s.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	if tps := config.GetFloat64("TICKS_PER_SECOND"); tps > 0 {
		go tickLoop(ctx, logger, deps.Service, tps)
	}

	<-ctx.Done()
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = s.Shutdown(closeCtx)
	if err != nil {
		return fmt.Errorf("server shutdown: %s", err)
	}

	return nil
}

// tickLoop advances the simulation on its own cadence, independent of
// clients polling /update.
func tickLoop(ctx context.Context, logger *log.Logger, svc *api.Service, tps float64) {
	limiter := rate.NewLimiter(rate.Limit(tps), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		if !svc.Running() {
			continue
		}
		if _, _, err := svc.StepOnce(ctx); err != nil {
			logger.Error("tick loop", "err", err)
		}
	}
}

func initDependencies(logger *log.Logger, config *viper.Viper) (deps *api.ServerDependencies, cfs CleanupFuncs, err error) {
	defer func() {
		if err == nil {
			return
		}

		if ferr := cfs.Cleanup(); ferr != nil {
			err = errors.Join(err, ferr)
		}
	}()

	hub := stream.NewHub(logger.WithPrefix("stream"))

	config.SetDefault("DUCKDB_PATH", "./data/kousaten.db")
	db, err := storage.InitDuckDB(config.GetString("DUCKDB_PATH"))
	if err != nil {
		return nil, cfs, fmt.Errorf("init duckdb: %s", err)
	}
	cfs.Defer(func() error {
		if err := db.Close(); err != nil {
			return fmt.Errorf("close duckdb: %s", err)
		}
		return nil
	})
	ticks := storage.NewTickStore(db)

	buildModel := func(cfg sim.Config) (*sim.Model, error) {
		syms := citymap.SymbolsFromConfig(config)
		modelLogger := logger.WithPrefix("sim")
		if mapFile := config.GetString("MAP_FILE"); mapFile != "" {
			return citymap.ParseFile(mapFile, syms, cfg, modelLogger)
		}
		return citymap.Base(syms, cfg, modelLogger)
	}

	defaultConfig := func() sim.Config {
		cfg := sim.DefaultConfig()
		if v := config.GetInt("SPAWN_INTERVAL"); v > 0 {
			cfg.SpawnInterval = v
		}
		if config.IsSet("SEED1") {
			cfg.Seed1 = config.GetUint64("SEED1")
		}
		if config.IsSet("SEED2") {
			cfg.Seed2 = config.GetUint64("SEED2")
		}
		return cfg
	}

	svc, err := api.NewService(logger.WithPrefix("service"), func() (*sim.Model, error) {
		return buildModel(defaultConfig())
	}, hub, ticks)
	if err != nil {
		return nil, cfs, fmt.Errorf("new service: %s", err)
	}

	sessionStore := sessions.NewFilesystemStore("", []byte(config.GetString("OTP_SECRET")))
	newSessionCookie := func(s *sessions.Session) (*http.Cookie, error) {
		val, err := securecookie.EncodeMulti(s.Name(), s.ID, sessionStore.Codecs...)
		if err != nil {
			return nil, err
		}
		return sessions.NewCookie(s.Name(), val, s.Options), nil
	}

	return &api.ServerDependencies{
		Service:          svc,
		Hub:              hub,
		BuildModel:       buildModel,
		SessionStore:     sessionStore,
		NewSessionCookie: newSessionCookie,
	}, cfs, nil
}
