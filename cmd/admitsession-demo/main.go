// Command admitsession-demo runs a small portal shell that exercises the
// session core end to end: it mounts the route guard over the portal's route
// map, accepts raw backend-issued tokens on /session/login, and serves
// placeholder pages for each guarded area.
package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/alicebob/miniredis/v2"
	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/admitware/admitsession"
	"github.com/admitware/admitsession/middleware"
	"github.com/admitware/admitsession/routes"
	"github.com/admitware/admitsession/storage"
)

type config struct {
	Addr      string `env:"ADDR" envDefault:":8080"`
	RedisAddr string `env:"REDIS_ADDR"`
	TokenFile string `env:"TOKEN_FILE"`
	DeviceID  string `env:"DEVICE_ID" envDefault:"demo-kiosk"`
	AuditLog  bool   `env:"AUDIT_LOG" envDefault:"true"`
}

func main() {
	logger := zap.Must(zap.NewProduction())
	defer logger.Sync()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		logger.Fatal("parse env", zap.Error(err))
	}

	slot, cleanup, err := buildSlot(cfg, logger)
	if err != nil {
		logger.Fatal("build token slot", zap.Error(err))
	}
	defer cleanup()

	storeCfg := admitsession.Config{
		Audit:              admitsession.AuditConfig{Enabled: cfg.AuditLog, BufferSize: 64, DropIfFull: true},
		Metrics:            admitsession.MetricsConfig{Enabled: true},
		SubscriptionBuffer: 8,
	}

	store, err := admitsession.New().
		WithConfig(storeCfg).
		WithSlot(slot).
		WithLogger(logger).
		WithAuditSink(admitsession.NewJSONWriterSink(os.Stdout)).
		Build()
	if err != nil {
		logger.Fatal("build session store", zap.Error(err))
	}
	defer store.Close()

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	// Session endpoints sit outside the guard: login accepts the raw token
	// the backend handed to the screen, logout always succeeds.
	r.Post("/session/login", func(w http.ResponseWriter, req *http.Request) {
		user, err := store.Login(req.Context(), req.FormValue("token"))
		if err != nil {
			logger.Info("login rejected", zap.Error(err))
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		http.Redirect(w, req, routes.ResolveRedirect(user), http.StatusFound)
	})
	r.Post("/session/logout", func(w http.ResponseWriter, req *http.Request) {
		store.Logout(req.Context())
		http.Redirect(w, req, routes.PathLogin, http.StatusFound)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(store))

		page := func(title string) http.HandlerFunc {
			return func(w http.ResponseWriter, req *http.Request) {
				if u, ok := middleware.UserFromContext(req.Context()); ok {
					fmt.Fprintf(w, "%s — signed in as %s (%s)\n", title, u.Email, u.Role)
					return
				}
				fmt.Fprintln(w, title)
			}
		}

		r.Get("/", page("home"))
		r.Get(routes.PathLogin, page("login"))
		r.Get(routes.PathRegister, page("register"))
		r.Get(routes.PathVerify, page("verify"))
		r.Get(routes.PathForgotPassword, page("forgot password"))
		r.Get(routes.PathResetPassword, page("reset password"))
		r.Get(routes.PathApplicant+"/*", page("applicant area"))
		r.Get(routes.PathApplicant, page("applicant area"))
		r.Get(routes.PathBank+"/*", page("bank console"))
		r.Get(routes.PathBank, page("bank console"))
		r.Get(routes.PathAdmin+"/*", page("admin console"))
		r.Get(routes.PathAdmin, page("admin console"))
	})

	logger.Info("listening", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, r); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// buildSlot picks the token slot backend: Redis when an address is
// configured (falling back to an embedded miniredis for local runs when the
// address is the literal "embedded"), a file when a path is configured, and
// memory otherwise.
func buildSlot(cfg config, logger *zap.Logger) (storage.Slot, func(), error) {
	switch {
	case cfg.RedisAddr == "embedded":
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, err
		}
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		logger.Info("using embedded redis token slot", zap.String("addr", mr.Addr()))
		return storage.NewRedisSlot(client, "admit", cfg.DeviceID, 0), func() {
			client.Close()
			mr.Close()
		}, nil
	case cfg.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		logger.Info("using redis token slot", zap.String("addr", cfg.RedisAddr), zap.String("device", cfg.DeviceID))
		return storage.NewRedisSlot(client, "admit", cfg.DeviceID, 0), func() { client.Close() }, nil
	case cfg.TokenFile != "":
		if err := os.MkdirAll(filepath.Dir(cfg.TokenFile), 0o700); err != nil {
			return nil, nil, err
		}
		logger.Info("using file token slot", zap.String("path", cfg.TokenFile))
		return storage.NewFileSlot(cfg.TokenFile), func() {}, nil
	default:
		logger.Info("using in-memory token slot")
		return storage.NewMemorySlot(), func() {}, nil
	}
}
