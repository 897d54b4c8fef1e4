package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	cfg "github.com/example/propertyhub/internal/config"
	"github.com/example/propertyhub/internal/filestore"
	"github.com/example/propertyhub/migrations"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"
)

type App struct {
	DB          DB
	Tokens      *TokenService
	Credentials *Credentials
	Properties  *PropertyRepository
	Files       filestore.Store
	log         *slog.Logger
}

func NewApp(db DB, tokens *TokenService, files filestore.Store, log *slog.Logger) *App {
	return &App{
		DB:          db,
		Tokens:      tokens,
		Credentials: NewCredentials(db),
		Properties:  NewPropertyRepository(db),
		Files:       files,
		log:         log,
	}
}

func (a *App) Router() *mux.Router {
	r := mux.NewRouter()

	r.Use(SecurityHeaders)
	r.Use(a.Logging)
	r.Use(a.CORS)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	r.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if p, ok := a.DB.(interface{ ping() bool }); ok && !p.ping() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
	}).Methods("GET")

	auth := r.PathPrefix("/api/auth").Subrouter()
	auth.HandleFunc("/register", a.HandleRegister).Methods("POST")
	auth.HandleFunc("/login", a.HandleLogin).Methods("POST")
	auth.HandleFunc("/refresh-token", a.HandleRefresh).Methods("POST")
	auth.Handle("/profile", a.RequireAuth(http.HandlerFunc(a.HandleProfile))).Methods("GET")

	props := r.PathPrefix("/api/property").Subrouter()
	props.Use(a.RequireAuth)
	props.HandleFunc("/create", a.HandleCreateProperty).Methods("POST")
	props.HandleFunc("", a.HandleListProperties).Methods("GET")
	props.HandleFunc("/", a.HandleListProperties).Methods("GET")
	props.HandleFunc("/{id}", a.HandleGetProperty).Methods("GET")
	props.HandleFunc("/{id}", a.HandleUpdateProperty).Methods("PUT")
	props.HandleFunc("/{id}", a.HandleDeleteProperty).Methods("DELETE")

	return r
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func openDB(ctx context.Context, c *cfg.Config, log *slog.Logger) (DB, error) {
	var db DB
	switch c.DBAdapter {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(c.SQLiteFile), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite dir: %w", err)
		}
		s, err := NewSQLiteDB(c.SQLiteFile)
		if err != nil {
			return nil, fmt.Errorf("sqlite init: %w", err)
		}
		db = s
	case "postgres":
		log.Info("applying database migrations")
		if err := migrations.Apply(log, c.PostgresDSN); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		p, err := NewPostgresDB(c.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres init: %w", err)
		}
		db = p
	case "mongo":
		m, err := NewMongoDB(ctx, c.MongoURI, c.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("mongo init: %w", err)
		}
		db = m
	case "memory":
		log.Warn("using in-memory database, data is lost on restart")
		db = NewMemoryDB()
	default:
		return nil, fmt.Errorf("unsupported DB_ADAPTER: %s", c.DBAdapter)
	}
	log.Info("database ready", "adapter", c.DBAdapter)
	return db, nil
}

func openFiles(ctx context.Context, c *cfg.Config) (filestore.Store, error) {
	if c.UploadBackend == "s3" {
		return filestore.NewS3(ctx, filestore.S3Options{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			Endpoint:     c.S3Endpoint,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			UsePathStyle: c.S3UsePathStyle,
			KeyPrefix:    c.S3KeyPrefix,
		})
	}
	return filestore.NewDisk(c.UploadDir)
}

func main() {
	c, err := cfg.New()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := newLogger(c.LogLevel)
	slog.SetDefault(log)

	ctx := context.Background()
	db, err := openDB(ctx, c, log)
	if err != nil {
		log.Error("database", "err", err)
		os.Exit(1)
	}

	var tokenStore TokenStore = db
	if c.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("redis", "addr", c.RedisAddr, "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		tokenStore = NewRedisTokenStore(rdb)
		log.Info("refresh tokens stored in redis", "addr", c.RedisAddr)
	}

	files, err := openFiles(ctx, c)
	if err != nil {
		log.Error("upload store", "backend", c.UploadBackend, "err", err)
		os.Exit(1)
	}

	tokens := NewTokenService(c.JwtSecret, c.RefreshTokenSecret, c.AccessTokenTTL, c.RefreshTokenTTL, tokenStore)
	app := NewApp(db, tokens, files, log)

	srv := &http.Server{
		Handler:      app.Router(),
		Addr:         ":" + c.Port,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("starting server", "port", c.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "err", err)
	}
	if closer, ok := app.DB.(interface{ close() error }); ok {
		if err := closer.close(); err != nil {
			log.Warn("closing database", "err", err)
		}
	}
	log.Info("server exited properly")
}
