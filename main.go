package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"materna-backend/config"
	"materna-backend/conn"
	"materna-backend/email"
	"materna-backend/jobs"
	"materna-backend/login"
	"materna-backend/metrics"
	"materna-backend/migrations"
	"materna-backend/openai"
	"materna-backend/patientctx"
	"materna-backend/patients"
	"materna-backend/predict"
	"materna-backend/quota"
	"materna-backend/report"
	"materna-backend/reports"
	"materna-backend/retrieval"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := conn.Open(conn.Options{
		Driver: cfg.DBDriver,
		MySQL: conn.MySQLOptions{
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			Name:     cfg.DBName,
		},
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		log.Fatalf("[main] database: %v", err)
	}
	defer db.Close()
	if err := migrations.Migrate(db, dialect); err != nil {
		log.Fatalf("[main] migrations: %v", err)
	}

	ai := openai.NewClient(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.ChatModel, cfg.EmbeddingModel)

	// The service does not start without its reference index.
	index, err := retrieval.Build(ctx, retrieval.BuildOptions{
		PDFPath:   cfg.ReferencePDF,
		CachePath: cfg.IndexCache,
		Model:     cfg.EmbeddingModel,
	}, ai)
	if err != nil {
		log.Fatalf("[main] reference index: %v", err)
	}
	generator, err := report.NewGenerator(index, ai, report.DefaultOptions())
	if err != nil {
		log.Fatalf("[main] report generator: %v", err)
	}

	store := jobs.NewSQLStore(db)
	runner := jobs.NewRunner(store, generator, jobs.RunnerConfig{
		Workers:   cfg.ReportWorkers,
		QueueSize: cfg.ReportQueueSize,
		Timeout:   cfg.ReportTimeout,
	})

	tokens := login.NewTokens(cfg.SessionSecret, cfg.SessionTTL)
	patientRepo := patients.NewRepository(db, dialect)
	limiter := quota.NewLimiter(cfg.GenerateRPM)

	var orientation, plane predict.Classifier
	if cfg.OrientationModelURL != "" && cfg.PlaneModelURL != "" {
		orientation = predict.NewRemoteClassifier(cfg.OrientationModelURL, 30*time.Second)
		plane = predict.NewRemoteClassifier(cfg.PlaneModelURL, 30*time.Second)
	} else {
		log.Printf("[main] classifier URLs not set, /predict will answer 503")
	}

	reportCfg := reports.Config{SyncTimeout: cfg.ReportTimeout}
	mailer := email.NewMailer(email.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	})
	if mailer.Enabled() {
		reportCfg.Notifier = mailer
	}
	reportHandler := reports.NewHandler(store, runner, generator, patientctx.NewExtractor(nil), patientRepo, reportCfg)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), metrics.Middleware())
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	login.NewHandler(login.NewRepository(db), tokens).RegisterRoutes(r)
	predict.NewHandler(orientation, plane).RegisterRoutes(r)
	reportHandler.RegisterRoutes(r, limiter.Middleware("generate_report"))

	auth := r.Group("/", login.RequireAuth(tokens))
	patients.NewHandler(patientRepo).RegisterRoutes(auth)
	reportHandler.RegisterAuthRoutes(auth, limiter.Middleware("generate_maternal_report"))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("[main] listening addr=%s db=%s chunks=%d", srv.Addr, dialect, index.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[main] server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("[main] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] http shutdown: %v", err)
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] runner shutdown: %v; unfinished jobs stay processing", err)
	}
}
