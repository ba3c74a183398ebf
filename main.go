package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"screenscout/api"
	"screenscout/config"
	"screenscout/handlers"
	"screenscout/internal/database"
	"screenscout/services/metadata"
	"screenscout/services/recommend"
	"screenscout/services/trending"
	"screenscout/utils"
)

func main() {
	cfg := config.Load()

	if cfg.LogPath != "" {
		log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogPath,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
		}))
	}

	db, err := database.NewDB(database.Config{DatabasePath: cfg.DatabasePath})
	if err != nil {
		log.Fatalf("[main] database init failed: %v", err)
	}
	defer db.Close()

	movies := database.NewMovieRepository(db.Connection())
	recRows := database.NewRecommendationRepository(db.Connection())
	history := database.NewHistoryRepository(db.Connection())

	if n, err := recRows.PurgeExpired(context.Background()); err != nil {
		log.Printf("[main] startup cache purge failed: %v", err)
	} else if n > 0 {
		log.Printf("[main] purged %d expired recommendation entries", n)
	}

	omdb := metadata.NewOMDBClient(cfg.OMDBAPIKey, &http.Client{Timeout: cfg.MetadataTimeout})
	metaSvc := metadata.NewService(omdb, movies)

	gemini := recommend.NewGeminiClient(cfg.GeminiAPIKey, &http.Client{Timeout: cfg.LLMTimeout})
	engine := recommend.NewEngine(gemini, movies, metaSvc, history)
	recSvc := recommend.NewService(engine, recommend.NewCache(recRows, cfg.RecommendationTTL))

	trendSvc := trending.NewService(movies, metaSvc)
	defer trendSvc.Close()

	moviesHandler := handlers.NewMoviesHandler(metaSvc, history)
	recommendHandler := handlers.NewRecommendHandler(recSvc)
	trendingHandler := handlers.NewTrendingHandler(trendSvc)

	// 5 recommendation requests per minute per client; each one can cost a
	// language model call.
	promptLimiter := api.NewPromptLimiter(rate.Every(12*time.Second), 5)

	r := utils.NewRouter()
	r.HandleFunc("/api/movies/search", moviesHandler.Search).Methods(http.MethodGet)
	r.HandleFunc("/api/movies/{id}", moviesHandler.GetByID).Methods(http.MethodGet)
	r.HandleFunc("/api/trending", trendingHandler.GetTrending).Methods(http.MethodGet)
	r.HandleFunc("/api/recommendations", promptLimiter.Wrap(recommendHandler.Recommend)).Methods(http.MethodPost, http.MethodOptions)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[main] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("[main] shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[main] shutdown error: %v", err)
	}
}
