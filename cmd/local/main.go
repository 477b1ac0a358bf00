package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"annotation-backend/cmd"
	"annotation-backend/internal/api"
	"annotation-backend/internal/database"
	"annotation-backend/internal/storage"
	"annotation-backend/internal/vectorizer"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Single-binary mode: sqlite plus a filesystem object store under Root, no
// external services required.
type Config struct {
	Root            string `env:"ROOT" envDefault:"./annotation-data"`
	Port            int    `env:"PORT" envDefault:"3000"`
	ImageBucketName string `env:"IMAGE_BUCKET_NAME" envDefault:"images"`
	VectorizerURL   string `env:"VECTORIZER_URL"`
	ExportWorkers   int    `env:"EXPORT_WORKERS" envDefault:"8"`
}

func createDatabase(root string) *gorm.DB {
	path := filepath.Join(root, "db", "annotations.db")
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.GetMigrator(db).Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	return db
}

func main() {
	cmd.LoadEnvFile()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := os.MkdirAll(cfg.Root, os.ModePerm); err != nil {
		log.Fatalf("error creating root directory: %v", err)
	}

	db := createDatabase(cfg.Root)

	objects, err := storage.NewLocalObjectStore(filepath.Join(cfg.Root, "objects"))
	if err != nil {
		log.Fatalf("Failed to create object store: %v", err)
	}
	if err := objects.CreateBucket(context.Background(), cfg.ImageBucketName); err != nil {
		log.Fatalf("Failed to create image bucket: %v", err)
	}

	var vec *vectorizer.Client
	if cfg.VectorizerURL != "" {
		vec = vectorizer.NewClient(cfg.VectorizerURL)
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	apiHandler := api.NewBackendService(db, objects, cfg.ImageBucketName, vec, cfg.ExportWorkers)
	apiHandler.AddRoutes(r)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("server listening on port %d, data in %s", cfg.Port, cfg.Root)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v\n", cfg.Port, err)
	}

	log.Println("Server stopped.")
}
