package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"strings"

	"annotation-backend/cmd"
	"annotation-backend/internal/database"
	"annotation-backend/internal/storage"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"gorm.io/gorm"
)

// Bulk-imports a directory of images: uploads each file to the object store
// and registers a record for it, the same as POST /images but without going
// through HTTP.
type SeedConfig struct {
	DatabaseURL       string `env:"DATABASE_URL,notEmpty,required"`
	SeedDir           string `env:"SEED_DIR,notEmpty,required"`
	LocalObjectsDir   string `env:"LOCAL_OBJECTS_DIR"`
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
	ImageBucketName   string `env:"IMAGE_BUCKET_NAME" envDefault:"images"`
}

func createObjectStore(cfg SeedConfig) (storage.ObjectStore, error) {
	if cfg.LocalObjectsDir != "" {
		return storage.NewLocalObjectStore(cfg.LocalObjectsDir)
	}
	return storage.NewS3ObjectStore(storage.S3ClientConfig{
		Endpoint:        cfg.S3EndpointURL,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})
}

func listImageFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".png", ".jpg", ".jpeg", ".gif":
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func seedFile(ctx context.Context, db *gorm.DB, objects storage.ObjectStore, bucket, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}

	config, formatName, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("skipping %s, not a supported image: %w", path, err)
	}

	id := uuid.New()
	filename := filepath.Base(path)
	key := fmt.Sprintf("images/%s_%s", id, filename)

	if err := objects.PutObject(ctx, bucket, key, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("error uploading %s: %w", path, err)
	}

	record := &database.Image{
		Id:               id,
		Filename:         filename,
		OriginalFilename: filename,
		S3Bucket:         bucket,
		S3Key:            key,
		FileSize:         int64(len(data)),
		Width:            config.Width,
		Height:           config.Height,
		Format:           "image/" + formatName,
	}
	return db.Create(record).Error
}

func main() {
	cmd.LoadEnvFile()

	var cfg SeedConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	objects, err := createObjectStore(cfg)
	if err != nil {
		log.Fatalf("Failed to create object store: %v", err)
	}

	ctx := context.Background()
	if err := objects.CreateBucket(ctx, cfg.ImageBucketName); err != nil {
		log.Fatalf("Failed to create image bucket: %v", err)
	}

	files, err := listImageFiles(cfg.SeedDir)
	if err != nil {
		log.Fatalf("Failed to list files in %s: %v", cfg.SeedDir, err)
	}
	if len(files) == 0 {
		log.Fatalf("No image files found in %s", cfg.SeedDir)
	}

	bar := progressbar.Default(int64(len(files)), "importing images")

	var failed int
	for _, path := range files {
		if err := seedFile(ctx, db, objects, cfg.ImageBucketName, path); err != nil {
			log.Printf("WARNING: %v", err)
			failed++
		}
		_ = bar.Add(1)
	}

	log.Printf("Imported %d images (%d failed)", len(files)-failed, failed)
}
