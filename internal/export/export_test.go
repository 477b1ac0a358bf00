package export_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"annotation-backend/internal/database"
	"annotation-backend/internal/export"
	"annotation-backend/internal/storage"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testBucket = "images"

func createDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	return db
}

func createObjectStore(t *testing.T) *storage.LocalObjectStore {
	store, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.CreateBucket(context.Background(), testBucket))
	return store
}

// seedImage creates an image record, its object bytes, and one in-bounds box
// annotation per label. Object content is unique per image so tests can
// verify bytes survive archiving.
func seedImage(t *testing.T, db *gorm.DB, store storage.ObjectStore, filename string, width, height int, labels ...string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	key := fmt.Sprintf("images/%s_%s", id, filename)

	require.NoError(t, db.Create(&database.Image{
		Id:               id,
		Filename:         filename,
		OriginalFilename: filename,
		S3Bucket:         testBucket,
		S3Key:            key,
		Width:            width,
		Height:           height,
		Format:           "image/png",
	}).Error)

	require.NoError(t, store.PutObject(context.Background(), testBucket, key, bytes.NewReader(imageBytes(id))))

	for _, label := range labels {
		annotation := box(label, 1, 1, 10, 10)
		annotation.ImageId = id
		require.NoError(t, db.Create(&annotation).Error)
	}

	return id
}

func imageBytes(id uuid.UUID) []byte {
	return []byte("png-bytes-of-" + id.String())
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	members := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content := new(bytes.Buffer)
		_, err = content.ReadFrom(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		members[f.Name] = content.Bytes()
	}
	return members
}

func TestExportLabelFilterScenario(t *testing.T) {
	db, store := createDB(t), createObjectStore(t)
	catImage := seedImage(t, db, store, "cat.png", 100, 100, "cat")
	seedImage(t, db, store, "dog.png", 100, 100, "dog")

	exporter := export.NewExporter(db, store, 4)
	archive, err := exporter.ExportDataset(context.Background(), export.Request{
		Name:   "cats",
		Format: export.FormatYOLO,
		Labels: []string{"cat"},
	})
	require.NoError(t, err)

	members := readArchive(t, archive)

	var imageFiles, labelFiles []string
	for name := range members {
		if strings.HasSuffix(name, "/") {
			continue
		}
		switch {
		case strings.Contains(name, "/images/"):
			imageFiles = append(imageFiles, name)
		case strings.Contains(name, "/labels/"):
			labelFiles = append(labelFiles, name)
		}
	}

	require.Len(t, imageFiles, 1, "only the cat image is exported")
	require.Len(t, labelFiles, 1)
	assert.Contains(t, imageFiles[0], catImage.String())
	assert.Equal(t, imageBytes(catImage), members[imageFiles[0]])

	// Single class, so every line is class 0.
	for _, line := range strings.Split(strings.TrimSuffix(string(members[labelFiles[0]]), "\n"), "\n") {
		assert.True(t, strings.HasPrefix(line, "0 "))
	}

	manifest := string(members["cats/data.yaml"])
	assert.Contains(t, manifest, "nc: 1")
	assert.Contains(t, manifest, "- cat")
	assert.NotContains(t, manifest, "dog")
}

func TestExportArchiveLayout(t *testing.T) {
	db, store := createDB(t), createObjectStore(t)
	seedImage(t, db, store, "photo.png", 100, 100, "cat")

	exporter := export.NewExporter(db, store, 4)
	archive, err := exporter.ExportDataset(context.Background(), export.Request{
		Name:   "dataset",
		Format: export.FormatYOLO,
	})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)

	names := make(map[string]*zip.File)
	for _, f := range zr.File {
		names[f.Name] = f
	}

	for _, dir := range []string{
		"dataset/images/train/", "dataset/images/val/",
		"dataset/labels/train/", "dataset/labels/val/",
	} {
		assert.Contains(t, names, dir)
	}
	require.Contains(t, names, "dataset/data.yaml")

	for name, f := range names {
		if strings.HasSuffix(name, "/") {
			continue
		}
		assert.Equal(t, zip.Store, f.Method, "archive members are stored, not deflated: %s", name)
	}
}

func TestExportSplitAssignment(t *testing.T) {
	db, store := createDB(t), createObjectStore(t)

	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = seedImage(t, db, store, fmt.Sprintf("img%d.png", i), 100, 100, "cat")
	}

	// The resolver orders by image id, so the expected split follows the
	// sorted id sequence: first floor(0.8*5) = 4 train, last one val.
	sorted := append([]uuid.UUID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

	exporter := export.NewExporter(db, store, 4)
	req := export.Request{Name: "ds", Format: export.FormatYOLO}

	archive, err := exporter.ExportDataset(context.Background(), req)
	require.NoError(t, err)
	members := readArchive(t, archive)

	splitOf := func(id uuid.UUID) string {
		for name := range members {
			if strings.Contains(name, "/images/") && strings.Contains(name, id.String()) {
				if strings.Contains(name, "/train/") {
					return "train"
				}
				return "val"
			}
		}
		return "missing"
	}

	for i, id := range sorted {
		expected := "train"
		if i >= 4 {
			expected = "val"
		}
		assert.Equal(t, expected, splitOf(id), "image at sorted position %d", i)
	}

	// Re-running against the unchanged store yields the identical archive
	// member set and split assignment.
	again, err := exporter.ExportDataset(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, memberNames(members), memberNames(readArchive(t, again)))
}

func memberNames(members map[string][]byte) []string {
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func TestExportSingleImageLandsInVal(t *testing.T) {
	db, store := createDB(t), createObjectStore(t)
	id := seedImage(t, db, store, "only.png", 100, 100, "cat")

	exporter := export.NewExporter(db, store, 4)
	archive, err := exporter.ExportDataset(context.Background(), export.Request{Name: "ds", Format: export.FormatYOLO})
	require.NoError(t, err)

	members := readArchive(t, archive)
	found := false
	for name := range members {
		if strings.Contains(name, id.String()) && strings.Contains(name, "/images/") {
			assert.Contains(t, name, "/images/val/")
			found = true
		}
	}
	assert.True(t, found)
}

func TestExportZeroWidthImage(t *testing.T) {
	db, store := createDB(t), createObjectStore(t)
	id := seedImage(t, db, store, "broken.png", 0, 100, "cat")

	exporter := export.NewExporter(db, store, 4)
	archive, err := exporter.ExportDataset(context.Background(), export.Request{Name: "ds", Format: export.FormatYOLO})
	require.NoError(t, err)

	members := readArchive(t, archive)

	var imageArchived bool
	for name, content := range members {
		if !strings.Contains(name, id.String()) {
			continue
		}
		if strings.Contains(name, "/images/") {
			imageArchived = true
			assert.Equal(t, imageBytes(id), content)
		}
		if strings.Contains(name, "/labels/") {
			assert.Empty(t, content, "no label lines for an image that cannot be normalized")
		}
	}
	assert.True(t, imageArchived, "the image file is still included")
}

func TestExportFilenameCollision(t *testing.T) {
	db, store := createDB(t), createObjectStore(t)
	first := seedImage(t, db, store, "same.png", 100, 100, "cat")
	second := seedImage(t, db, store, "same.png", 100, 100, "cat")

	exporter := export.NewExporter(db, store, 4)
	archive, err := exporter.ExportDataset(context.Background(), export.Request{Name: "ds", Format: export.FormatYOLO})
	require.NoError(t, err)

	members := readArchive(t, archive)

	for _, id := range []uuid.UUID{first, second} {
		found := false
		for name, content := range members {
			if strings.Contains(name, "/images/") && strings.Contains(name, id.String()) {
				found = true
				assert.Equal(t, imageBytes(id), content, "bytes not overwritten by the colliding upload")
			}
		}
		assert.True(t, found, "image %s present under a distinct path", id)
	}
}

func TestExportNoMatchingImages(t *testing.T) {
	db, store := createDB(t), createObjectStore(t)
	seedImage(t, db, store, "cat.png", 100, 100, "cat")

	exporter := export.NewExporter(db, store, 4)
	archive, err := exporter.ExportDataset(context.Background(), export.Request{
		Name:   "ds",
		Format: export.FormatYOLO,
		Labels: []string{"zebra"},
	})
	assert.ErrorIs(t, err, export.ErrNoMatchingImages)
	assert.Nil(t, archive)
}

func TestExportNoLabelsFound(t *testing.T) {
	db, store := createDB(t), createObjectStore(t)
	seedImage(t, db, store, "anon.png", 100, 100, "")

	exporter := export.NewExporter(db, store, 4)
	archive, err := exporter.ExportDataset(context.Background(), export.Request{Name: "ds", Format: export.FormatYOLO})
	assert.ErrorIs(t, err, export.ErrNoLabelsFound)
	assert.Nil(t, archive)
}

func TestExportUnsupportedFormat(t *testing.T) {
	db, store := createDB(t), createObjectStore(t)

	exporter := export.NewExporter(db, store, 4)
	_, err := exporter.ExportDataset(context.Background(), export.Request{Name: "ds", Format: export.FormatVOC})
	assert.ErrorIs(t, err, export.ErrUnsupportedFormat)
}

func TestExportAggregationFailure(t *testing.T) {
	db, store := createDB(t), createObjectStore(t)

	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = seedImage(t, db, store, fmt.Sprintf("img%d.png", i), 100, 100, "cat")
	}

	// Remove the stored bytes for one image so its blob fetch fails.
	var victim database.Image
	require.NoError(t, db.First(&victim, "id = ?", ids[2]).Error)
	require.NoError(t, store.DeleteObject(context.Background(), victim.S3Bucket, victim.S3Key))

	exporter := export.NewExporter(db, store, 4)
	archive, err := exporter.ExportDataset(context.Background(), export.Request{Name: "ds", Format: export.FormatYOLO})

	require.Error(t, err)
	assert.Nil(t, archive, "no partial archive for the surviving four images")

	var aggErr *export.AggregationError
	require.True(t, errors.As(err, &aggErr))
	assert.Equal(t, ids[2], aggErr.ImageId)
}

func TestExportDataUnavailable(t *testing.T) {
	db, store := createDB(t), createObjectStore(t)
	require.NoError(t, db.Migrator().DropTable(&database.Annotation{}))

	exporter := export.NewExporter(db, store, 4)
	_, err := exporter.ExportDataset(context.Background(), export.Request{Name: "ds", Format: export.FormatYOLO})
	assert.ErrorIs(t, err, export.ErrDataUnavailable)
}
