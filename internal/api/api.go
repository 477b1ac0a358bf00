package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"annotation-backend/internal/database"
	"annotation-backend/internal/export"
	"annotation-backend/internal/storage"
	"annotation-backend/internal/vectorizer"
	"annotation-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	maxUploadBytes    = 50 << 20
	presignExpiry     = 5 * time.Minute
	defaultPageSize   = 50
	defaultSearchTopK = 10
)

type BackendService struct {
	db         *gorm.DB
	objects    storage.ObjectStore
	bucket     string
	vectorizer *vectorizer.Client
	exporter   *export.Exporter
}

// NewBackendService wires the HTTP layer. vec may be nil when no embedding
// service is configured; uploads then skip vectorization and search returns
// 503.
func NewBackendService(db *gorm.DB, objects storage.ObjectStore, bucket string, vec *vectorizer.Client, exportWorkers int) *BackendService {
	return &BackendService{
		db:         db,
		objects:    objects,
		bucket:     bucket,
		vectorizer: vec,
		exporter:   export.NewExporter(db, objects, exportWorkers),
	}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))

	r.Route("/images", func(r chi.Router) {
		r.Post("/", RestHandler(s.UploadImage))
		r.Get("/", RestHandler(s.ListImages))
		r.Post("/presigned-url", RestHandler(s.CreatePresignedUrl))
		r.Post("/register", RestHandler(s.RegisterImage))
		r.Post("/search", RestHandler(s.SearchImages))
		r.Get("/{image_id}", s.GetImage)
	})

	r.Route("/annotations", func(r chi.Router) {
		r.Post("/", RestHandler(s.CreateAnnotation))
		r.Get("/labels", RestHandler(s.GetLabels))
		r.Get("/image/{image_id}", RestHandler(s.GetImageAnnotations))
		r.Put("/{annotation_id}", RestHandler(s.UpdateAnnotation))
		r.Delete("/{annotation_id}", RestHandler(s.DeleteAnnotation))
	})

	r.Post("/export", s.ExportDataset)
}

func (s *BackendService) UploadImage(r *http.Request) (any, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "unable to parse multipart form: %v", err)
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "missing 'image' form field")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error reading uploaded file: %v", err)
	}

	config, formatName, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "uploaded file is not a supported image: %v", err)
	}
	contentType := "image/" + formatName

	ctx := r.Context()

	id := uuid.New()
	key := fmt.Sprintf("images/%s_%s", id, header.Filename)

	// Vectorization is best-effort: an unreachable embedding service must
	// not block uploads.
	var vector []byte
	if s.vectorizer != nil {
		embedding, err := s.vectorizer.VectorizeImage(ctx, header.Filename, contentType, data)
		if err != nil {
			slog.Warn("failed to vectorize uploaded image", "image_id", id, "error", err)
		} else if embedding != nil {
			vector, err = json.Marshal(embedding)
			if err != nil {
				return nil, CodedErrorf(http.StatusInternalServerError, "error serializing embedding: %v", err)
			}
		}
	}

	if err := s.objects.PutObject(ctx, s.bucket, key, bytes.NewReader(data)); err != nil {
		slog.Error("error uploading image to object store", "key", key, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to store image")
	}

	record := &database.Image{
		Id:               id,
		Filename:         header.Filename,
		OriginalFilename: header.Filename,
		S3Bucket:         s.bucket,
		S3Key:            key,
		FileSize:         int64(len(data)),
		Width:            config.Width,
		Height:           config.Height,
		Format:           contentType,
		Vector:           vector,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		slog.Error("error creating image record", "image_id", id, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create image record")
	}

	slog.Info("image uploaded", "image_id", id, "size", len(data), "format", contentType)
	return api.UploadImageResponse{Id: id, S3Key: key, CreatedAt: record.CreatedAt}, nil
}

func (s *BackendService) CreatePresignedUrl(r *http.Request) (any, error) {
	req, err := ParseRequest[api.PresignedUrlRequest](r)
	if err != nil {
		return nil, err
	}
	if req.Filename == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "filename is required")
	}

	key := fmt.Sprintf("images/%s_%s", uuid.New(), req.Filename)

	url, err := s.objects.PresignPutURL(r.Context(), s.bucket, key, presignExpiry)
	if err != nil {
		if errors.Is(err, storage.ErrPresignNotSupported) {
			return nil, CodedErrorf(http.StatusNotImplemented, "presigned uploads are not supported by this deployment")
		}
		slog.Error("error generating presigned url", "key", key, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to generate presigned url")
	}

	return api.PresignedUrlResponse{Url: url, S3Key: key}, nil
}

func (s *BackendService) RegisterImage(r *http.Request) (any, error) {
	req, err := ParseRequest[api.RegisterImageRequest](r)
	if err != nil {
		return nil, err
	}
	if req.S3Key == "" || req.OriginalFilename == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "s3 key and original filename are required")
	}

	record := &database.Image{
		Id:               uuid.New(),
		Filename:         req.OriginalFilename,
		OriginalFilename: req.OriginalFilename,
		S3Bucket:         s.bucket,
		S3Key:            req.S3Key,
		FileSize:         req.FileSize,
		Width:            req.Width,
		Height:           req.Height,
		Format:           req.Format,
	}
	if err := s.db.WithContext(r.Context()).Create(record).Error; err != nil {
		slog.Error("error registering image", "s3_key", req.S3Key, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to register image")
	}

	return api.RegisterImageResponse{Id: record.Id}, nil
}

func (s *BackendService) GetImage(w http.ResponseWriter, r *http.Request) {
	imageId, err := URLParamUUID(r, "image_id")
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()

	record, err := database.GetImage(ctx, s.db, imageId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, CodedErrorf(http.StatusNotFound, "image not found"))
			return
		}
		slog.Error("error getting image record", "image_id", imageId, "error", err)
		writeError(w, CodedErrorf(http.StatusInternalServerError, "error retrieving image record"))
		return
	}

	data, err := s.objects.GetObject(ctx, record.S3Bucket, record.S3Key)
	if err != nil {
		slog.Error("error fetching image bytes", "image_id", imageId, "key", record.S3Key, "error", err)
		writeError(w, CodedErrorf(http.StatusInternalServerError, "error retrieving image data"))
		return
	}

	w.Header().Set("Content-Type", record.Format)
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		slog.Error("error writing image response", "image_id", imageId, "error", err)
	}
}

func (s *BackendService) ListImages(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListImagesRequest](r)
	if err != nil {
		return nil, err
	}
	if params.Limit <= 0 {
		params.Limit = defaultPageSize
	}

	ctx := r.Context()

	var total int64
	if err := s.db.WithContext(ctx).Model(&database.Image{}).Count(&total).Error; err != nil {
		slog.Error("error counting images", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error listing images")
	}

	var records []database.Image
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(params.Limit).
		Offset(params.Offset).
		Find(&records).Error; err != nil {
		slog.Error("error listing images", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error listing images")
	}

	return api.ListImagesResponse{Images: convertImages(records), Total: total}, nil
}

func (s *BackendService) SearchImages(r *http.Request) (any, error) {
	req, err := ParseRequest[api.SearchImagesRequest](r)
	if err != nil {
		return nil, err
	}
	if req.Query == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "query is required")
	}
	if req.TopK <= 0 {
		req.TopK = defaultSearchTopK
	}
	if s.vectorizer == nil {
		return nil, CodedErrorf(http.StatusServiceUnavailable, "similarity search is not available: no embedding service configured")
	}

	ctx := r.Context()

	var candidates []database.Image
	if err := s.db.WithContext(ctx).
		Select("id", "vector").
		Where("vector IS NOT NULL").
		Find(&candidates).Error; err != nil {
		slog.Error("error fetching image vectors", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error fetching image vectors")
	}
	if len(candidates) == 0 {
		return api.SearchImagesResponse{Results: []api.SearchResult{}}, nil
	}

	queryVector, err := s.vectorizer.VectorizeText(ctx, req.Query)
	if err != nil {
		slog.Error("error vectorizing search query", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to vectorize search query")
	}
	if queryVector == nil {
		return api.SearchImagesResponse{Results: []api.SearchResult{}}, nil
	}

	ids := make([]string, 0, len(candidates))
	vectors := make([][]float32, 0, len(candidates))
	for _, candidate := range candidates {
		var vector []float32
		if err := json.Unmarshal(candidate.Vector, &vector); err != nil {
			slog.Warn("skipping image with malformed vector", "image_id", candidate.Id, "error", err)
			continue
		}
		ids = append(ids, candidate.Id.String())
		vectors = append(vectors, vector)
	}

	hits, err := s.vectorizer.SearchSimilar(ctx, queryVector, ids, vectors, req.TopK)
	if err != nil {
		slog.Error("error searching similar images", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to search similar images")
	}

	results := make([]api.SearchResult, 0, len(hits))
	for _, hit := range hits {
		id, err := uuid.Parse(hit.Id)
		if err != nil {
			continue
		}
		results = append(results, api.SearchResult{Id: id, Similarity: hit.Similarity})
	}

	return api.SearchImagesResponse{Results: results}, nil
}

func (s *BackendService) CreateAnnotation(r *http.Request) (any, error) {
	req, err := ParseRequest[api.CreateAnnotationRequest](r)
	if err != nil {
		return nil, err
	}

	switch req.Type {
	case database.AnnotationBoundingBox, database.AnnotationPolygon, database.AnnotationPoint:
	default:
		return nil, CodedErrorf(http.StatusBadRequest, "invalid annotation type '%s'", req.Type)
	}
	if req.Label == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "label is required")
	}

	source := req.Source
	if source == "" {
		source = database.SourceManual
	}

	ctx := r.Context()

	if _, err := database.GetImage(ctx, s.db, req.ImageId); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "image not found")
		}
		slog.Error("error getting image record", "image_id", req.ImageId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving image record")
	}

	annotation := &database.Annotation{
		Id:         uuid.New(),
		ImageId:    req.ImageId,
		Type:       req.Type,
		X:          req.X,
		Y:          req.Y,
		Width:      req.Width,
		Height:     req.Height,
		Points:     []byte(req.Points),
		Label:      req.Label,
		Source:     source,
		Confidence: req.Confidence,
	}
	if err := s.db.WithContext(ctx).Create(annotation).Error; err != nil {
		slog.Error("error creating annotation", "image_id", req.ImageId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create annotation")
	}

	return api.CreateAnnotationResponse{Id: annotation.Id}, nil
}

func (s *BackendService) GetImageAnnotations(r *http.Request) (any, error) {
	imageId, err := URLParamUUID(r, "image_id")
	if err != nil {
		return nil, err
	}

	annotations, err := database.GetAnnotations(r.Context(), s.db, imageId)
	if err != nil {
		slog.Error("error getting annotations", "image_id", imageId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving annotations")
	}

	return api.ListAnnotationsResponse{
		Annotations: convertAnnotations(annotations),
		Total:       len(annotations),
	}, nil
}

func (s *BackendService) UpdateAnnotation(r *http.Request) (any, error) {
	annotationId, err := URLParamUUID(r, "annotation_id")
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.UpdateAnnotationRequest](r)
	if err != nil {
		return nil, err
	}

	// Only fields present in the request change; absent fields keep their
	// stored values.
	updates := map[string]any{}
	if req.X != nil {
		updates["x"] = *req.X
	}
	if req.Y != nil {
		updates["y"] = *req.Y
	}
	if req.Width != nil {
		updates["width"] = *req.Width
	}
	if req.Height != nil {
		updates["height"] = *req.Height
	}
	if req.Label != nil {
		updates["label"] = *req.Label
	}
	if req.Confidence != nil {
		updates["confidence"] = *req.Confidence
	}
	if len(updates) == 0 {
		return nil, CodedErrorf(http.StatusBadRequest, "no fields to update")
	}

	result := s.db.WithContext(r.Context()).
		Model(&database.Annotation{}).
		Where("id = ?", annotationId).
		Updates(updates)
	if result.Error != nil {
		slog.Error("error updating annotation", "annotation_id", annotationId, "error", result.Error)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to update annotation")
	}
	if result.RowsAffected == 0 {
		return nil, CodedErrorf(http.StatusNotFound, "annotation not found")
	}

	return nil, nil
}

func (s *BackendService) DeleteAnnotation(r *http.Request) (any, error) {
	annotationId, err := URLParamUUID(r, "annotation_id")
	if err != nil {
		return nil, err
	}

	result := s.db.WithContext(r.Context()).Delete(&database.Annotation{}, "id = ?", annotationId)
	if result.Error != nil {
		slog.Error("error deleting annotation", "annotation_id", annotationId, "error", result.Error)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to delete annotation")
	}
	if result.RowsAffected == 0 {
		return nil, CodedErrorf(http.StatusNotFound, "annotation not found")
	}

	return nil, nil
}

func (s *BackendService) GetLabels(r *http.Request) (any, error) {
	labels, err := database.GetDistinctLabels(r.Context(), s.db)
	if err != nil {
		slog.Error("error getting labels", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving labels")
	}
	return api.LabelsResponse{Labels: labels}, nil
}

// ExportDataset is a raw handler because success writes a zip attachment
// rather than json.
func (s *BackendService) ExportDataset(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest[api.ExportRequest](r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := validateDatasetName(req.Name); err != nil {
		writeError(w, err)
		return
	}

	archive, err := s.exporter.ExportDataset(r.Context(), export.Request{
		Name:   req.Name,
		Format: export.Format(req.Format),
		Labels: req.Labels,
	})
	if err != nil {
		writeError(w, exportError(err))
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", req.Name+".zip"))
	w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
	if _, err := w.Write(archive); err != nil {
		slog.Error("error writing archive response", "name", req.Name, "error", err)
	}
}

func exportError(err error) error {
	switch {
	case errors.Is(err, export.ErrNoMatchingImages):
		return CodedError(http.StatusNotFound, err)
	case errors.Is(err, export.ErrNoLabelsFound):
		return CodedError(http.StatusNotFound, err)
	case errors.Is(err, export.ErrUnsupportedFormat):
		return CodedError(http.StatusUnprocessableEntity, err)
	default:
		return CodedError(http.StatusInternalServerError, err)
	}
}
