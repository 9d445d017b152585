package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/amillerrr/media-ingest/internal/auth"
	"github.com/amillerrr/media-ingest/internal/config"
	"github.com/amillerrr/media-ingest/internal/media"
	"github.com/amillerrr/media-ingest/pkg/models"
)

var tracer = otel.Tracer("ingest-api")

// Configuration constants
const (
	MaxTitleLength     = 255
	MaxListAssets      = 100
	MaxRequestBodySize = 1 << 20 // 1 MB, JSON bodies only
)

// Ingester is the upload pipeline surface the handlers depend on.
type Ingester interface {
	IngestVideo(ctx context.Context, ownerID, assetID string, upload io.Reader, contentType string, declaredSize int64) (*models.AssetRecord, error)
	IngestThumbnail(ctx context.Context, ownerID, assetID string, upload io.Reader, contentType string, declaredSize int64) (*models.AssetRecord, error)
}

// AssetStore is the record store surface the handlers depend on.
type AssetStore interface {
	CreateAsset(ctx context.Context, assetID, ownerID, title string) (*models.AssetRecord, error)
	GetAsset(ctx context.Context, assetID string) (*models.AssetRecord, error)
	ListAssetsByOwner(ctx context.Context, ownerID string, limit int32, startKey map[string]dynamotypes.AttributeValue) ([]models.AssetRecord, map[string]dynamotypes.AttributeValue, error)
}

// Presigner mints time-limited read URLs for stored object keys.
type Presigner interface {
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Handlers contains all HTTP handlers for the API.
type Handlers struct {
	cfg         *config.Config
	log         *slog.Logger
	ingester    Ingester
	assets      AssetStore
	presigner   Presigner
	jwtService  *auth.JWTService
	rateLimiter *auth.RateLimiter
}

// HandlersConfig holds dependencies for handlers.
type HandlersConfig struct {
	Config      *config.Config
	Logger      *slog.Logger
	Ingester    Ingester
	Assets      AssetStore
	Presigner   Presigner
	JWTService  *auth.JWTService
	RateLimiter *auth.RateLimiter
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cfg *HandlersConfig) *Handlers {
	return &Handlers{
		cfg:         cfg.Config,
		log:         cfg.Logger,
		ingester:    cfg.Ingester,
		assets:      cfg.Assets,
		presigner:   cfg.Presigner,
		jwtService:  cfg.JWTService,
		rateLimiter: cfg.RateLimiter,
	}
}

// writeJSON writes a JSON response.
func (h *Handlers) writeJSON(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.ErrorContext(ctx, "Failed to encode JSON response", "error", err)
	}
}

// writeError writes a structured error response with a stable kind.
func (h *Handlers) writeError(ctx context.Context, w http.ResponseWriter, status int, kind, message string) {
	h.writeJSON(ctx, w, status, map[string]string{"error": kind, "message": message})
}

// writePipelineError maps a pipeline error onto a client response.
// Processing and storage diagnostics stay in the server logs; the client
// only sees the stable kind and a generic message.
func (h *Handlers) writePipelineError(ctx context.Context, w http.ResponseWriter, err error) {
	status, kind, message := classifyError(err)
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(ctx, "Upload pipeline failed", "kind", kind, "error", err)
	} else {
		h.log.WarnContext(ctx, "Upload rejected", "kind", kind, "error", err)
	}
	h.writeError(ctx, w, status, kind, message)
}

// classifyError maps sentinel errors onto HTTP statuses. Messages for
// 5xx-class errors are deliberately opaque.
func classifyError(err error) (status int, kind, message string) {
	switch {
	case errors.Is(err, models.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request", err.Error()
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized", "authentication required"
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, "forbidden", "you do not own this asset"
	case errors.Is(err, models.ErrAssetNotFound):
		return http.StatusNotFound, "not_found", "asset not found"
	case errors.Is(err, models.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large", err.Error()
	case errors.Is(err, models.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, "unsupported_media_type", err.Error()
	case errors.Is(err, models.ErrProcessing):
		return http.StatusBadGateway, "processing_failed", "media processing failed"
	case errors.Is(err, models.ErrStorage):
		return http.StatusBadGateway, "storage_failed", "storage failure"
	default:
		return http.StatusInternalServerError, "internal", "internal server error"
	}
}

// limitRequestBody wraps the request body with a size limit.
func (h *Handlers) limitRequestBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
}

// callerID returns the authenticated user, set by the auth middleware.
func (h *Handlers) callerID(ctx context.Context) (string, bool) {
	claims, ok := auth.GetClaimsFromContext(ctx)
	if !ok || claims.Username == "" {
		return "", false
	}
	return claims.Username, true
}

// LoginHandler handles user authentication and returns a JWT token.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clientIP := auth.GetClientIP(r)

	if h.rateLimiter != nil && h.rateLimiter.IsLimited(clientIP) {
		h.writeError(ctx, w, http.StatusTooManyRequests, "rate_limited", "Too many failed attempts")
		return
	}

	username, password, ok := r.BasicAuth()
	if !ok {
		h.writeError(ctx, w, http.StatusUnauthorized, "unauthorized", "Missing credentials")
		return
	}

	expectedUsername, expectedPassword, err := h.cfg.GetAPICredentials()
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to get API credentials", "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "internal", "Server configuration error")
		return
	}

	if username != expectedUsername || password != expectedPassword {
		if h.rateLimiter != nil {
			h.rateLimiter.RecordFailure(clientIP)
		}
		h.log.WarnContext(ctx, "Failed login attempt", "username", username, "ip", clientIP)
		h.writeError(ctx, w, http.StatusUnauthorized, "unauthorized", "Invalid credentials")
		return
	}

	token, err := h.jwtService.GenerateToken(username)
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to generate token", "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "internal", "Failed to generate token")
		return
	}

	if h.rateLimiter != nil {
		h.rateLimiter.Reset(clientIP)
	}
	h.log.InfoContext(ctx, "Successful login", "username", username, "ip", clientIP)
	h.writeJSON(ctx, w, http.StatusOK, map[string]string{"token": token})
}

// CreateAssetRequest is the request payload for asset creation.
type CreateAssetRequest struct {
	Title string `json:"title"`
}

// CreateAssetHandler registers a new draft asset owned by the caller.
func (h *Handlers) CreateAssetHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := h.callerID(ctx)
	if !ok {
		h.writeError(ctx, w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	h.limitRequestBody(w, r)

	var req CreateAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.writeError(ctx, w, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
			return
		}
		h.writeError(ctx, w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if len(req.Title) > MaxTitleLength {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid_request", "title too long")
		return
	}

	assetID := uuid.New().String()
	asset, err := h.assets.CreateAsset(ctx, assetID, ownerID, strings.TrimSpace(req.Title))
	if err != nil {
		h.writePipelineError(ctx, w, err)
		return
	}

	h.log.InfoContext(ctx, "Asset created", "assetId", assetID, "ownerId", ownerID)
	h.writeJSON(ctx, w, http.StatusCreated, models.AssetResponse{AssetRecord: *asset})
}

// GetAssetHandler returns one of the caller's assets with read URLs
// presigned for this request.
func (h *Handlers) GetAssetHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := h.callerID(ctx)
	if !ok {
		h.writeError(ctx, w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	assetID := r.PathValue("assetID")
	if assetID == "" {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid_request", "asset id is required")
		return
	}

	asset, err := h.assets.GetAsset(ctx, assetID)
	if err != nil {
		h.writePipelineError(ctx, w, err)
		return
	}
	if asset.OwnerID != ownerID {
		h.writeError(ctx, w, http.StatusForbidden, "forbidden", "you do not own this asset")
		return
	}

	resp, err := h.toAssetResponse(ctx, asset)
	if err != nil {
		h.writePipelineError(ctx, w, err)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, resp)
}

// ListAssetsHandler returns the caller's assets, newest first.
func (h *Handlers) ListAssetsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := h.callerID(ctx)
	if !ok {
		h.writeError(ctx, w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	assets, _, err := h.assets.ListAssetsByOwner(ctx, ownerID, MaxListAssets, nil)
	if err != nil {
		h.writePipelineError(ctx, w, err)
		return
	}

	responses := make([]models.AssetResponse, 0, len(assets))
	for i := range assets {
		resp, err := h.toAssetResponse(ctx, &assets[i])
		if err != nil {
			h.writePipelineError(ctx, w, err)
			return
		}
		responses = append(responses, *resp)
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]any{
		"assets": responses,
		"count":  len(responses),
	})
}

// UploadVideoHandler ingests a video for an existing asset. The multipart
// body is streamed: the payload never passes through an intermediate
// form-parse spool file.
func (h *Handlers) UploadVideoHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID := uuid.New().String()
	ctx, span := tracer.Start(ctx, "upload-video-handler",
		trace.WithAttributes(
			attribute.String("handler", "upload-video"),
			attribute.String("request.id", requestID),
		))
	defer span.End()

	logger := h.log.With("requestId", requestID)

	ownerID, ok := h.callerID(ctx)
	if !ok {
		h.writeError(ctx, w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	assetID := r.PathValue("assetID")
	span.SetAttributes(attribute.String("asset.id", assetID))

	// Declared size comes from the request; the pipeline rejects
	// oversized uploads before any file is written, and MaxBytesReader
	// backstops chunked bodies that lie.
	declaredSize := r.ContentLength
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxVideoBytes)

	part, mediaType, err := openMultipartField(r, "video")
	if err != nil {
		h.writePipelineError(ctx, w, err)
		return
	}
	defer part.Close()

	asset, err := h.ingester.IngestVideo(ctx, ownerID, assetID, part, mediaType, declaredSize)
	if err != nil {
		span.RecordError(err)
		h.writePipelineError(ctx, w, err)
		return
	}

	resp, err := h.toAssetResponse(ctx, asset)
	if err != nil {
		h.writePipelineError(ctx, w, err)
		return
	}

	logger.InfoContext(ctx, "Video upload complete",
		"assetId", assetID,
		"classification", asset.Classification,
		"sizeBytes", asset.FileSizeBytes,
	)
	h.writeJSON(ctx, w, http.StatusOK, resp)
}

// UploadThumbnailHandler ingests a thumbnail image for an existing asset.
func (h *Handlers) UploadThumbnailHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID := uuid.New().String()
	ctx, span := tracer.Start(ctx, "upload-thumbnail-handler",
		trace.WithAttributes(
			attribute.String("handler", "upload-thumbnail"),
			attribute.String("request.id", requestID),
		))
	defer span.End()

	ownerID, ok := h.callerID(ctx)
	if !ok {
		h.writeError(ctx, w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	assetID := r.PathValue("assetID")
	span.SetAttributes(attribute.String("asset.id", assetID))

	declaredSize := r.ContentLength
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxThumbnailBytes)

	part, mediaType, err := openMultipartField(r, "thumbnail")
	if err != nil {
		h.writePipelineError(ctx, w, err)
		return
	}
	defer part.Close()

	asset, err := h.ingester.IngestThumbnail(ctx, ownerID, assetID, part, mediaType, declaredSize)
	if err != nil {
		span.RecordError(err)
		h.writePipelineError(ctx, w, err)
		return
	}

	resp, err := h.toAssetResponse(ctx, asset)
	if err != nil {
		h.writePipelineError(ctx, w, err)
		return
	}

	h.log.InfoContext(ctx, "Thumbnail upload complete", "assetId", assetID, "requestId", requestID)
	h.writeJSON(ctx, w, http.StatusOK, resp)
}

// openMultipartField streams the multipart body until it reaches the named
// field and returns the part along with its parsed content type.
func openMultipartField(r *http.Request, field string) (*multipart.Part, string, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, "", fmt.Errorf("%w: expected multipart body: %v", models.ErrInvalidRequest, err)
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, "", fmt.Errorf("%w: missing %q field", models.ErrInvalidRequest, field)
		}
		if err != nil {
			return nil, "", fmt.Errorf("%w: malformed multipart body: %v", models.ErrInvalidRequest, err)
		}
		if part.FormName() != field {
			part.Close()
			continue
		}

		mediaType, _, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			part.Close()
			return nil, "", fmt.Errorf("%w: unparseable content type", models.ErrUnsupportedMediaType)
		}
		return part, mediaType, nil
	}
}

// toAssetResponse converts a record to its wire form, deriving presigned
// read URLs. URLs are minted per request and never stored.
func (h *Handlers) toAssetResponse(ctx context.Context, asset *models.AssetRecord) (*models.AssetResponse, error) {
	resp := &models.AssetResponse{AssetRecord: *asset}

	if asset.VideoKey != "" {
		url, err := h.presigner.Presign(ctx, asset.VideoKey, h.cfg.Pipeline.PresignTTL)
		if err != nil {
			return nil, err
		}
		resp.VideoURL = url
	}
	if asset.ThumbnailKey != "" {
		url, err := h.presigner.Presign(ctx, asset.ThumbnailKey, h.cfg.Pipeline.PresignTTL)
		if err != nil {
			return nil, err
		}
		resp.ThumbnailURL = url
	}

	return resp, nil
}
