package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/amillerrr/media-ingest/internal/auth"
	"github.com/amillerrr/media-ingest/internal/config"
	"github.com/amillerrr/media-ingest/pkg/models"
)

type fakeIngester struct {
	videoErr error
	thumbErr error

	gotOwnerID      string
	gotAssetID      string
	gotContentType  string
	gotDeclaredSize int64
	gotBody         []byte
}

func (f *fakeIngester) IngestVideo(ctx context.Context, ownerID, assetID string, upload io.Reader, contentType string, declaredSize int64) (*models.AssetRecord, error) {
	if f.videoErr != nil {
		return nil, f.videoErr
	}
	f.gotOwnerID = ownerID
	f.gotAssetID = assetID
	f.gotContentType = contentType
	f.gotDeclaredSize = declaredSize
	body, err := io.ReadAll(upload)
	if err != nil {
		return nil, err
	}
	f.gotBody = body
	return &models.AssetRecord{
		AssetID:        assetID,
		OwnerID:        ownerID,
		Status:         models.StatusReady,
		VideoKey:       "landscape/abc.mp4",
		Classification: models.ClassLandscape,
		FileSizeBytes:  int64(len(body)),
	}, nil
}

func (f *fakeIngester) IngestThumbnail(ctx context.Context, ownerID, assetID string, upload io.Reader, contentType string, declaredSize int64) (*models.AssetRecord, error) {
	if f.thumbErr != nil {
		return nil, f.thumbErr
	}
	f.gotOwnerID = ownerID
	f.gotAssetID = assetID
	f.gotContentType = contentType
	f.gotDeclaredSize = declaredSize
	return &models.AssetRecord{
		AssetID:      assetID,
		OwnerID:      ownerID,
		ThumbnailKey: "thumbnails/abc.png",
	}, nil
}

type fakeAssetStore struct {
	assets    map[string]*models.AssetRecord
	createErr error
	listErr   error
}

func (f *fakeAssetStore) CreateAsset(ctx context.Context, assetID, ownerID, title string) (*models.AssetRecord, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	asset := &models.AssetRecord{
		AssetID: assetID,
		OwnerID: ownerID,
		Title:   title,
		Status:  models.StatusDraft,
	}
	f.assets[assetID] = asset
	return asset, nil
}

func (f *fakeAssetStore) GetAsset(ctx context.Context, assetID string) (*models.AssetRecord, error) {
	asset, ok := f.assets[assetID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrAssetNotFound, assetID)
	}
	return asset, nil
}

func (f *fakeAssetStore) ListAssetsByOwner(ctx context.Context, ownerID string, limit int32, startKey map[string]dynamotypes.AttributeValue) ([]models.AssetRecord, map[string]dynamotypes.AttributeValue, error) {
	if f.listErr != nil {
		return nil, nil, f.listErr
	}
	var out []models.AssetRecord
	for _, asset := range f.assets {
		if asset.OwnerID == ownerID {
			out = append(out, *asset)
		}
	}
	return out, nil, nil
}

type fakePresigner struct {
	err error
}

func (f *fakePresigner) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://signed.example.com/" + key, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		API: config.APIConfig{
			Port:      "8080",
			Username:  "admin",
			Password:  "correct-password",
			JWTSecret: "test-secret-key-that-is-long-enough!",
		},
		Pipeline: config.PipelineConfig{
			PresignTTL: 10 * time.Minute,
		},
	}
}

func testHandlers(t *testing.T, ingester *fakeIngester, assets *fakeAssetStore) *Handlers {
	t.Helper()

	cfg := testConfig()
	jwtService, err := auth.NewJWTService([]byte(cfg.API.JWTSecret))
	if err != nil {
		t.Fatal(err)
	}

	return NewHandlers(&HandlersConfig{
		Config:     cfg,
		Logger:     slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
		Ingester:   ingester,
		Assets:     assets,
		Presigner:  &fakePresigner{},
		JWTService: jwtService,
	})
}

func authedRequest(r *http.Request, username string) *http.Request {
	claims := &auth.Claims{Username: username}
	return r.WithContext(auth.SetClaimsInContext(r.Context(), claims))
}

func multipartBody(t *testing.T, field, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="upload"`, field))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, writer.FormDataContentType()
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"invalid request", models.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
		{"unauthorized", models.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", models.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"not found", models.ErrAssetNotFound, http.StatusNotFound, "not_found"},
		{"too large", models.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, "payload_too_large"},
		{"unsupported type", models.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType, "unsupported_media_type"},
		{"processing", models.ErrProcessing, http.StatusBadGateway, "processing_failed"},
		{"storage", models.ErrStorage, http.StatusBadGateway, "storage_failed"},
		{"wrapped sentinel", fmt.Errorf("context: %w", models.ErrForbidden), http.StatusForbidden, "forbidden"},
		{"unknown", errors.New("surprise"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, kind, _ := classifyError(tt.err)
			if status != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, status)
			}
			if kind != tt.wantKind {
				t.Errorf("expected kind %s, got %s", tt.wantKind, kind)
			}
		})
	}
}

func TestClassifyErrorHidesInternalDetail(t *testing.T) {
	err := fmt.Errorf("%w: ffprobe: exit status 1: /tmp/secret-path", models.ErrProcessing)
	_, _, message := classifyError(err)
	if strings.Contains(message, "ffprobe") || strings.Contains(message, "/tmp") {
		t.Errorf("processing detail leaked to the client: %q", message)
	}
}

func TestLoginHandler(t *testing.T) {
	tests := []struct {
		name       string
		username   string
		password   string
		noAuth     bool
		wantStatus int
	}{
		{"valid credentials", "admin", "correct-password", false, http.StatusOK},
		{"wrong password", "admin", "wrong", false, http.StatusUnauthorized},
		{"wrong username", "intruder", "correct-password", false, http.StatusUnauthorized},
		{"missing credentials", "", "", true, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testHandlers(t, &fakeIngester{}, &fakeAssetStore{assets: map[string]*models.AssetRecord{}})

			req := httptest.NewRequest(http.MethodPost, "/login", nil)
			if !tt.noAuth {
				req.SetBasicAuth(tt.username, tt.password)
			}
			rec := httptest.NewRecorder()
			h.LoginHandler(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				var resp map[string]string
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatal(err)
				}
				if resp["token"] == "" {
					t.Error("expected a token in the response")
				}
			}
		})
	}
}

func TestCreateAssetHandler(t *testing.T) {
	store := &fakeAssetStore{assets: map[string]*models.AssetRecord{}}
	h := testHandlers(t, &fakeIngester{}, store)

	body := strings.NewReader(`{"title":"My first upload"}`)
	req := authedRequest(httptest.NewRequest(http.MethodPost, "/api/assets", body), "alice")
	rec := httptest.NewRecorder()
	h.CreateAssetHandler(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp models.AssetResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.AssetID == "" {
		t.Error("expected a generated asset id")
	}
	if resp.OwnerID != "alice" {
		t.Errorf("expected owner alice, got %s", resp.OwnerID)
	}
	if resp.Title != "My first upload" {
		t.Errorf("unexpected title %q", resp.Title)
	}
	if resp.Status != models.StatusDraft {
		t.Errorf("expected draft status, got %s", resp.Status)
	}
}

func TestCreateAssetHandlerRejections(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		authed     bool
		wantStatus int
	}{
		{"no claims", `{"title":"x"}`, false, http.StatusUnauthorized},
		{"malformed body", `{"title":`, true, http.StatusBadRequest},
		{"title too long", fmt.Sprintf(`{"title":%q}`, strings.Repeat("x", MaxTitleLength+1)), true, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testHandlers(t, &fakeIngester{}, &fakeAssetStore{assets: map[string]*models.AssetRecord{}})

			req := httptest.NewRequest(http.MethodPost, "/api/assets", strings.NewReader(tt.body))
			if tt.authed {
				req = authedRequest(req, "alice")
			}
			rec := httptest.NewRecorder()
			h.CreateAssetHandler(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGetAssetHandler(t *testing.T) {
	store := &fakeAssetStore{assets: map[string]*models.AssetRecord{
		"asset-1": {
			AssetID:      "asset-1",
			OwnerID:      "alice",
			Status:       models.StatusReady,
			VideoKey:     "landscape/abc.mp4",
			ThumbnailKey: "thumbnails/abc.png",
		},
	}}
	h := testHandlers(t, &fakeIngester{}, store)

	req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/assets/asset-1", nil), "alice")
	req.SetPathValue("assetID", "asset-1")
	rec := httptest.NewRecorder()
	h.GetAssetHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp models.AssetResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.VideoURL != "https://signed.example.com/landscape/abc.mp4" {
		t.Errorf("unexpected video URL %q", resp.VideoURL)
	}
	if resp.ThumbnailURL != "https://signed.example.com/thumbnails/abc.png" {
		t.Errorf("unexpected thumbnail URL %q", resp.ThumbnailURL)
	}
}

func TestGetAssetHandlerNeverReturnsBareKeys(t *testing.T) {
	store := &fakeAssetStore{assets: map[string]*models.AssetRecord{
		"asset-1": {
			AssetID:  "asset-1",
			OwnerID:  "alice",
			VideoKey: "landscape/raw-key.mp4",
		},
	}}
	h := testHandlers(t, &fakeIngester{}, store)

	req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/assets/asset-1", nil), "alice")
	req.SetPathValue("assetID", "asset-1")
	rec := httptest.NewRecorder()
	h.GetAssetHandler(rec, req)

	var raw map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["videoKey"]; ok {
		t.Error("bare object key leaked into the response")
	}
}

func TestGetAssetHandlerRejections(t *testing.T) {
	store := &fakeAssetStore{assets: map[string]*models.AssetRecord{
		"asset-1": {AssetID: "asset-1", OwnerID: "alice"},
	}}

	tests := []struct {
		name       string
		caller     string
		assetID    string
		wantStatus int
	}{
		{"not the owner", "mallory", "asset-1", http.StatusForbidden},
		{"unknown asset", "alice", "asset-9", http.StatusNotFound},
		{"missing asset id", "alice", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testHandlers(t, &fakeIngester{}, store)

			req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/assets/x", nil), tt.caller)
			req.SetPathValue("assetID", tt.assetID)
			rec := httptest.NewRecorder()
			h.GetAssetHandler(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestListAssetsHandler(t *testing.T) {
	store := &fakeAssetStore{assets: map[string]*models.AssetRecord{
		"asset-1": {AssetID: "asset-1", OwnerID: "alice"},
		"asset-2": {AssetID: "asset-2", OwnerID: "alice"},
		"asset-3": {AssetID: "asset-3", OwnerID: "bob"},
	}}
	h := testHandlers(t, &fakeIngester{}, store)

	req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/assets", nil), "alice")
	rec := httptest.NewRecorder()
	h.ListAssetsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Assets []models.AssetResponse `json:"assets"`
		Count  int                    `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 {
		t.Errorf("expected 2 assets for alice, got %d", resp.Count)
	}
}

func TestUploadVideoHandler(t *testing.T) {
	ingester := &fakeIngester{}
	h := testHandlers(t, ingester, &fakeAssetStore{assets: map[string]*models.AssetRecord{}})

	body, contentType := multipartBody(t, "video", "video/mp4", []byte("raw video bytes"))
	req := authedRequest(httptest.NewRequest(http.MethodPost, "/api/assets/asset-1/video", body), "alice")
	req.Header.Set("Content-Type", contentType)
	req.SetPathValue("assetID", "asset-1")
	rec := httptest.NewRecorder()
	h.UploadVideoHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if ingester.gotOwnerID != "alice" || ingester.gotAssetID != "asset-1" {
		t.Errorf("pipeline called with owner=%s asset=%s", ingester.gotOwnerID, ingester.gotAssetID)
	}
	if ingester.gotContentType != "video/mp4" {
		t.Errorf("expected content type video/mp4, got %s", ingester.gotContentType)
	}
	if string(ingester.gotBody) != "raw video bytes" {
		t.Errorf("pipeline received %q", ingester.gotBody)
	}

	var resp models.AssetResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.VideoURL == "" {
		t.Error("expected a presigned video URL in the response")
	}
}

func TestUploadVideoHandlerErrors(t *testing.T) {
	tests := []struct {
		name        string
		pipelineErr error
		wantStatus  int
	}{
		{"forbidden", fmt.Errorf("%w: not yours", models.ErrForbidden), http.StatusForbidden},
		{"not found", fmt.Errorf("%w: asset-1", models.ErrAssetNotFound), http.StatusNotFound},
		{"too large", fmt.Errorf("%w: too big", models.ErrPayloadTooLarge), http.StatusRequestEntityTooLarge},
		{"unsupported", fmt.Errorf("%w: webm", models.ErrUnsupportedMediaType), http.StatusUnsupportedMediaType},
		{"processing", fmt.Errorf("%w: ffprobe failed", models.ErrProcessing), http.StatusBadGateway},
		{"storage", fmt.Errorf("%w: put failed", models.ErrStorage), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testHandlers(t, &fakeIngester{videoErr: tt.pipelineErr}, &fakeAssetStore{assets: map[string]*models.AssetRecord{}})

			body, contentType := multipartBody(t, "video", "video/mp4", []byte("raw video bytes"))
			req := authedRequest(httptest.NewRequest(http.MethodPost, "/api/assets/asset-1/video", body), "alice")
			req.Header.Set("Content-Type", contentType)
			req.SetPathValue("assetID", "asset-1")
			rec := httptest.NewRecorder()
			h.UploadVideoHandler(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestUploadVideoHandlerBadBodies(t *testing.T) {
	tests := []struct {
		name        string
		body        io.Reader
		contentType string
	}{
		{"not multipart", strings.NewReader("just bytes"), "application/octet-stream"},
		{"wrong field name", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testHandlers(t, &fakeIngester{}, &fakeAssetStore{assets: map[string]*models.AssetRecord{}})

			body := tt.body
			contentType := tt.contentType
			if body == nil {
				var buf *bytes.Buffer
				buf, contentType = multipartBody(t, "not-video", "video/mp4", []byte("x"))
				body = buf
			}

			req := authedRequest(httptest.NewRequest(http.MethodPost, "/api/assets/asset-1/video", body), "alice")
			req.Header.Set("Content-Type", contentType)
			req.SetPathValue("assetID", "asset-1")
			rec := httptest.NewRecorder()
			h.UploadVideoHandler(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestUploadVideoHandlerUnauthenticated(t *testing.T) {
	h := testHandlers(t, &fakeIngester{}, &fakeAssetStore{assets: map[string]*models.AssetRecord{}})

	body, contentType := multipartBody(t, "video", "video/mp4", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/assets/asset-1/video", body)
	req.Header.Set("Content-Type", contentType)
	req.SetPathValue("assetID", "asset-1")
	rec := httptest.NewRecorder()
	h.UploadVideoHandler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestUploadThumbnailHandler(t *testing.T) {
	ingester := &fakeIngester{}
	h := testHandlers(t, ingester, &fakeAssetStore{assets: map[string]*models.AssetRecord{}})

	body, contentType := multipartBody(t, "thumbnail", "image/png", []byte("png bytes"))
	req := authedRequest(httptest.NewRequest(http.MethodPost, "/api/assets/asset-1/thumbnail", body), "alice")
	req.Header.Set("Content-Type", contentType)
	req.SetPathValue("assetID", "asset-1")
	rec := httptest.NewRecorder()
	h.UploadThumbnailHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ingester.gotContentType != "image/png" {
		t.Errorf("expected content type image/png, got %s", ingester.gotContentType)
	}

	var resp models.AssetResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.ThumbnailURL == "" {
		t.Error("expected a presigned thumbnail URL in the response")
	}
}
