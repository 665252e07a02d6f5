package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/placemap/internal/middleware"
	"github.com/hitoshi/placemap/internal/model"
	"github.com/hitoshi/placemap/internal/place"
)

const testMaxBodySize = 16 << 20

// mockPlaceService はPlaceServiceInterfaceのモック実装。
type mockPlaceService struct {
	createFn func(ctx context.Context, userID int64, input place.CreatePlaceInput) (*model.PlaceWithOwner, error)
	listFn   func(ctx context.Context, skip, limit int) ([]*model.PlaceWithOwner, error)
	bboxFn   func(ctx context.Context, minLat, maxLat, minLon, maxLon float64) ([]*model.PlaceWithOwner, error)
	byUserFn func(ctx context.Context, userID int64) ([]*model.PlaceWithOwner, error)
}

func (m *mockPlaceService) CreatePlace(ctx context.Context, userID int64, input place.CreatePlaceInput) (*model.PlaceWithOwner, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, input)
	}
	return &model.PlaceWithOwner{
		Place:         model.Place{ID: 1, Title: input.Title, Lat: input.Lat, Lon: input.Lon, UserID: userID, CreatedAt: time.Now()},
		OwnerUsername: "alice",
	}, nil
}

func (m *mockPlaceService) ListPlaces(ctx context.Context, skip, limit int) ([]*model.PlaceWithOwner, error) {
	if m.listFn != nil {
		return m.listFn(ctx, skip, limit)
	}
	return []*model.PlaceWithOwner{}, nil
}

func (m *mockPlaceService) PlacesByBoundingBox(ctx context.Context, minLat, maxLat, minLon, maxLon float64) ([]*model.PlaceWithOwner, error) {
	if m.bboxFn != nil {
		return m.bboxFn(ctx, minLat, maxLat, minLon, maxLon)
	}
	return []*model.PlaceWithOwner{}, nil
}

func (m *mockPlaceService) PlacesByUser(ctx context.Context, userID int64) ([]*model.PlaceWithOwner, error) {
	if m.byUserFn != nil {
		return m.byUserFn(ctx, userID)
	}
	return []*model.PlaceWithOwner{}, nil
}

// multipartBody はテスト用のマルチパートボディを組み立てる。
func multipartBody(t *testing.T, fields map[string]string, photoName, photoType string, photoBytes []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField(%s): %v", k, err)
		}
	}
	if photoName != "" {
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{`form-data; name="photo"; filename="` + photoName + `"`}
		header["Content-Type"] = []string{photoType}
		pw, err := mw.CreatePart(header)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		if _, err := pw.Write(photoBytes); err != nil {
			t.Fatalf("write photo: %v", err)
		}
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func createRequest(t *testing.T, userID int64, fields map[string]string, photoName, photoType string, photoBytes []byte) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, fields, photoName, photoType, photoBytes)
	req := httptest.NewRequest(http.MethodPost, "/api/places/", body)
	req.Header.Set("Content-Type", contentType)
	if userID != 0 {
		req = req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
	}
	return req
}

// 写真付きスポット作成のフォーム解析とサービス呼び出しを検証
func TestPlaceHandler_Create_Success(t *testing.T) {
	var gotInput place.CreatePlaceInput
	var gotUserID int64
	svc := &mockPlaceService{
		createFn: func(ctx context.Context, userID int64, input place.CreatePlaceInput) (*model.PlaceWithOwner, error) {
			gotUserID = userID
			gotInput = input
			photoBytes, _ := io.ReadAll(input.Photo.Reader)
			if string(photoBytes) != "fake-jpeg" {
				t.Errorf("photo bytes = %q", photoBytes)
			}
			return &model.PlaceWithOwner{
				Place: model.Place{
					ID: 1, Title: input.Title, Lat: input.Lat, Lon: input.Lon,
					PhotoPath: "key.jpg", Tags: place.ParseTags(input.TagsRaw),
					UserID: userID, CreatedAt: time.Now(),
				},
				OwnerUsername: "alice",
				PhotoURL:      "/static/key.jpg",
			}, nil
		},
	}
	h := NewPlaceHandler(svc, testMaxBodySize)

	req := createRequest(t, 5, map[string]string{
		"title":       "Kremlin",
		"description": "историческое место",
		"lat":         "53.2",
		"lon":         "50.15",
		"tags":        "history, landmark",
	}, "photo.jpg", "image/jpeg", []byte("fake-jpeg"))
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if gotUserID != 5 {
		t.Errorf("userID = %d, want 5", gotUserID)
	}
	if gotInput.Title != "Kremlin" || gotInput.Lat != 53.2 || gotInput.Lon != 50.15 {
		t.Errorf("unexpected input: %+v", gotInput)
	}
	if gotInput.Photo == nil || gotInput.Photo.ContentType != "image/jpeg" {
		t.Error("photo input not populated")
	}

	var body placeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body.PhotoURL == nil || *body.PhotoURL != "/static/key.jpg" {
		t.Errorf("photo_url = %v", body.PhotoURL)
	}
	if body.Username != "alice" {
		t.Errorf("user_username = %q", body.Username)
	}
}

// 写真なし・photo_url指定のリクエストが受理されることを検証
func TestPlaceHandler_Create_WithPhotoURL(t *testing.T) {
	var gotInput place.CreatePlaceInput
	svc := &mockPlaceService{
		createFn: func(ctx context.Context, userID int64, input place.CreatePlaceInput) (*model.PlaceWithOwner, error) {
			gotInput = input
			return &model.PlaceWithOwner{
				Place:         model.Place{ID: 1, Title: input.Title, UserID: userID},
				OwnerUsername: "alice",
			}, nil
		},
	}
	h := NewPlaceHandler(svc, testMaxBodySize)

	req := createRequest(t, 5, map[string]string{
		"title":     "remote photo spot",
		"lat":       "0",
		"lon":       "0",
		"photo_url": "https://example.com/p.jpg",
	}, "", "", nil)
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if gotInput.Photo != nil {
		t.Error("photo should be nil")
	}
	if gotInput.PhotoURL != "https://example.com/p.jpg" {
		t.Errorf("photo_url = %q", gotInput.PhotoURL)
	}
}

// 未認証リクエストが401になることを検証
func TestPlaceHandler_Create_Unauthorized(t *testing.T) {
	h := NewPlaceHandler(&mockPlaceService{}, testMaxBodySize)

	req := createRequest(t, 0, map[string]string{
		"title": "t", "lat": "0", "lon": "0",
	}, "", "", nil)
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// 数値に解析できないlat/lonが400になることを検証
func TestPlaceHandler_Create_InvalidCoordinates(t *testing.T) {
	h := NewPlaceHandler(&mockPlaceService{}, testMaxBodySize)

	req := createRequest(t, 5, map[string]string{
		"title": "t", "lat": "not-a-number", "lon": "0",
	}, "", "", nil)
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// サービス層のAPIErrorがHTTPステータスに変換されることを検証
func TestPlaceHandler_Create_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unsupported media type", model.NewUnsupportedMediaTypeError("text/html"), 400, "UNSUPPORTED_MEDIA_TYPE"},
		{"invalid range", model.NewInvalidRangeError("lat"), 400, "INVALID_RANGE"},
		{"photo fetch failed", model.NewPhotoFetchFailedError("timeout"), 502, "PHOTO_FETCH_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockPlaceService{
				createFn: func(ctx context.Context, userID int64, input place.CreatePlaceInput) (*model.PlaceWithOwner, error) {
					return nil, tt.err
				},
			}
			h := NewPlaceHandler(svc, testMaxBodySize)

			req := createRequest(t, 5, map[string]string{
				"title": "valid title", "lat": "0", "lon": "0",
			}, "", "", nil)
			w := httptest.NewRecorder()

			h.Create(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body apiErrorResponse
			json.Unmarshal(w.Body.Bytes(), &body)
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

// skip/limitクエリの受け渡しと不正値の既定値化を検証
func TestPlaceHandler_List(t *testing.T) {
	var gotSkip, gotLimit int
	svc := &mockPlaceService{
		listFn: func(ctx context.Context, skip, limit int) ([]*model.PlaceWithOwner, error) {
			gotSkip, gotLimit = skip, limit
			return []*model.PlaceWithOwner{
				{Place: model.Place{ID: 1, Title: "spot", UserID: 5}, OwnerUsername: "alice"},
			}, nil
		},
	}
	h := NewPlaceHandler(svc, testMaxBodySize)

	req := httptest.NewRequest(http.MethodGet, "/api/places/?skip=20&limit=50", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotSkip != 20 || gotLimit != 50 {
		t.Errorf("skip=%d limit=%d, want 20/50", gotSkip, gotLimit)
	}

	var body []placeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if len(body) != 1 || body[0].Username != "alice" {
		t.Errorf("unexpected body: %+v", body)
	}
	// 写真なしのスポットはphoto_urlがnull
	if body[0].PhotoURL != nil {
		t.Errorf("photo_url = %v, want null", *body[0].PhotoURL)
	}

	// 不正なクエリは既定値(0)としてサービスに渡す
	req = httptest.NewRequest(http.MethodGet, "/api/places/?skip=abc&limit=xyz", nil)
	h.List(httptest.NewRecorder(), req)
	if gotSkip != 0 || gotLimit != 0 {
		t.Errorf("invalid query: skip=%d limit=%d, want 0/0", gotSkip, gotLimit)
	}
}

// bboxクエリの解析と検証エラーを検証
func TestPlaceHandler_ListByBoundingBox(t *testing.T) {
	var got [4]float64
	svc := &mockPlaceService{
		bboxFn: func(ctx context.Context, minLat, maxLat, minLon, maxLon float64) ([]*model.PlaceWithOwner, error) {
			got = [4]float64{minLat, maxLat, minLon, maxLon}
			return []*model.PlaceWithOwner{}, nil
		},
	}
	h := NewPlaceHandler(svc, testMaxBodySize)

	req := httptest.NewRequest(http.MethodGet,
		"/api/places/bbox/?min_lat=53.0&max_lat=53.5&min_lon=49.5&max_lon=50.5", nil)
	w := httptest.NewRecorder()
	h.ListByBoundingBox(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got != [4]float64{53.0, 53.5, 49.5, 50.5} {
		t.Errorf("bounds = %v", got)
	}
}

// bboxパラメータ欠落が400になることを検証
func TestPlaceHandler_ListByBoundingBox_MissingParams(t *testing.T) {
	h := NewPlaceHandler(&mockPlaceService{}, testMaxBodySize)

	req := httptest.NewRequest(http.MethodGet, "/api/places/bbox/?min_lat=53.0", nil)
	w := httptest.NewRecorder()
	h.ListByBoundingBox(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// 定義域外のbboxがINVALID_RANGEになることを検証
func TestPlaceHandler_ListByBoundingBox_InvalidRange(t *testing.T) {
	svc := &mockPlaceService{
		bboxFn: func(ctx context.Context, minLat, maxLat, minLon, maxLon float64) ([]*model.PlaceWithOwner, error) {
			return nil, model.NewInvalidRangeError("緯度")
		},
	}
	h := NewPlaceHandler(svc, testMaxBodySize)

	req := httptest.NewRequest(http.MethodGet,
		"/api/places/bbox/?min_lat=-91&max_lat=0&min_lon=0&max_lon=0", nil)
	w := httptest.NewRecorder()
	h.ListByBoundingBox(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	var body apiErrorResponse
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Code != "INVALID_RANGE" {
		t.Errorf("code = %q, want INVALID_RANGE", body.Code)
	}
}

// ユーザー別一覧のパスパラメータ解析とNOT_FOUNDを検証
func TestPlaceHandler_ListByUser(t *testing.T) {
	svc := &mockPlaceService{
		byUserFn: func(ctx context.Context, userID int64) ([]*model.PlaceWithOwner, error) {
			if userID == 999 {
				return nil, model.NewNotFoundError("ユーザー")
			}
			return []*model.PlaceWithOwner{
				{Place: model.Place{ID: 1, UserID: userID}, OwnerUsername: "alice"},
			}, nil
		},
	}
	h := NewPlaceHandler(svc, testMaxBodySize)

	r := chi.NewRouter()
	r.Get("/api/users/{id}/places", h.ListByUser)

	// 存在するユーザー
	req := httptest.NewRequest(http.MethodGet, "/api/users/5/places", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	// 存在しないユーザー
	req = httptest.NewRequest(http.MethodGet, "/api/users/999/places", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}

	// 整数でないID
	req = httptest.NewRequest(http.MethodGet, "/api/users/abc/places", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
