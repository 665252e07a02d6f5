package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/placemap/internal/middleware"
	"github.com/hitoshi/placemap/internal/model"
	"github.com/hitoshi/placemap/internal/place"
)

// multipartMemoryLimit はマルチパート解析時にメモリへ保持する最大バイト数。
// これを超えた分は一時ファイルに書き出される。
const multipartMemoryLimit = 4 << 20 // 4MiB

// PlaceServiceInterface はスポットハンドラーが必要とするサービスインターフェース。
type PlaceServiceInterface interface {
	CreatePlace(ctx context.Context, userID int64, input place.CreatePlaceInput) (*model.PlaceWithOwner, error)
	ListPlaces(ctx context.Context, skip, limit int) ([]*model.PlaceWithOwner, error)
	PlacesByBoundingBox(ctx context.Context, minLat, maxLat, minLon, maxLon float64) ([]*model.PlaceWithOwner, error)
	PlacesByUser(ctx context.Context, userID int64) ([]*model.PlaceWithOwner, error)
}

// PlaceHandler はスポット管理のHTTPハンドラー。
type PlaceHandler struct {
	service PlaceServiceInterface

	// リクエストボディの最大サイズ。写真本体を含むため写真サイズ上限より大きめに取る
	maxBodySize int64
}

// NewPlaceHandler はPlaceHandlerを生成する。
func NewPlaceHandler(service PlaceServiceInterface, maxBodySize int64) *PlaceHandler {
	return &PlaceHandler{
		service:     service,
		maxBodySize: maxBodySize,
	}
}

// placeResponse はスポット情報のAPIレスポンス。
type placeResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	PhotoURL    *string   `json:"photo_url"`
	Tags        []string  `json:"tags"`
	UserID      int64     `json:"user_id"`
	Username    string    `json:"user_username"`
	CreatedAt   time.Time `json:"created_at"`
}

// Create はスポット作成を処理する。
// POST /api/places/ （multipart/form-data: title, description?, lat, lon, tags?, photo? or photo_url?）
func (h *PlaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("multipart/form-data形式でリクエストしてください"))
		return
	}

	lat, err := strconv.ParseFloat(r.PostFormValue("lat"), 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("latは数値で指定してください"))
		return
	}
	lon, err := strconv.ParseFloat(r.PostFormValue("lon"), 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("lonは数値で指定してください"))
		return
	}

	input := place.CreatePlaceInput{
		Title:       r.PostFormValue("title"),
		Description: r.PostFormValue("description"),
		Lat:         lat,
		Lon:         lon,
		TagsRaw:     r.PostFormValue("tags"),
		PhotoURL:    r.PostFormValue("photo_url"),
	}

	file, header, err := r.FormFile("photo")
	if err == nil {
		defer file.Close()
		input.Photo = &place.PhotoInput{
			Reader:      file,
			ContentType: header.Header.Get("Content-Type"),
			Filename:    header.Filename,
		}
	} else if !errors.Is(err, http.ErrMissingFile) {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("photoフィールドの解析に失敗しました"))
		return
	}

	created, err := h.service.CreatePlace(r.Context(), userID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPlaceResponse(created))
}

// List はスポット一覧を取得する。
// GET /api/places/?skip=0&limit=100
func (h *PlaceHandler) List(w http.ResponseWriter, r *http.Request) {
	skip := parseIntQuery(r, "skip", 0)
	limit := parseIntQuery(r, "limit", 0)

	places, err := h.service.ListPlaces(r.Context(), skip, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPlaceResponses(places))
}

// ListByBoundingBox は矩形範囲内のスポットを取得する。
// GET /api/places/bbox/?min_lat=..&max_lat=..&min_lon=..&max_lon=..
func (h *PlaceHandler) ListByBoundingBox(w http.ResponseWriter, r *http.Request) {
	bounds := map[string]float64{}
	for _, name := range []string{"min_lat", "max_lat", "min_lon", "max_lon"} {
		v, err := strconv.ParseFloat(r.URL.Query().Get(name), 64)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidRequestError(name+"は数値で指定してください"))
			return
		}
		bounds[name] = v
	}

	places, err := h.service.PlacesByBoundingBox(r.Context(),
		bounds["min_lat"], bounds["max_lat"], bounds["min_lon"], bounds["max_lon"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPlaceResponses(places))
}

// ListByUser は指定ユーザーのスポット一覧を取得する。
// GET /api/users/{id}/places
func (h *PlaceHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("ユーザーIDは整数で指定してください"))
		return
	}

	places, err := h.service.PlacesByUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPlaceResponses(places))
}

// toPlaceResponse はドメインモデルをAPIレスポンスに変換する。
func toPlaceResponse(p *model.PlaceWithOwner) placeResponse {
	resp := placeResponse{
		ID:        p.ID,
		Title:     p.Title,
		Lat:       p.Lat,
		Lon:       p.Lon,
		Tags:      p.Tags,
		UserID:    p.UserID,
		Username:  p.OwnerUsername,
		CreatedAt: p.CreatedAt,
	}
	if p.Description != "" {
		resp.Description = &p.Description
	}
	if p.PhotoURL != "" {
		resp.PhotoURL = &p.PhotoURL
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	return resp
}

func toPlaceResponses(places []*model.PlaceWithOwner) []placeResponse {
	result := make([]placeResponse, 0, len(places))
	for _, p := range places {
		result = append(result, toPlaceResponse(p))
	}
	return result
}

// parseIntQuery はクエリパラメータを整数として解析する。不正値は既定値を返す。
func parseIntQuery(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     model.ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeDuplicateUsername:
		return http.StatusBadRequest
	case model.ErrCodeInvalidCredentials:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeUnsupportedMediaType:
		return http.StatusBadRequest
	case model.ErrCodeInvalidRange:
		return http.StatusBadRequest
	case model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodePhotoFetchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
