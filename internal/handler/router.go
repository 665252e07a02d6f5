package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/placemap/internal/metrics"
	"github.com/hitoshi/placemap/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionResolver   middleware.SessionResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	Gatherer          prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// スポット
	PlaceService PlaceServiceInterface
	MaxBodySize  int64

	// ヘルスレポート
	UserCounter    Counter
	PlaceCounter   Counter
	SessionCounter SessionCounter
	Version        string

	// 写真の公開
	UploadDir       string
	PublicPhotoPath string
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging(+metrics)
//
// スポット作成のみ認証必須で、Session → RateLimit(General) → RateLimit(PlaceCreation)
// を通過する。一覧系・認証系・ヘルスはチェーンの外（グローバルミドルウェアのみ）。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	placeHandler := NewPlaceHandler(deps.PlaceService, deps.MaxBodySize)
	healthHandler := NewHealthHandler(deps.UserCounter, deps.PlaceCounter, deps.SessionCounter, deps.Version)

	// --- 認証不要のルート ---

	r.Post("/api/register", authHandler.Register)
	r.Post("/api/login", authHandler.Login)
	r.Post("/api/logout", authHandler.Logout)
	r.Get("/api/users/me", authHandler.Me)

	r.Get("/api/places/", placeHandler.List)
	r.Get("/api/places/bbox/", placeHandler.ListByBoundingBox)
	r.Get("/api/users/{id}/places", placeHandler.ListByUser)

	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	// アップロード済み写真の配信
	fileServer := http.FileServer(http.Dir(deps.UploadDir))
	r.Handle(deps.PublicPhotoPath+"/*", http.StripPrefix(deps.PublicPhotoPath+"/", fileServer))

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General) → RateLimit(PlaceCreation)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.With(deps.RateLimiter.PlaceCreationMiddleware()).Post("/api/places/", placeHandler.Create)
	})

	return r
}
