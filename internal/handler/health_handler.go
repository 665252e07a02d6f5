package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// Counter は件数取得のインターフェース。リポジトリのCountメソッドに合わせる。
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// SessionCounter は有効セッション数の取得インターフェース。
type SessionCounter interface {
	Count() int
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
// DBが落ちていても常に200を返し、監視側が本体の生死と
// 依存先の生死を区別できるようにする。
type HealthHandler struct {
	users    Counter
	places   Counter
	sessions SessionCounter
	version  string
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(users, places Counter, sessions SessionCounter, version string) *HealthHandler {
	return &HealthHandler{
		users:    users,
		places:   places,
		sessions: sessions,
		version:  version,
	}
}

// healthResponse はヘルスレポートのレスポンス。
type healthResponse struct {
	Status         string `json:"status"`
	Database       string `json:"database"`
	UsersCount     int    `json:"users_count"`
	PlacesCount    int    `json:"places_count"`
	ActiveSessions int    `json:"active_sessions"`
	Version        string `json:"version"`
}

// Health はヘルスレポートを返す。
// GET /health
// DB問い合わせに失敗した場合もステータスは200のまま、
// database="disconnected"・各カウント0で応答する。
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "healthy",
		Database: "connected",
		Version:  h.version,
	}

	usersCount, uerr := h.users.Count(r.Context())
	placesCount, perr := h.places.Count(r.Context())

	if uerr != nil || perr != nil {
		err := uerr
		if err == nil {
			err = perr
		}
		slog.Warn("health check: database unreachable",
			slog.String("error", err.Error()),
		)
		resp.Database = "disconnected"
		// カウントはすべて0のまま返す
	} else {
		resp.UsersCount = usersCount
		resp.PlacesCount = placesCount
		resp.ActiveSessions = h.sessions.Count()
	}

	writeJSON(w, http.StatusOK, resp)
}
