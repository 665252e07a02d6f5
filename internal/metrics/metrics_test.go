package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// TestCollector_RecordAndExpose はメトリクスが記録され/metricsで公開されることを検証する。
func TestCollector_RecordAndExpose(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(401)
	c.RecordPlaceCreated()
	c.RecordPhotoStored(2048)
	c.RecordPhotoCleanup(3)

	handler := Handler(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	for _, want := range []string{
		`placemap_http_status_total{status_code="200"} 2`,
		`placemap_http_status_total{status_code="401"} 1`,
		"placemap_places_created_total 1",
		"placemap_photos_stored_total 1",
		"placemap_photos_cleaned_total 3",
		"placemap_photo_bytes",
	} {
		if !strings.Contains(bodyStr, want) {
			t.Errorf("response should contain %q", want)
		}
	}
}

// TestNewCollector_RegistersWithoutPanic は二重登録せず初期化できることを検証する。
func TestNewCollector_RegistersWithoutPanic(t *testing.T) {
	reg := prometheus.NewRegistry()

	c := NewCollector(reg)
	if c == nil {
		t.Fatal("expected non-nil collector")
	}
}
