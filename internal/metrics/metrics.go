// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordPlaceCreated()
	RecordPhotoStored(bytes int64)
	RecordPhotoCleanup(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus    *prometheus.CounterVec
	placesCreated prometheus.Counter
	photosStored  prometheus.Counter
	photoBytes    prometheus.Histogram
	photosCleaned prometheus.Counter
}

// コンパイル時のインターフェース実装チェック
var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "placemap_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		placesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "placemap_places_created_total",
			Help: "作成されたスポットの合計数",
		}),
		photosStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "placemap_photos_stored_total",
			Help: "保存された写真の合計数",
		}),
		photoBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "placemap_photo_bytes",
			Help:    "保存された写真のサイズ（バイト）",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
		photosCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "placemap_photos_cleaned_total",
			Help: "クリーンアップで削除された孤児写真の合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.placesCreated,
		c.photosStored,
		c.photoBytes,
		c.photosCleaned,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコード別のレスポンス数を記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordPlaceCreated はスポット作成数を記録する。
func (c *Collector) RecordPlaceCreated() {
	c.placesCreated.Inc()
}

// RecordPhotoStored は写真の保存数とサイズを記録する。
func (c *Collector) RecordPhotoStored(bytes int64) {
	c.photosStored.Inc()
	c.photoBytes.Observe(float64(bytes))
}

// RecordPhotoCleanup はクリーンアップで削除された写真数を記録する。
func (c *Collector) RecordPhotoCleanup(count int) {
	c.photosCleaned.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
