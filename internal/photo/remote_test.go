package photo

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/placemap/internal/model"
)

// mockGuard はsecurity.SSRFGuardServiceのモック実装。
// httptestサーバー(127.0.0.1)へアクセスできるよう、素のクライアントを返す。
type mockGuard struct {
	validateFn func(rawURL string) error
}

func (m *mockGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (m *mockGuard) ValidateURL(rawURL string) error {
	if m.validateFn != nil {
		return m.validateFn(rawURL)
	}
	return nil
}

// 外部URLから写真を取得できることを検証
func TestRemoteFetcher_Fetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("fake-png-bytes"))
	}))
	defer server.Close()

	fetcher := NewRemoteFetcher(&mockGuard{}, 5*time.Second, 1024)

	body, contentType, closeFn, err := fetcher.Fetch(context.Background(), server.URL+"/photo.png")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	defer closeFn()

	if contentType != "image/png" {
		t.Errorf("contentType = %q, want image/png", contentType)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != "fake-png-bytes" {
		t.Errorf("body = %q", data)
	}
}

// ガードが拒否したURLがINVALID_REQUESTになることを検証
func TestRemoteFetcher_Fetch_BlockedURL(t *testing.T) {
	guard := &mockGuard{
		validateFn: func(rawURL string) error {
			return errors.New("blocked IP address")
		},
	}
	fetcher := NewRemoteFetcher(guard, 5*time.Second, 1024)

	_, _, _, err := fetcher.Fetch(context.Background(), "http://169.254.169.254/")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidRequest {
		t.Fatalf("expected INVALID_REQUEST, got %v", err)
	}
}

// 非200応答がPHOTO_FETCH_FAILEDになることを検証
func TestRemoteFetcher_Fetch_Non200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	fetcher := NewRemoteFetcher(&mockGuard{}, 5*time.Second, 1024)

	_, _, _, err := fetcher.Fetch(context.Background(), server.URL+"/missing.jpg")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePhotoFetchFailed {
		t.Fatalf("expected PHOTO_FETCH_FAILED, got %v", err)
	}
}

// 接続不能なサーバーがPHOTO_FETCH_FAILEDになることを検証
func TestRemoteFetcher_Fetch_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // 即座に停止して接続エラーを起こす

	fetcher := NewRemoteFetcher(&mockGuard{}, 1*time.Second, 1024)

	_, _, _, err := fetcher.Fetch(context.Background(), server.URL+"/photo.jpg")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePhotoFetchFailed {
		t.Fatalf("expected PHOTO_FETCH_FAILED, got %v", err)
	}
}

// サイズ上限を超えるボディの読み込みがエラーになることを検証
func TestRemoteFetcher_Fetch_SizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer server.Close()

	fetcher := NewRemoteFetcher(&mockGuard{}, 5*time.Second, 50)

	body, _, closeFn, err := fetcher.Fetch(context.Background(), server.URL+"/big.jpg")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	defer closeFn()

	_, err = io.ReadAll(body)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePhotoFetchFailed {
		t.Fatalf("expected PHOTO_FETCH_FAILED on oversized body, got %v", err)
	}
}

// 上限以内のボディは最後まで読めることを検証
func TestRemoteFetcher_Fetch_WithinSizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte(strings.Repeat("x", 50)))
	}))
	defer server.Close()

	fetcher := NewRemoteFetcher(&mockGuard{}, 5*time.Second, 50)

	body, _, closeFn, err := fetcher.Fetch(context.Background(), server.URL+"/ok.jpg")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	defer closeFn()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(data) != 50 {
		t.Errorf("len(data) = %d, want 50", len(data))
	}
}
