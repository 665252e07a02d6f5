// Package photo はスポット写真の保存と取り込みを提供する。
package photo

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/placemap/internal/model"
)

// StorageService は写真バイナリの保存操作のインターフェースを定義する。
type StorageService interface {
	// Store は写真をローカルディスクへ保存し、保存キーと書き込みバイト数を返す。
	// Content-Typeがimage/*でない場合はAPIError(UNSUPPORTED_MEDIA_TYPE)を返し、
	// ファイルへの書き込みは一切行わない。
	Store(r io.Reader, contentType, originalName string) (string, int64, error)

	// Remove は保存済みの写真を削除する。存在しないキーでもエラーにしない。
	Remove(key string) error
}

// Storage はローカルディスクを使うStorageServiceの実装。
type Storage struct {
	dir string
}

// コンパイル時のインターフェース実装チェック
var _ StorageService = (*Storage)(nil)

// NewStorage はStorageを生成する。保存先ディレクトリは存在しなければ作成する。
func NewStorage(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}
	return &Storage{dir: dir}, nil
}

// Dir は写真の保存先ディレクトリを返す。
func (s *Storage) Dir() string {
	return s.dir
}

// Store は写真をローカルディスクへ保存し、保存キーと書き込みバイト数を返す。
// キーは衝突しないようUUIDで生成し、元ファイル名の拡張子のみ引き継ぐ。
// 元ファイル名自体は保存しない（パストラバーサル対策）。
func (s *Storage) Store(r io.Reader, contentType, originalName string) (string, int64, error) {
	if !isImageContentType(contentType) {
		return "", 0, model.NewUnsupportedMediaTypeError(contentType)
	}

	key := uuid.NewString() + sanitizeExt(originalName)
	path := filepath.Join(s.dir, key)

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create photo file: %w", err)
	}

	written, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to write photo file: %w", err)
	}

	return key, written, nil
}

// Remove は保存済みの写真を削除する。存在しないキーでもエラーにしない（冪等）。
func (s *Storage) Remove(key string) error {
	// キーにパス区切りが含まれる場合は保存ディレクトリ外を指す可能性があるため拒否
	if key == "" || key != filepath.Base(key) {
		return fmt.Errorf("invalid photo key: %s", key)
	}

	err := os.Remove(filepath.Join(s.dir, key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove photo file: %w", err)
	}
	return nil
}

// isImageContentType はContent-Typeが画像かを判定する。
// "image/jpeg; charset=..." のようなパラメータ付きも許容する。
func isImageContentType(contentType string) bool {
	mediaType := strings.TrimSpace(strings.ToLower(contentType))
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	return strings.HasPrefix(mediaType, "image/")
}

// sanitizeExt は元ファイル名から安全な拡張子を取り出す。
// 拡張子がない、または不審に長い場合は空文字を返す。
func sanitizeExt(originalName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if ext == "." || len(ext) > 10 {
		return ""
	}
	return ext
}
