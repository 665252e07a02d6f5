package photo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hitoshi/placemap/internal/model"
	"github.com/hitoshi/placemap/internal/security"
)

// RemoteFetcherService は外部URLからの写真取り込みのインターフェースを定義する。
type RemoteFetcherService interface {
	// Fetch はURLから写真を取得し、ボディ・Content-Type・クローズ関数を返す。
	// 呼び出し側は使用後に必ずクローズ関数を呼ぶこと。
	Fetch(ctx context.Context, rawURL string) (io.Reader, string, func(), error)
}

// RemoteFetcher はSSRF防止機能付きのRemoteFetcherServiceの実装。
type RemoteFetcher struct {
	guard   security.SSRFGuardService
	client  *http.Client
	maxSize int64
}

// コンパイル時のインターフェース実装チェック
var _ RemoteFetcherService = (*RemoteFetcher)(nil)

// NewRemoteFetcher はRemoteFetcherを生成する。
// HTTPクライアントはSSRFGuardService経由で生成し、プライベートIPや
// メタデータIPへのアクセスをDialerレベルでブロックする。
func NewRemoteFetcher(guard security.SSRFGuardService, timeout time.Duration, maxSize int64) *RemoteFetcher {
	return &RemoteFetcher{
		guard:   guard,
		client:  guard.NewSafeClient(timeout),
		maxSize: maxSize,
	}
}

// Fetch はURLから写真を取得する。
// 危険なURLはAPIError(INVALID_REQUEST)、取得失敗・非200応答・サイズ超過は
// APIError(PHOTO_FETCH_FAILED)を返す。
func (f *RemoteFetcher) Fetch(ctx context.Context, rawURL string) (io.Reader, string, func(), error) {
	if err := f.guard.ValidateURL(rawURL); err != nil {
		return nil, "", nil, model.NewInvalidRequestError(
			fmt.Sprintf("指定されたURLは使用できません: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", nil, model.NewInvalidRequestError("URLの形式が正しくありません")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", nil, model.NewPhotoFetchFailedError("写真の取得に失敗しました")
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", nil, model.NewPhotoFetchFailedError(
			fmt.Sprintf("写真の取得に失敗しました (HTTP %d)", resp.StatusCode))
	}

	// サイズ上限+1まで読み、超過を検出できるようにする
	limited := &limitedReader{
		r:   io.LimitReader(resp.Body, f.maxSize+1),
		max: f.maxSize,
	}

	closeFn := func() { resp.Body.Close() }
	return limited, resp.Header.Get("Content-Type"), closeFn, nil
}

// limitedReader はmaxバイトを超えて読まれた時点でエラーを返すReader。
// Content-Lengthヘッダを信用せず、実際の読み込み量で超過を判定する。
type limitedReader struct {
	r    io.Reader
	max  int64
	read int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.read > l.max {
		return n, model.NewPhotoFetchFailedError(
			fmt.Sprintf("写真のサイズが上限(%dバイト)を超えています", l.max))
	}
	return n, err
}
