// Package place はスポットの登録・検索のドメインロジックを提供する。
package place

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/hitoshi/placemap/internal/model"
	"github.com/hitoshi/placemap/internal/photo"
	"github.com/hitoshi/placemap/internal/repository"
	"github.com/hitoshi/placemap/internal/security"
)

const (
	titleMinLen = 2
	titleMaxLen = 200
)

// MetricsRecorder はスポット作成に関するメトリクス記録のインターフェース。
// nilの場合は記録をスキップする。
type MetricsRecorder interface {
	RecordPlaceCreated()
	RecordPhotoStored(bytes int64)
}

// ListConfig は一覧系APIのページネーション設定。
type ListConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// PhotoInput はアップロードされた写真ファイルを表す。
type PhotoInput struct {
	Reader      io.Reader
	ContentType string
	Filename    string
}

// CreatePlaceInput はスポット作成の入力。
// PhotoとPhotoURLはどちらか一方のみ指定する。両方nil/空の場合は写真なし。
type CreatePlaceInput struct {
	Title       string
	Description string
	Lat         float64
	Lon         float64
	TagsRaw     string // カンマ区切りのタグ文字列
	Photo       *PhotoInput
	PhotoURL    string
}

// Service はスポットに関するビジネスロジックを提供する。
type Service struct {
	places    repository.PlaceRepository
	users     repository.UserRepository
	storage   photo.StorageService
	remote    photo.RemoteFetcherService
	sanitizer security.TextSanitizerService
	metrics   MetricsRecorder

	publicPhotoPath string
	listCfg         ListConfig
}

// NewService はServiceを生成する。metricsはnil可。
func NewService(
	places repository.PlaceRepository,
	users repository.UserRepository,
	storage photo.StorageService,
	remote photo.RemoteFetcherService,
	sanitizer security.TextSanitizerService,
	metrics MetricsRecorder,
	publicPhotoPath string,
	listCfg ListConfig,
) *Service {
	return &Service{
		places:          places,
		users:           users,
		storage:         storage,
		remote:          remote,
		sanitizer:       sanitizer,
		metrics:         metrics,
		publicPhotoPath: publicPhotoPath,
		listCfg:         listCfg,
	}
}

// CreatePlace はスポットを作成する。
// タイトル・説明文はサニタイズしてから検証・保存する。
// 写真はファイルアップロードまたはURL取り込みのどちらかで受け付け、
// DBへの登録が失敗した場合は保存済みの写真をベストエフォートで削除する。
func (s *Service) CreatePlace(ctx context.Context, userID int64, input CreatePlaceInput) (*model.PlaceWithOwner, error) {
	title := s.sanitizer.Sanitize(input.Title)
	description := s.sanitizer.Sanitize(input.Description)

	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if err := validateCoordinates(input.Lat, input.Lon); err != nil {
		return nil, err
	}

	photoKey, err := s.storePhoto(ctx, input)
	if err != nil {
		return nil, err
	}

	p := &model.Place{
		Title:       title,
		Description: description,
		Lat:         input.Lat,
		Lon:         input.Lon,
		PhotoPath:   photoKey,
		Tags:        ParseTags(input.TagsRaw),
		UserID:      userID,
	}

	if err := s.places.Create(ctx, p); err != nil {
		// 写真は保存済みのため、孤児にならないよう削除を試みる
		if photoKey != "" {
			if rerr := s.storage.Remove(photoKey); rerr != nil {
				slog.Warn("failed to remove orphaned photo",
					slog.String("photo_key", photoKey),
					slog.String("error", rerr.Error()),
				)
			}
		}
		return nil, fmt.Errorf("failed to create place: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordPlaceCreated()
	}

	slog.Info("place created",
		slog.Int64("place_id", p.ID),
		slog.Int64("user_id", userID),
		slog.Bool("has_photo", photoKey != ""),
	)

	enriched, err := s.enrichWithOwners(ctx, []*model.Place{p})
	if err != nil {
		return nil, err
	}
	return enriched[0], nil
}

// ListPlaces はスポット一覧をページネーション付きで返す。
// skipが負の場合は0、limitが非正の場合は既定値、上限超過の場合は上限に丸める。
func (s *Service) ListPlaces(ctx context.Context, skip, limit int) ([]*model.PlaceWithOwner, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = s.listCfg.DefaultLimit
	}
	if limit > s.listCfg.MaxLimit {
		limit = s.listCfg.MaxLimit
	}

	places, err := s.places.List(ctx, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list places: %w", err)
	}
	return s.enrichWithOwners(ctx, places)
}

// PlacesByBoundingBox は矩形範囲内のスポットを返す。
// 各境界値が緯度[-90, 90]・経度[-180, 180]の定義域を外れる場合は
// APIError(INVALID_RANGE)を返す。min > max の転置ボックスはエラーに
// せず空の結果を返す。
func (s *Service) PlacesByBoundingBox(ctx context.Context, minLat, maxLat, minLon, maxLon float64) ([]*model.PlaceWithOwner, error) {
	for _, lat := range []float64{minLat, maxLat} {
		if lat < -90 || lat > 90 {
			return nil, model.NewInvalidRangeError(fmt.Sprintf("緯度は-90から90の範囲で指定してください: %g", lat))
		}
	}
	for _, lon := range []float64{minLon, maxLon} {
		if lon < -180 || lon > 180 {
			return nil, model.NewInvalidRangeError(fmt.Sprintf("経度は-180から180の範囲で指定してください: %g", lon))
		}
	}

	places, err := s.places.FindByBoundingBox(ctx, minLat, maxLat, minLon, maxLon)
	if err != nil {
		return nil, fmt.Errorf("failed to search places by bounding box: %w", err)
	}
	return s.enrichWithOwners(ctx, places)
}

// PlacesByUser は指定ユーザーのスポット一覧を返す。
// ユーザーが存在しない場合はAPIError(NOT_FOUND)を返す。
func (s *Service) PlacesByUser(ctx context.Context, userID int64) ([]*model.PlaceWithOwner, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewNotFoundError("ユーザー")
	}

	places, err := s.places.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user places: %w", err)
	}
	return s.enrichWithOwners(ctx, places)
}

// storePhoto は入力に応じて写真を保存し、保存キーを返す。写真なしの場合は空文字列。
func (s *Service) storePhoto(ctx context.Context, input CreatePlaceInput) (string, error) {
	switch {
	case input.Photo != nil:
		key, size, err := s.storage.Store(input.Photo.Reader, input.Photo.ContentType, input.Photo.Filename)
		if err != nil {
			return "", err
		}
		if s.metrics != nil {
			s.metrics.RecordPhotoStored(size)
		}
		return key, nil

	case input.PhotoURL != "":
		body, contentType, closeFn, err := s.remote.Fetch(ctx, input.PhotoURL)
		if err != nil {
			return "", err
		}
		defer closeFn()

		key, size, err := s.storage.Store(body, contentType, input.PhotoURL)
		if err != nil {
			return "", err
		}
		if s.metrics != nil {
			s.metrics.RecordPhotoStored(size)
		}
		return key, nil

	default:
		return "", nil
	}
}

// enrichWithOwners はスポット列に所有者名と写真URLを付与する。
// 所有者はユーザーリポジトリへの1回の一括問い合わせで解決する。
// 所有者の行が消えている場合はユーザー名を"unknown"とする。
func (s *Service) enrichWithOwners(ctx context.Context, places []*model.Place) ([]*model.PlaceWithOwner, error) {
	ids := make([]int64, 0, len(places))
	seen := make(map[int64]bool)
	for _, p := range places {
		if !seen[p.UserID] {
			seen[p.UserID] = true
			ids = append(ids, p.UserID)
		}
	}

	owners := map[int64]*model.User{}
	if len(ids) > 0 {
		var err error
		owners, err = s.users.FindByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve place owners: %w", err)
		}
	}

	result := make([]*model.PlaceWithOwner, 0, len(places))
	for _, p := range places {
		ownerName := "unknown"
		if owner, ok := owners[p.UserID]; ok {
			ownerName = owner.Username
		}

		photoURL := ""
		if p.PhotoPath != "" {
			photoURL = s.publicPhotoPath + "/" + p.PhotoPath
		}

		result = append(result, &model.PlaceWithOwner{
			Place:         *p,
			OwnerUsername: ownerName,
			PhotoURL:      photoURL,
		})
	}
	return result, nil
}

// validateTitle はサニタイズ後のタイトルを検証する。
func validateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if n < titleMinLen {
		return model.NewInvalidRequestError(fmt.Sprintf("タイトルは%d文字以上で指定してください", titleMinLen))
	}
	if n > titleMaxLen {
		return model.NewInvalidRequestError(fmt.Sprintf("タイトルは%d文字以内で指定してください", titleMaxLen))
	}
	return nil
}

// validateCoordinates は座標が定義域内にあるかを検証する。
func validateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return model.NewInvalidRangeError(fmt.Sprintf("緯度は-90から90の範囲で指定してください: %g", lat))
	}
	if lon < -180 || lon > 180 {
		return model.NewInvalidRangeError(fmt.Sprintf("経度は-180から180の範囲で指定してください: %g", lon))
	}
	return nil
}
