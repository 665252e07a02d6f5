// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/placemap/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。
	// usernameが既に存在する場合はAPIError(DUPLICATE_USERNAME)を返す。
	// 重複判定はDBの一意制約に依存し、同時登録でも高々1件しか成功しない。
	Create(ctx context.Context, username, passwordHash string) (*model.User, error)

	// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByIDs は複数IDのユーザーを1回の問い合わせで取得する。
	// 一覧系APIの所有者名エンリッチに使用し、N+1問い合わせを避ける。
	// 見つからないIDは結果マップに含まれない。
	FindByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error)

	// Count は登録ユーザー数を返す。ヘルスレポート用。
	Count(ctx context.Context) (int, error)
}

// PlaceRepository はスポットデータの永続化インターフェース。
type PlaceRepository interface {
	// Create はスポットを作成し、採番されたIDとcreated_atをplaceに書き戻す。
	Create(ctx context.Context, place *model.Place) error

	// List はスポット一覧をcreated_at降順（同時刻はID降順）で返す。
	// skip/limitでページネーションする。limitの妥当性検査は呼び出し側の責務。
	List(ctx context.Context, skip, limit int) ([]*model.Place, error)

	// FindByBoundingBox は閉区間 [minLat, maxLat] × [minLon, maxLon] に
	// 含まれるスポットを返す。min > max の転置ボックスは空集合になる（エラーではない）。
	FindByBoundingBox(ctx context.Context, minLat, maxLat, minLon, maxLon float64) ([]*model.Place, error)

	// FindByUser は指定ユーザーが所有するスポットをcreated_at降順で返す。
	FindByUser(ctx context.Context, userID int64) ([]*model.Place, error)

	// Count は登録スポット数を返す。ヘルスレポート用。
	Count(ctx context.Context) (int, error)
}
