// Package model はドメインモデルを定義する。
package model

import "time"

// Place は位置情報付きの投稿スポットを表す。
// lat/lonが座標の正とし、タグは登録順を保持する文字列列（重複許容）。
type Place struct {
	ID          int64
	Title       string
	Description string
	Lat         float64
	Lon         float64
	PhotoPath   string // フォトストレージ内のキー。未設定の場合は空文字列
	Tags        []string
	UserID      int64
	CreatedAt   time.Time
	UpdatedAt   *time.Time // 更新エンドポイントは未提供のためスキーマ上のみ存在する
}

// PlaceWithOwner はスポットと所有ユーザー情報を結合したモデル。
// 一覧系APIのレスポンス組み立てに使用する。所有者名の解決は
// ユーザーリポジトリへの一括問い合わせで行う（行ごとの個別問い合わせはしない）。
type PlaceWithOwner struct {
	Place
	OwnerUsername string
	PhotoURL      string // 公開パスとフォトキーから組み立てた取得URL。写真なしの場合は空
}
