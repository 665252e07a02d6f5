// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// パスワードはSHA-256ダイジェスト（16進64文字）のみを保持し、平文は保存しない。
// ユーザーは登録後に更新・削除されることはない。
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
