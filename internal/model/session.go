// Package model はドメインモデルを定義する。
package model

import "time"

// Session はログインセッションを表す。
// 永続化せずプロセス内メモリにのみ保持する。プロセス再起動で全セッションが失われる。
type Session struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}
