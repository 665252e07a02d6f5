package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashPassword は平文パスワードのSHA-256ダイジェストを16進小文字64文字で返す。
// 決定的な純粋関数: 同一入力には常に同一出力を返す。
// ソルトなしのダイジェストは既存データとの互換のために維持している既知の弱点であり、
// 保存形式（VARCHAR(64)）とhash/verify契約を変えずに強化することはできない。
func HashPassword(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// VerifyPassword は平文パスワードをハッシュし直してdigestと比較する。
// 比較は一定時間で行い、タイミング差を与えない。
func VerifyPassword(plain, digest string) bool {
	computed := HashPassword(plain)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}
