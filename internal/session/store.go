// Package session はプロセス内メモリのセッションストアを提供する。
//
// トークンからユーザーIDへの対応付けをRWMutexで保護したマップに保持する。
// 永続化は行わず、寿命はプロセスの寿命と等しい（仕様上のトレードオフ）。
// 全リクエストハンドラーから並行アクセスされるため、すべての操作はスレッドセーフ。
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/placemap/internal/model"
)

// Store はトークン→セッションのインメモリマッピング。
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session

	ttl    time.Duration
	stopCh chan struct{}
}

// janitorInterval は期限切れセッションの掃除間隔。
const janitorInterval = 5 * time.Minute

// NewStore は新しいStoreを生成する。
// ttlは各セッションの有効期間。バックグラウンドで期限切れエントリの掃除を開始する。
func NewStore(ttl time.Duration) *Store {
	s := &Store{
		sessions: make(map[string]*model.Session),
		ttl:      ttl,
		stopCh:   make(chan struct{}),
	}

	go s.janitorLoop()

	return s
}

// Stop は掃除用バックグラウンドゴルーチンを停止する。
func (s *Store) Stop() {
	close(s.stopCh)
}

// Create は推測不能なトークンを発行し、userIDとの対応を登録して返す。
func (s *Store) Create(userID int64) string {
	now := time.Now()
	sess := &model.Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}

	s.mu.Lock()
	s.sessions[sess.Token] = sess
	s.mu.Unlock()

	return sess.Token
}

// Resolve はトークンからユーザーIDを引く。
// トークンが存在しない、または期限切れの場合はfalseを返す。
func (s *Store) Resolve(token string) (int64, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok || time.Now().After(sess.ExpiresAt) {
		return 0, false
	}
	return sess.UserID, true
}

// Delete はトークンを削除する。存在しないトークンに対しても成功する（冪等）。
func (s *Store) Delete(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// Count は有効な（期限切れでない）セッション数を返す。ヘルスレポート用。
func (s *Store) Count() int {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, sess := range s.sessions {
		if now.Before(sess.ExpiresAt) {
			count++
		}
	}
	return count
}

// janitorLoop は期限切れセッションを定期的に削除する。
// Resolveでも期限は検査するため、掃除はメモリ回収のみを目的とする。
func (s *Store) janitorLoop() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.stopCh:
			return
		}
	}
}

// evictExpired は期限切れエントリをマップから取り除く。
func (s *Store) evictExpired() {
	now := time.Now()

	s.mu.Lock()
	for token, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, token)
		}
	}
	s.mu.Unlock()
}
