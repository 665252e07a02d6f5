// Package auth はユーザー登録・ログイン・セッション管理のドメインロジックを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/hitoshi/placemap/internal/model"
	"github.com/hitoshi/placemap/internal/repository"
)

// usernameMaxLen はユーザー名の最大文字数。DBのVARCHAR(50)と対で管理する。
const usernameMaxLen = 50

// SessionStore は認証サービスが必要とするセッション操作のインターフェース。
// session.Storeの部分集合として定義する。
type SessionStore interface {
	Create(userID int64) string
	Resolve(token string) (int64, bool)
	Delete(token string)
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users    repository.UserRepository
	sessions SessionStore
}

// NewService はServiceを生成する。
func NewService(users repository.UserRepository, sessions SessionStore) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
	}
}

// Register は新規ユーザーを作成し、セッションを発行する。
// ユーザー名が使用済みの場合はAPIError(DUPLICATE_USERNAME)を返す。
// 重複判定はリポジトリ（DBの一意制約）に委ね、事前チェックは行わない。
func (s *Service) Register(ctx context.Context, username, password string) (*model.User, string, error) {
	if err := validateCredentials(username, password); err != nil {
		return nil, "", err
	}

	user, err := s.users.Create(ctx, username, HashPassword(password))
	if err != nil {
		return nil, "", err
	}

	token := s.sessions.Create(user.ID)

	slog.Info("user registered",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return user, token, nil
}

// Login は認証情報を検証し、セッションを発行する。
// ユーザーが存在しない場合とパスワード不一致の場合はどちらも
// APIError(INVALID_CREDENTIALS)を返す。
func (s *Service) Login(ctx context.Context, username, password string) (*model.User, string, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, "", model.NewInvalidCredentialsError()
	}

	if !VerifyPassword(password, user.PasswordHash) {
		return nil, "", model.NewInvalidCredentialsError()
	}

	token := s.sessions.Create(user.ID)

	slog.Info("user logged in",
		slog.Int64("user_id", user.ID),
	)

	return user, token, nil
}

// Logout はセッションを破棄する。トークンが無効でも常に成功する（冪等）。
func (s *Service) Logout(token string) {
	s.sessions.Delete(token)
}

// CurrentUser はトークンからログイン中のユーザーを解決する。
// トークンが無効・期限切れ、またはユーザーが存在しない場合は
// APIError(UNAUTHORIZED)を返す。
func (s *Service) CurrentUser(ctx context.Context, token string) (*model.User, error) {
	userID, ok := s.sessions.Resolve(token)
	if !ok {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}

	return user, nil
}

// validateCredentials は登録時のユーザー名・パスワードの形式を検証する。
func validateCredentials(username, password string) error {
	if username == "" {
		return model.NewInvalidRequestError("ユーザー名が空です")
	}
	if utf8.RuneCountInString(username) > usernameMaxLen {
		return model.NewInvalidRequestError(fmt.Sprintf("ユーザー名は%d文字以内で指定してください", usernameMaxLen))
	}
	if password == "" {
		return model.NewInvalidRequestError("パスワードが空です")
	}
	return nil
}
