package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/placemap/internal/model"
)

// --- モック定義 ---

// mockUserRepo はrepository.UserRepositoryのモック実装。
type mockUserRepo struct {
	createFn         func(ctx context.Context, username, passwordHash string) (*model.User, error)
	findByUsernameFn func(ctx context.Context, username string) (*model.User, error)
	findByIDFn       func(ctx context.Context, id int64) (*model.User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, username, passwordHash string) (*model.User, error) {
	if m.createFn != nil {
		return m.createFn(ctx, username, passwordHash)
	}
	return &model.User{ID: 1, Username: username, PasswordHash: passwordHash, CreatedAt: time.Now()}, nil
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.findByUsernameFn != nil {
		return m.findByUsernameFn(ctx, username)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error) {
	return map[int64]*model.User{}, nil
}

func (m *mockUserRepo) Count(ctx context.Context) (int, error) {
	return 0, nil
}

// mockSessionStore はSessionStoreのモック実装。
type mockSessionStore struct {
	tokens map[string]int64
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{tokens: make(map[string]int64)}
}

func (m *mockSessionStore) Create(userID int64) string {
	token := "token-for-user"
	m.tokens[token] = userID
	return token
}

func (m *mockSessionStore) Resolve(token string) (int64, bool) {
	id, ok := m.tokens[token]
	return id, ok
}

func (m *mockSessionStore) Delete(token string) {
	delete(m.tokens, token)
}

// --- Register ---

// 登録成功時にユーザーとセッショントークンが返ることを検証
func TestService_Register_Success(t *testing.T) {
	var gotHash string
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, username, passwordHash string) (*model.User, error) {
			gotHash = passwordHash
			return &model.User{ID: 10, Username: username, PasswordHash: passwordHash}, nil
		},
	}
	svc := NewService(repo, newMockSessionStore())

	user, token, err := svc.Register(context.Background(), "alice", "pw1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if user.ID != 10 {
		t.Errorf("user.ID = %d, want 10", user.ID)
	}
	if token == "" {
		t.Error("expected non-empty session token")
	}
	// 平文ではなくダイジェストがリポジトリに渡ること
	if gotHash != HashPassword("pw1") {
		t.Errorf("passwordHash = %q, want sha256 digest", gotHash)
	}
}

// ユーザー名重複時はAPIError(DUPLICATE_USERNAME)がそのまま返ることを検証
func TestService_Register_DuplicateUsername(t *testing.T) {
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, username, passwordHash string) (*model.User, error) {
			return nil, model.NewDuplicateUsernameError(username)
		},
	}
	svc := NewService(repo, newMockSessionStore())

	_, _, err := svc.Register(context.Background(), "alice", "pw1")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeDuplicateUsername {
		t.Fatalf("expected DUPLICATE_USERNAME, got %v", err)
	}
}

// 空ユーザー名・空パスワード・長すぎるユーザー名が拒否されることを検証
func TestService_Register_Validation(t *testing.T) {
	svc := NewService(&mockUserRepo{}, newMockSessionStore())

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"empty username", "", "pw1"},
		{"empty password", "alice", ""},
		{"username too long", strings.Repeat("a", 51), "pw1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Register(context.Background(), tt.username, tt.password)

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidRequest {
				t.Errorf("expected INVALID_REQUEST, got %v", err)
			}
		})
	}
}

// 50文字ちょうどのユーザー名は許可されることを検証
func TestService_Register_UsernameAtMaxLength(t *testing.T) {
	svc := NewService(&mockUserRepo{}, newMockSessionStore())

	_, _, err := svc.Register(context.Background(), strings.Repeat("a", 50), "pw1")
	if err != nil {
		t.Errorf("50-char username should be accepted, got %v", err)
	}
}

// --- Login ---

// 正しい認証情報でログインできることを検証
func TestService_Login_Success(t *testing.T) {
	repo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return &model.User{ID: 5, Username: username, PasswordHash: HashPassword("pw1")}, nil
		},
	}
	store := newMockSessionStore()
	svc := NewService(repo, store)

	user, token, err := svc.Login(context.Background(), "alice", "pw1")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if user.ID != 5 {
		t.Errorf("user.ID = %d, want 5", user.ID)
	}
	if got, ok := store.Resolve(token); !ok || got != 5 {
		t.Error("issued token should resolve to user 5")
	}
}

// ユーザー不在とパスワード不一致が同一のエラーになることを検証
func TestService_Login_InvalidCredentials(t *testing.T) {
	tests := []struct {
		name string
		repo *mockUserRepo
	}{
		{
			"unknown user",
			&mockUserRepo{findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
				return nil, nil
			}},
		},
		{
			"wrong password",
			&mockUserRepo{findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
				return &model.User{ID: 5, Username: username, PasswordHash: HashPassword("pw1")}, nil
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.repo, newMockSessionStore())

			_, _, err := svc.Login(context.Background(), "alice", "wrongpw")

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidCredentials {
				t.Fatalf("expected INVALID_CREDENTIALS, got %v", err)
			}
		})
	}
}

// リポジトリ障害はAPIErrorにならず内部エラーとして伝播することを検証
func TestService_Login_RepoFailure(t *testing.T) {
	repo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := NewService(repo, newMockSessionStore())

	_, _, err := svc.Login(context.Background(), "alice", "pw1")
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("storage failure should not be an APIError, got %v", apiErr)
	}
}

// --- Logout / CurrentUser ---

// ログアウト後はトークンが解決されないことを検証
func TestService_LogoutInvalidatesToken(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id int64) (*model.User, error) {
			return &model.User{ID: id, Username: "alice"}, nil
		},
	}
	store := newMockSessionStore()
	svc := NewService(repo, store)

	token := store.Create(5)
	svc.Logout(token)

	_, err := svc.CurrentUser(context.Background(), token)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUnauthorized {
		t.Fatalf("expected UNAUTHORIZED after logout, got %v", err)
	}

	// 無効トークンの再ログアウトもpanicしない（冪等）
	svc.Logout(token)
}

// 有効なトークンでログイン中ユーザーが取得できることを検証
func TestService_CurrentUser_Success(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id int64) (*model.User, error) {
			return &model.User{ID: id, Username: "alice"}, nil
		},
	}
	store := newMockSessionStore()
	svc := NewService(repo, store)

	token := store.Create(5)

	user, err := svc.CurrentUser(context.Background(), token)
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if user.ID != 5 || user.Username != "alice" {
		t.Errorf("unexpected user: %+v", user)
	}
}

// セッションは有効だがユーザー行が消えている場合にUNAUTHORIZEDになることを検証
func TestService_CurrentUser_UserRowMissing(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id int64) (*model.User, error) {
			return nil, nil
		},
	}
	store := newMockSessionStore()
	svc := NewService(repo, store)

	token := store.Create(5)

	_, err := svc.CurrentUser(context.Background(), token)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUnauthorized {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
}
