package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/mbehosting/internal/model"
	"github.com/hitoshi/mbehosting/internal/repository"
	"github.com/hitoshi/mbehosting/internal/security"
	"golang.org/x/crypto/bcrypt"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn    func(ctx context.Context, id int64) (*model.User, error)
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
	createFn      func(ctx context.Context, user *model.User) (int64, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) (int64, error) {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return 1, nil
}

func (m *mockUserRepo) DeleteByID(_ context.Context, _ int64) error {
	return nil
}

type mockSessionRepo struct {
	createFn         func(ctx context.Context, session *model.Session) error
	findByIDFn       func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn     func(ctx context.Context, id string) error
	deleteByUserIDFn func(ctx context.Context, userID int64) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID int64) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

type mockCipher struct {
	encryptFn func(plaintext string) (string, error)
}

func (m *mockCipher) Encrypt(plaintext string) (string, error) {
	if m.encryptFn != nil {
		return m.encryptFn(plaintext)
	}
	return "enc:" + plaintext, nil
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ PhoneCipher = (*mockCipher)(nil)

func newTestService(userRepo *mockUserRepo, sessionRepo *mockSessionRepo) *Service {
	return NewService(userRepo, sessionRepo, &mockCipher{}, ServiceConfig{SessionMaxAge: 86400})
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	return hash
}

// --- テスト ---

func TestRegister_CreatesUserAndSession(t *testing.T) {
	var createdUser *model.User
	var createdSession *model.Session

	userRepo := &mockUserRepo{
		createFn: func(_ context.Context, user *model.User) (int64, error) {
			createdUser = user
			return 42, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(_ context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}
	svc := newTestService(userRepo, sessionRepo)

	session, err := svc.Register(context.Background(), RegisterInput{
		Email:     "Taro@Example.com",
		Password:  "password123",
		FirstName: "Taro",
		LastName:  "Yamada",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if createdUser == nil {
		t.Fatal("user was not created")
	}
	if createdUser.Email != "taro@example.com" {
		t.Errorf("email = %q, want lowercased taro@example.com", createdUser.Email)
	}
	if createdUser.PasswordHash == "password123" {
		t.Error("password was stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(createdUser.PasswordHash), []byte("password123")); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}
	if !createdUser.IsActive {
		t.Error("new user should be active")
	}

	if session == nil || createdSession == nil {
		t.Fatal("session was not created")
	}
	if session.UserID != 42 {
		t.Errorf("session.UserID = %d, want 42", session.UserID)
	}
	if session.User.Email != "taro@example.com" || session.User.FirstName != "Taro" {
		t.Errorf("session projection = %+v", session.User)
	}
	if !session.ExpiresAt.After(time.Now()) {
		t.Error("session should expire in the future")
	}
}

func TestRegister_EncryptsPhone(t *testing.T) {
	var createdUser *model.User
	userRepo := &mockUserRepo{
		createFn: func(_ context.Context, user *model.User) (int64, error) {
			createdUser = user
			return 1, nil
		},
	}
	svc := NewService(userRepo, &mockSessionRepo{}, &mockCipher{}, ServiceConfig{SessionMaxAge: 3600})

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:     "taro@example.com",
		Password:  "password123",
		FirstName: "Taro",
		LastName:  "Yamada",
		Phone:     "090-1234-5678",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if createdUser.Phone != "enc:090-1234-5678" {
		t.Errorf("phone = %q, want encrypted token", createdUser.Phone)
	}
	if strings.Contains(createdUser.Phone, "090-1234-5678") && !strings.HasPrefix(createdUser.Phone, "enc:") {
		t.Error("phone stored in plaintext")
	}
}

func TestRegister_EmptyPhoneSkipsCipher(t *testing.T) {
	cipherCalled := false
	cipher := &mockCipher{
		encryptFn: func(plaintext string) (string, error) {
			cipherCalled = true
			return plaintext, nil
		},
	}
	svc := NewService(&mockUserRepo{}, &mockSessionRepo{}, cipher, ServiceConfig{SessionMaxAge: 3600})

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:     "taro@example.com",
		Password:  "password123",
		FirstName: "Taro",
		LastName:  "Yamada",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if cipherCalled {
		t.Error("cipher should not be called for empty phone")
	}
}

func TestRegister_ValidationErrors(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{})

	tests := []struct {
		name     string
		input    RegisterInput
		wantCode string
	}{
		{
			name:     "不正なメールアドレス",
			input:    RegisterInput{Email: "not-an-email", Password: "password123", FirstName: "A", LastName: "B"},
			wantCode: model.ErrCodeValidationFailed,
		},
		{
			name:     "短すぎるパスワード",
			input:    RegisterInput{Email: "a@example.com", Password: "short", FirstName: "A", LastName: "B"},
			wantCode: model.ErrCodeValidationFailed,
		},
		{
			name:     "氏名なし",
			input:    RegisterInput{Email: "a@example.com", Password: "password123"},
			wantCode: model.ErrCodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.input)
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Register() error = %v, want *model.APIError", err)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", apiErr.Code, tt.wantCode)
			}
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	userRepo := &mockUserRepo{
		findByEmailFn: func(_ context.Context, _ string) (*model.User, error) {
			return &model.User{ID: 1, Email: "taro@example.com"}, nil
		},
	}
	svc := newTestService(userRepo, &mockSessionRepo{})

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:     "taro@example.com",
		Password:  "password123",
		FirstName: "Taro",
		LastName:  "Yamada",
	})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeEmailTaken {
		t.Errorf("Register() error = %v, want EMAIL_TAKEN", err)
	}
}

func TestLogin_Succeeds(t *testing.T) {
	hash := mustHash(t, "password123")
	userRepo := &mockUserRepo{
		findByEmailFn: func(_ context.Context, email string) (*model.User, error) {
			if email != "taro@example.com" {
				t.Errorf("lookup email = %q, want lowercased", email)
			}
			return &model.User{ID: 7, Email: email, PasswordHash: hash, FirstName: "Taro", IsActive: true}, nil
		},
	}
	svc := newTestService(userRepo, &mockSessionRepo{})

	session, err := svc.Login(context.Background(), "Taro@Example.com", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if session.UserID != 7 {
		t.Errorf("session.UserID = %d, want 7", session.UserID)
	}
	if session.User.ID != 7 || session.User.FirstName != "Taro" {
		t.Errorf("session projection = %+v", session.User)
	}
	if session.ID == "" {
		t.Error("session ID is empty")
	}
}

func TestLogin_UnknownEmailAndWrongPasswordAreIndistinguishable(t *testing.T) {
	hash := mustHash(t, "password123")

	unknownRepo := &mockUserRepo{}
	wrongRepo := &mockUserRepo{
		findByEmailFn: func(_ context.Context, email string) (*model.User, error) {
			return &model.User{ID: 1, Email: email, PasswordHash: hash, IsActive: true}, nil
		},
	}

	svcUnknown := newTestService(unknownRepo, &mockSessionRepo{})
	svcWrong := newTestService(wrongRepo, &mockSessionRepo{})

	_, errUnknown := svcUnknown.Login(context.Background(), "nobody@example.com", "password123")
	_, errWrong := svcWrong.Login(context.Background(), "taro@example.com", "wrong-password")

	var apiErr1, apiErr2 *model.APIError
	if !errors.As(errUnknown, &apiErr1) || !errors.As(errWrong, &apiErr2) {
		t.Fatalf("errors = %v, %v, want *model.APIError", errUnknown, errWrong)
	}
	if apiErr1.Code != model.ErrCodeInvalidCredentials || apiErr2.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("codes = %q, %q, want both INVALID_CREDENTIALS", apiErr1.Code, apiErr2.Code)
	}
	if apiErr1.Message != apiErr2.Message {
		t.Error("unknown email and wrong password should produce identical messages")
	}
}

func TestLogin_DisabledAccount(t *testing.T) {
	hash := mustHash(t, "password123")
	userRepo := &mockUserRepo{
		findByEmailFn: func(_ context.Context, email string) (*model.User, error) {
			return &model.User{ID: 1, Email: email, PasswordHash: hash, IsActive: false}, nil
		},
	}
	svc := newTestService(userRepo, &mockSessionRepo{})

	_, err := svc.Login(context.Background(), "taro@example.com", "password123")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeAccountDisabled {
		t.Errorf("Login() error = %v, want ACCOUNT_DISABLED", err)
	}
}

func TestLogout_DeletesSession(t *testing.T) {
	deleted := ""
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	svc := newTestService(&mockUserRepo{}, sessionRepo)

	if err := svc.Logout(context.Background(), "sess-1"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if deleted != "sess-1" {
		t.Errorf("deleted session = %q, want sess-1", deleted)
	}
}

func TestLogout_EmptySessionID(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{})
	if err := svc.Logout(context.Background(), ""); err == nil {
		t.Error("Logout() with empty session ID should fail")
	}
}
