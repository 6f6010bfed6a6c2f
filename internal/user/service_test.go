package user

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/mbehosting/internal/model"
	"github.com/hitoshi/mbehosting/internal/security"
)

type mockUserRepo struct {
	findByIDFn   func(ctx context.Context, id int64) (*model.User, error)
	deleteByIDFn func(ctx context.Context, id int64) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) Create(_ context.Context, _ *model.User) (int64, error) {
	return 0, nil
}

func (m *mockUserRepo) DeleteByID(ctx context.Context, id int64) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

type mockSessionRepo struct {
	deleteByUserIDFn func(ctx context.Context, userID int64) error
}

func (m *mockSessionRepo) Create(_ context.Context, _ *model.Session) error { return nil }

func (m *mockSessionRepo) FindByID(_ context.Context, _ string) (*model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(_ context.Context, _ string) error { return nil }

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID int64) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

type mockDecrypter struct {
	decryptFn func(token string) (string, error)
}

func (m *mockDecrypter) Decrypt(token string) (string, error) {
	if m.decryptFn != nil {
		return m.decryptFn(token)
	}
	return token, nil
}

func TestProfile_DecryptsPhone(t *testing.T) {
	userRepo := &mockUserRepo{
		findByIDFn: func(_ context.Context, id int64) (*model.User, error) {
			return &model.User{ID: id, Email: "taro@example.com", PasswordHash: "hash", Phone: "token"}, nil
		},
	}
	cipher := &mockDecrypter{
		decryptFn: func(token string) (string, error) {
			if token != "token" {
				t.Errorf("decrypt arg = %q", token)
			}
			return "090-1234-5678", nil
		},
	}
	svc := NewService(userRepo, &mockSessionRepo{}, cipher)

	profile, err := svc.Profile(context.Background(), 1)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if profile.Phone != "090-1234-5678" {
		t.Errorf("phone = %q, want decrypted plaintext", profile.Phone)
	}
	if profile.PasswordHash != "" {
		t.Error("password hash should not be exposed on the profile")
	}
}

func TestProfile_UndecryptablePhoneBecomesEmpty(t *testing.T) {
	userRepo := &mockUserRepo{
		findByIDFn: func(_ context.Context, id int64) (*model.User, error) {
			return &model.User{ID: id, Phone: "broken-token"}, nil
		},
	}
	cipher := &mockDecrypter{
		decryptFn: func(_ string) (string, error) {
			return "", &security.DecryptionError{Reason: "authentication failed"}
		},
	}
	svc := NewService(userRepo, &mockSessionRepo{}, cipher)

	profile, err := svc.Profile(context.Background(), 1)
	if err != nil {
		t.Fatalf("Profile() error = %v, want graceful degradation", err)
	}
	if profile.Phone != "" {
		t.Errorf("phone = %q, want empty for undecryptable token", profile.Phone)
	}
}

func TestProfile_UnexpectedDecryptErrorPropagates(t *testing.T) {
	userRepo := &mockUserRepo{
		findByIDFn: func(_ context.Context, id int64) (*model.User, error) {
			return &model.User{ID: id, Phone: "token"}, nil
		},
	}
	cipher := &mockDecrypter{
		decryptFn: func(_ string) (string, error) {
			return "", errors.New("kms unavailable")
		},
	}
	svc := NewService(userRepo, &mockSessionRepo{}, cipher)

	if _, err := svc.Profile(context.Background(), 1); err == nil {
		t.Error("Profile() should propagate non-decryption errors")
	}
}

func TestProfile_UserNotFound(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockSessionRepo{}, &mockDecrypter{})

	_, err := svc.Profile(context.Background(), 999)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("Profile() error = %v, want USER_NOT_FOUND", err)
	}
}

func TestWithdraw_DeletesSessionsThenUser(t *testing.T) {
	var calls []string
	userRepo := &mockUserRepo{
		findByIDFn: func(_ context.Context, id int64) (*model.User, error) {
			return &model.User{ID: id}, nil
		},
		deleteByIDFn: func(_ context.Context, _ int64) error {
			calls = append(calls, "user")
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{
		deleteByUserIDFn: func(_ context.Context, _ int64) error {
			calls = append(calls, "sessions")
			return nil
		},
	}
	svc := NewService(userRepo, sessionRepo, &mockDecrypter{})

	if err := svc.Withdraw(context.Background(), 1); err != nil {
		t.Fatalf("Withdraw() error = %v", err)
	}
	if len(calls) != 2 || calls[0] != "sessions" || calls[1] != "user" {
		t.Errorf("call order = %v, want [sessions user]", calls)
	}
}

func TestWithdraw_UnknownUser(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockSessionRepo{}, &mockDecrypter{})

	err := svc.Withdraw(context.Background(), 999)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("Withdraw() error = %v, want USER_NOT_FOUND", err)
	}
}
