// Package auth はユーザー登録、ログイン、セッション管理を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/mbehosting/internal/model"
	"github.com/hitoshi/mbehosting/internal/repository"
	"github.com/hitoshi/mbehosting/internal/security"
)

// PhoneCipher は電話番号の保存時暗号化インターフェース。
type PhoneCipher interface {
	Encrypt(plaintext string) (string, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	cipher      PhoneCipher
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	cipher PhoneCipher,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		cipher:      cipher,
		config:      config,
	}
}

// RegisterInput はユーザー登録の入力。
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// Register は新規ユーザーを登録し、セッションを発行する。
// 電話番号は任意項目で、指定された場合は暗号化して保存する。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*model.Session, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, model.NewValidationError("メールアドレスの形式が正しくありません")
	}
	if strings.TrimSpace(input.FirstName) == "" || strings.TrimSpace(input.LastName) == "" {
		return nil, model.NewValidationError("氏名は必須です")
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, model.NewValidationError(
				fmt.Sprintf("パスワードは%d文字以上で入力してください", security.MinPasswordLength))
		}
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	phone := strings.TrimSpace(input.Phone)
	if phone != "" {
		encrypted, err := s.cipher.Encrypt(phone)
		if err != nil {
			return nil, fmt.Errorf("電話番号の暗号化に失敗しました: %w", err)
		}
		phone = encrypted
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Phone:        phone,
		IsActive:     true,
	}

	userID, err := s.userRepo.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}
	user.ID = userID

	slog.Info("新規ユーザーを登録しました",
		slog.Int64("user_id", userID),
		slog.String("email", email),
	)

	session, err := s.createSession(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	return session, nil
}

// Login はメールアドレスとパスワードで認証し、セッションを発行する。
// メールアドレス不明とパスワード不一致は意図的に同じエラーにする。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, model.NewValidationError("メールアドレスとパスワードは必須です")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if !security.VerifyPassword(password, user.PasswordHash) {
		return nil, model.NewInvalidCredentialsError()
	}

	if !user.IsActive {
		return nil, model.NewAccountDisabledError()
	}

	session, err := s.createSession(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	slog.Info("ユーザーがログインしました",
		slog.Int64("user_id", user.ID),
	)

	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// createSession はユーザーの最小限の投影を載せたセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, user *model.User) (*model.Session, error) {
	now := time.Now()
	session := &model.Session{
		ID:     uuid.New().String(),
		UserID: user.ID,
		User: model.SessionUser{
			ID:        user.ID,
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
		},
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}
