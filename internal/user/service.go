// Package user はユーザープロフィールと退会処理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/mbehosting/internal/model"
	"github.com/hitoshi/mbehosting/internal/repository"
	"github.com/hitoshi/mbehosting/internal/security"
)

// PhoneDecrypter は電話番号の復号インターフェース。
type PhoneDecrypter interface {
	Decrypt(token string) (string, error)
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	cipher      PhoneDecrypter
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	cipher PhoneDecrypter,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		cipher:      cipher,
	}
}

// Profile は表示用のユーザープロフィールを返す。
// Phoneは復号済みの平文。復号できないトークン（鍵のローテーション等）は
// エラーにせず空欄にし、警告ログだけ残す。
func (s *Service) Profile(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	if user.Phone != "" {
		plain, err := s.cipher.Decrypt(user.Phone)
		if err != nil {
			var decErr *security.DecryptionError
			if !errors.As(err, &decErr) {
				return nil, fmt.Errorf("電話番号の復号に失敗しました: %w", err)
			}
			slog.Warn("電話番号トークンを復号できません",
				slog.Int64("user_id", userID),
				slog.String("reason", decErr.Reason),
			)
			plain = ""
		}
		user.Phone = plain
	}

	// ハッシュはプロフィール表示に不要なので落とす
	user.PasswordHash = ""

	return user, nil
}

// Withdraw はユーザーの退会処理を実行する。
// セッションを先に明示削除し、ユーザー行の削除で
// orders、servers、paymentsはCASCADE削除される。
func (s *Service) Withdraw(ctx context.Context, userID int64) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.Int64("user_id", userID),
	)

	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.Int64("user_id", userID),
	)

	return nil
}
