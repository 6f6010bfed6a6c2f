package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/mbehosting/internal/model"
)

// SessionCookieName はセッションIDを保持するHttpOnly Cookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionUserContextKey はリクエストコンテキストにユーザー投影を格納するためのキー。
var sessionUserContextKey = contextKey("session_user")

// sessionIDContextKey はリクエストコンテキストにセッションIDを格納するためのキー。
var sessionIDContextKey = contextKey("session_id")

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効性を検証するミドルウェアを返す。
// セッションに保持された最小限のユーザー投影をリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewSessionMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteUnauthorized(w)
				return
			}

			// 期限切れセッションはFindByIDがnilを返す
			session, err := sessionFinder.FindByID(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to find session",
					slog.String("error", err.Error()),
				)
				WriteUnauthorized(w)
				return
			}
			if session == nil {
				WriteUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), sessionUserContextKey, session.User)
			ctx = context.WithValue(ctx, sessionIDContextKey, session.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionUserFromContext はリクエストコンテキストからユーザー投影を取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func SessionUserFromContext(ctx context.Context) (model.SessionUser, error) {
	user, ok := ctx.Value(sessionUserContextKey).(model.SessionUser)
	if !ok || user.ID == 0 {
		return model.SessionUser{}, fmt.Errorf("session user not found in context")
	}
	return user, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (int64, error) {
	user, err := SessionUserFromContext(ctx)
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

// SessionIDFromContext はリクエストコンテキストからセッションIDを取得する。
func SessionIDFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(sessionIDContextKey).(string)
	if !ok || id == "" {
		return "", fmt.Errorf("session ID not found in context")
	}
	return id, nil
}

// ContextWithSessionUser はコンテキストにユーザー投影を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSessionUser(ctx context.Context, user model.SessionUser) context.Context {
	return context.WithValue(ctx, sessionUserContextKey, user)
}

// ContextWithSessionID はコンテキストにセッションIDを注入する。
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey, sessionID)
}
