// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, auth, billing, provisioning, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeAccountDisabled    = "ACCOUNT_DISABLED"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodePlanNotFound       = "PLAN_NOT_FOUND"
	ErrCodeOrderNotFound      = "ORDER_NOT_FOUND"
	ErrCodeOrderNotPaid       = "ORDER_NOT_PAID"
	ErrCodeServerNotFound     = "SERVER_NOT_FOUND"
	ErrCodeServerExists       = "SERVER_ALREADY_EXISTS"
	ErrCodePaymentFailed      = "PAYMENT_FAILED"
	ErrCodeProvisionFailed    = "PROVISION_FAILED"
)

// NewValidationError は入力バリデーションエラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// どのフィールドが誤っていたかは意図的に区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewAccountDisabledError は無効化されたアカウントのログインエラーを生成する。
func NewAccountDisabledError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountDisabled,
		Message:  "アカウントが無効化されています。",
		Category: "auth",
		Action:   "サポートにお問い合わせください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewPlanNotFoundError はプランが見つからない場合のエラーを生成する。
func NewPlanNotFoundError(planID int64) *APIError {
	return &APIError{
		Code:     ErrCodePlanNotFound,
		Message:  fmt.Sprintf("指定されたプランが見つかりません: %d", planID),
		Category: "validation",
		Action:   "プラン一覧から有効なプランを選択してください。",
	}
}

// NewOrderNotFoundError は注文が見つからない場合のエラーを生成する。
// 他ユーザーの注文へのアクセスもこのエラーになる（存在の漏洩を防ぐ）。
func NewOrderNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeOrderNotFound,
		Message:  "指定された注文が見つかりません。",
		Category: "billing",
		Action:   "注文IDを確認してください。",
	}
}

// NewOrderNotPaidError は未払い注文に対する操作のエラーを生成する。
func NewOrderNotPaidError() *APIError {
	return &APIError{
		Code:     ErrCodeOrderNotPaid,
		Message:  "注文の支払いが完了していません。",
		Category: "billing",
		Action:   "先に支払いを完了してください。",
	}
}

// NewServerNotFoundError はサーバーが見つからない場合のエラーを生成する。
// 他ユーザーのサーバーへのアクセスもこのエラーになる（存在の漏洩を防ぐ）。
func NewServerNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeServerNotFound,
		Message:  "指定されたサーバーが見つかりません。",
		Category: "provisioning",
		Action:   "サーバーIDを確認してください。",
	}
}

// NewServerExistsError は注文に対するサーバーが既に存在する場合のエラーを生成する。
func NewServerExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeServerExists,
		Message:  "この注文に対するサーバーは既に作成されています。",
		Category: "provisioning",
		Action:   "サーバー一覧を確認してください。",
	}
}

// NewPaymentFailedError は決済プロバイダ呼び出し失敗のエラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewPaymentFailedError() *APIError {
	return &APIError{
		Code:     ErrCodePaymentFailed,
		Message:  "決済処理を開始できませんでした。",
		Category: "billing",
		Action:   "しばらく待ってから再度お試しください。解決しない場合はサポートにお問い合わせください。",
	}
}

// NewProvisionFailedError はサーバープロビジョニング失敗のエラーを生成する。
func NewProvisionFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeProvisionFailed,
		Message:  "サーバーの作成に失敗しました。",
		Category: "provisioning",
		Action:   "サポートにお問い合わせください。",
	}
}
