// Package payment はStripeとの決済連携を提供する。
// Payment Intentの発行とWebhookイベントの処理を含む。
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/stripe/stripe-go/v82"

	"github.com/hitoshi/mbehosting/internal/model"
	"github.com/hitoshi/mbehosting/internal/repository"
)

// IntentCreator はPayment Intent発行のインターフェース。
// *paymentintent.Clientがこれを満たす。
type IntentCreator interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// OrderService は決済処理が必要とする注文操作のインターフェース。
type OrderService interface {
	Get(ctx context.Context, orderID, userID int64) (*model.Order, error)
	AttachPaymentIntent(ctx context.Context, orderID, userID int64, intentID string) error
	FindByIntent(ctx context.Context, intentID string) (*model.Order, error)
	MarkPaidByIntent(ctx context.Context, intentID string) error
	MarkFailedByIntent(ctx context.Context, intentID string) error
}

// Provisioner は支払い完了後のプロビジョニング登録インターフェース。
type Provisioner interface {
	Enqueue(ctx context.Context, order *model.Order) (*model.Server, error)
}

// MetricsRecorder は決済イベントの計測インターフェース。nil可。
type MetricsRecorder interface {
	PaymentSucceeded()
	PaymentFailed()
	WebhookEvent(eventType, outcome string)
}

// Service は決済のサービス層。
type Service struct {
	intents        IntentCreator
	orders         OrderService
	paymentRepo    repository.PaymentRepository
	provisioner    Provisioner
	metrics        MetricsRecorder
	publishableKey string
}

// NewService はServiceを生成する。metricsはnil可。
func NewService(
	intents IntentCreator,
	orders OrderService,
	paymentRepo repository.PaymentRepository,
	provisioner Provisioner,
	metrics MetricsRecorder,
	publishableKey string,
) *Service {
	return &Service{
		intents:        intents,
		orders:         orders,
		paymentRepo:    paymentRepo,
		provisioner:    provisioner,
		metrics:        metrics,
		publishableKey: publishableKey,
	}
}

// IntentResult はPayment Intent発行の結果。フロントエンドの決済フォームに渡す。
type IntentResult struct {
	ClientSecret   string  `json:"clientSecret"`
	PublishableKey string  `json:"publishableKey"`
	IntentID       string  `json:"paymentIntentId"`
	Amount         float64 `json:"amount"`
}

// CreateIntent は注文に対するPayment Intentを発行する。
// 対象注文は呼び出しユーザーのpending注文であること。
// 金額はドル建て価格をセントに変換して渡す。
func (s *Service) CreateIntent(ctx context.Context, userID, orderID int64) (*IntentResult, error) {
	order, err := s.orders.Get(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusPending {
		return nil, model.NewValidationError("この注文は支払い待ちではありません")
	}

	amountCents := int64(math.Round(order.Price * 100))

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("order_id", strconv.FormatInt(orderID, 10))
	params.AddMetadata("user_id", strconv.FormatInt(userID, 10))

	intent, err := s.intents.New(params)
	if err != nil {
		slog.Error("Payment Intentの発行に失敗しました",
			slog.Int64("order_id", orderID),
			slog.String("error", err.Error()),
		)
		if s.metrics != nil {
			s.metrics.PaymentFailed()
		}
		return nil, model.NewPaymentFailedError()
	}

	if err := s.orders.AttachPaymentIntent(ctx, orderID, userID, intent.ID); err != nil {
		return nil, err
	}

	slog.Info("Payment Intentを発行しました",
		slog.Int64("order_id", orderID),
		slog.String("payment_intent_id", intent.ID),
		slog.Int64("amount_cents", amountCents),
	)

	return &IntentResult{
		ClientSecret:   intent.ClientSecret,
		PublishableKey: s.publishableKey,
		IntentID:       intent.ID,
		Amount:         order.Price,
	}, nil
}

// paymentIntentPayload はWebhookイベントから必要な項目だけを取り出す。
type paymentIntentPayload struct {
	ID           string          `json:"id"`
	Amount       int64           `json:"amount"`
	Currency     string          `json:"currency"`
	LatestCharge json.RawMessage `json:"latest_charge"`
}

// chargeDetails はlatest_chargeが展開されている場合のカード情報。
type chargeDetails struct {
	ID                   string `json:"id"`
	PaymentMethodDetails struct {
		Card struct {
			Brand string `json:"brand"`
			Last4 string `json:"last4"`
		} `json:"card"`
	} `json:"payment_method_details"`
}

// parseLatestCharge はlatest_chargeを解釈する。
// Webhookペイロードでは文字列のcharge IDか展開済みオブジェクトのどちらかで届く。
func parseLatestCharge(raw json.RawMessage) (chargeID, cardBrand, cardLast4 string) {
	if len(raw) == 0 {
		return "", "", ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id, "", ""
	}
	var charge chargeDetails
	if err := json.Unmarshal(raw, &charge); err != nil {
		return "", "", ""
	}
	return charge.ID, charge.PaymentMethodDetails.Card.Brand, charge.PaymentMethodDetails.Card.Last4
}

// HandleEvent は署名検証済みのWebhookイベントを処理する。
// 関心のないイベント種別は何もせず成功を返す（Stripeに再送させない）。
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case "payment_intent.succeeded":
		var pi paymentIntentPayload
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return fmt.Errorf("payment_intentのデコードに失敗しました: %w", err)
		}
		err := s.handleSucceeded(ctx, pi)
		s.recordWebhook(string(event.Type), err)
		return err

	case "payment_intent.payment_failed":
		var pi paymentIntentPayload
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return fmt.Errorf("payment_intentのデコードに失敗しました: %w", err)
		}
		err := s.handleFailed(ctx, pi)
		s.recordWebhook(string(event.Type), err)
		return err

	default:
		slog.Info("対象外のWebhookイベントを受信しました",
			slog.String("type", string(event.Type)),
			slog.String("event_id", event.ID),
		)
		s.recordWebhook(string(event.Type), nil)
		return nil
	}
}

// handleSucceeded は支払い成功イベントを処理する。
// 決済レコードの存在チェックと部分一意インデックスの二重ガードにより、
// 同じintentの再配送では決済行が増えない。
func (s *Service) handleSucceeded(ctx context.Context, pi paymentIntentPayload) error {
	existing, err := s.paymentRepo.FindByPaymentIntent(ctx, pi.ID)
	if err != nil {
		return fmt.Errorf("決済レコードの検索に失敗しました: %w", err)
	}
	if existing != nil {
		slog.Info("処理済みのpayment intentを再受信しました",
			slog.String("payment_intent_id", pi.ID),
		)
		// 初回配送で決済行の作成後にEnqueueが失敗すると、再送はこの分岐に
		// 入る。Enqueueは冪等なのでここでも呼び、サーバー行の欠落を補填する。
		order, err := s.orders.FindByIntent(ctx, pi.ID)
		if err != nil {
			return err
		}
		if order != nil {
			if _, err := s.provisioner.Enqueue(ctx, order); err != nil {
				return err
			}
		}
		return nil
	}

	if err := s.orders.MarkPaidByIntent(ctx, pi.ID); err != nil {
		return err
	}

	order, err := s.orders.FindByIntent(ctx, pi.ID)
	if err != nil {
		return err
	}
	if order == nil {
		// intent参照を持つ注文がない。ログだけ残してStripeにはACKを返す。
		slog.Warn("intent参照に一致する注文がありません",
			slog.String("payment_intent_id", pi.ID),
		)
		return nil
	}

	chargeID, cardBrand, cardLast4 := parseLatestCharge(pi.LatestCharge)

	payment := &model.Payment{
		OrderID:               order.ID,
		UserID:                order.UserID,
		Amount:                float64(pi.Amount) / 100,
		Currency:              pi.Currency,
		StripePaymentIntentID: pi.ID,
		StripeChargeID:        chargeID,
		Status:                model.PaymentStatusCompleted,
		CardBrand:             cardBrand,
		CardLast4:             cardLast4,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		// 競合時は一意インデックスに弾かれる。Stripeの再送で存在チェックに入る。
		return fmt.Errorf("決済レコードの作成に失敗しました: %w", err)
	}

	if _, err := s.provisioner.Enqueue(ctx, order); err != nil {
		return err
	}

	slog.Info("支払いが完了しました",
		slog.Int64("order_id", order.ID),
		slog.String("payment_intent_id", pi.ID),
		slog.Float64("amount", payment.Amount),
	)
	if s.metrics != nil {
		s.metrics.PaymentSucceeded()
	}

	return nil
}

// handleFailed は支払い失敗イベントを処理する。
func (s *Service) handleFailed(ctx context.Context, pi paymentIntentPayload) error {
	if err := s.orders.MarkFailedByIntent(ctx, pi.ID); err != nil {
		return err
	}
	slog.Info("支払いが失敗しました",
		slog.String("payment_intent_id", pi.ID),
	)
	if s.metrics != nil {
		s.metrics.PaymentFailed()
	}
	return nil
}

func (s *Service) recordWebhook(eventType string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "processed"
	if err != nil {
		outcome = "error"
	}
	s.metrics.WebhookEvent(eventType, outcome)
}
