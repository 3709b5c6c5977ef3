package gateway

import (
	"context"
	"fmt"

	"learnplatform/internal/domain"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// Брокер заказов внешнего шлюза. Локального состояния нет.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int, currency, receipt string, notes map[string]interface{}) (*domain.PaymentOrder, error)
	KeyID() string
	VerifySignature(body []byte, signature string) bool
}

type RazorpayGateway struct {
	client        *razorpay.Client
	keyID         string
	webhookSecret string
}

func NewRazorpayGateway(keyID, keySecret, webhookSecret string) *RazorpayGateway {
	client := razorpay.NewClient(keyID, keySecret)
	// Внешний вызов не должен висеть вечно; SDK принимает целые секунды
	client.SetTimeout(10)
	return &RazorpayGateway{
		client:        client,
		keyID:         keyID,
		webhookSecret: webhookSecret,
	}
}

func (g *RazorpayGateway) KeyID() string {
	return g.keyID
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int, currency, receipt string, notes map[string]interface{}) (*domain.PaymentOrder, error) {
	data := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
		"notes":    notes,
	}

	order, err := g.client.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayFailed, err)
	}

	orderID, _ := order["id"].(string)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id missing in response", domain.ErrGatewayFailed)
	}

	created := &domain.PaymentOrder{
		OrderID:  orderID,
		Amount:   amount,
		Currency: currency,
	}
	if a, ok := order["amount"].(float64); ok {
		created.Amount = int(a)
	}
	if cur, ok := order["currency"].(string); ok {
		created.Currency = cur
	}
	return created, nil
}

// Пустой секрет — проверка выключена (dev-окружение)
func (g *RazorpayGateway) VerifySignature(body []byte, signature string) bool {
	if g.webhookSecret == "" {
		return true
	}
	return utils.VerifyWebhookSignature(string(body), signature, g.webhookSecret)
}
