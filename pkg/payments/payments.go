package payments

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"evcharge/pkg/logger"

	"github.com/stripe/stripe-go/v82"
)

// DemoPrefix marks payment ids produced by the demo checkout. They are
// treated as settled without asking the provider.
const DemoPrefix = "demo_"

var ErrNotConfigured = errors.New("payment provider not configured")

// Processor is the slice of the payment provider the booking flow needs.
type Processor interface {
	CreateIntent(ctx context.Context, amount float64, stationID int) (Intent, error)
	Succeeded(ctx context.Context, paymentID string) (bool, error)
	Refund(ctx context.Context, paymentID string) error
}

type Intent struct {
	ID           string
	ClientSecret string
}

func IsDemo(paymentID string) bool {
	return strings.HasPrefix(paymentID, DemoPrefix)
}

// ToMinorUnits converts an amount in major currency units to the smallest
// unit, rounding half away from zero.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

type Stripe struct {
	client   *stripe.Client
	currency string
	log      *logger.Logger
}

// NewStripe returns a Stripe backed processor, or a disabled one when
// secretKey is empty.
func NewStripe(secretKey, currency string, log *logger.Logger) Processor {
	log = log.Component("payments")
	if secretKey == "" {
		log.Warn("Stripe secret key not set; card payments are disabled")
		return Disabled{}
	}
	return &Stripe{
		client:   stripe.NewClient(secretKey),
		currency: currency,
		log:      log,
	}
}

func (s *Stripe) CreateIntent(ctx context.Context, amount float64, stationID int) (Intent, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(ToMinorUnits(amount)),
		Currency: stripe.String(s.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			"stationId": strconv.Itoa(stationID),
		},
	}

	pi, err := s.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return Intent{}, fmt.Errorf("create payment intent: %w", err)
	}

	s.log.Info("Payment intent created", "payment_id", pi.ID, "station_id", stationID)
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (s *Stripe) Succeeded(ctx context.Context, paymentID string) (bool, error) {
	if IsDemo(paymentID) {
		return true, nil
	}

	pi, err := s.client.V1PaymentIntents.Retrieve(ctx, paymentID, &stripe.PaymentIntentRetrieveParams{})
	if err != nil {
		return false, fmt.Errorf("retrieve payment intent: %w", err)
	}
	return pi.Status == stripe.PaymentIntentStatusSucceeded, nil
}

func (s *Stripe) Refund(ctx context.Context, paymentID string) error {
	if IsDemo(paymentID) {
		return nil
	}

	_, err := s.client.V1Refunds.Create(ctx, &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(paymentID),
	})
	if err != nil {
		return fmt.Errorf("refund payment intent: %w", err)
	}

	s.log.Info("Payment refunded", "payment_id", paymentID)
	return nil
}

// Disabled accepts demo payments and rejects everything else.
type Disabled struct{}

func (Disabled) CreateIntent(context.Context, float64, int) (Intent, error) {
	return Intent{}, ErrNotConfigured
}

func (Disabled) Succeeded(_ context.Context, paymentID string) (bool, error) {
	if IsDemo(paymentID) {
		return true, nil
	}
	return false, ErrNotConfigured
}

func (Disabled) Refund(_ context.Context, paymentID string) error {
	if IsDemo(paymentID) {
		return nil
	}
	return ErrNotConfigured
}
