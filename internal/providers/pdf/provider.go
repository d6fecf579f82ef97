package pdf

import (
	"context"
	"io"

	"go.uber.org/fx"
)

// ReceiptData carries everything the receipt layout needs, preformatted.
type ReceiptData struct {
	ReceiptNumber string
	UserID        string
	VehicleType   string
	Duration      string
	Rate          string
	Total         string
	PaymentMethod string
	DatePaid      string
}

type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
}

var Module = fx.Module("providers.pdf",
	fx.Provide(NewProvider),
)
