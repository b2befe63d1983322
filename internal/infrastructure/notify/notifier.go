package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Siva2k2k/ES-TM-sub002/internal/core/domain"
)

// LogNotifier records approval notifications in the structured log. It
// stands in for the mail or chat integration until one is configured.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// NotifyApprovers logs the pending invoice that needs attention.
func (n *LogNotifier) NotifyApprovers(_ context.Context, inv *domain.Invoice) error {
	n.log.Info().
		Str("invoice_number", inv.InvoiceNumber).
		Str("client_id", inv.ClientID).
		Str("total", inv.TotalAmount.String()).
		Msg("invoice pending approval")
	return nil
}
