package outputs

import (
	"context"
	"errors"

	"github.com/akave-ai/nbstreamer/internal/model"
)

// ErrDelivery wraps every transport failure returned by Send.
var ErrDelivery = errors.New("gelf delivery failed")

// Output delivers GELF messages to the log aggregator.
// Send never retries; a failed message is reported to the caller and dropped.
// Implementations must be safe for concurrent use.
type Output interface {
	Send(ctx context.Context, msg *model.GELFMessage) error
	Close() error
}
