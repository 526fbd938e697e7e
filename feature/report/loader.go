package report

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	handler *Handler
}

// NewFeature creates the report feature. A nil ledger disables it.
func NewFeature(ledger Ledger, logger *zap.Logger) *Feature {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := NewService(ledger, logger)
	return &Feature{service: svc, handler: NewHandler(svc)}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "report"
}

// IsEnabled reports whether a ledger is available.
func (f *Feature) IsEnabled() bool {
	return f.service.ledger != nil
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
