package application

import (
	"context"

	"github.com/wyfcoding/pathpricing/internal/pricing/domain"
)

// PricingService 定价门面服务。
type PricingService struct {
	Command *PricingCommandService
	Query   *PricingQueryService
}

// NewPricingService 构造函数。
func NewPricingService(command *PricingCommandService, query *PricingQueryService) *PricingService {
	return &PricingService{
		Command: command,
		Query:   query,
	}
}

// --- Command Facade ---

func (s *PricingService) PriceOption(ctx context.Context, cmd PriceOptionCommand) (*domain.PricingRun, error) {
	return s.Command.PriceOption(ctx, cmd)
}

func (s *PricingService) BatchPriceOptions(ctx context.Context, cmd BatchPriceOptionsCommand) (*BatchPricingResult, error) {
	return s.Command.BatchPriceOptions(ctx, cmd)
}

func (s *PricingService) RelayOutbox(ctx context.Context, batchSize int) (int, error) {
	return s.Command.RelayOutbox(ctx, batchSize)
}

func (s *PricingService) Devices() []domain.DeviceProperties {
	return s.Command.Devices()
}

// --- Query Facade ---

func (s *PricingService) GetRun(ctx context.Context, id string) (*domain.PricingRun, error) {
	return s.Query.GetRun(ctx, id)
}

func (s *PricingService) GetLatestRun(ctx context.Context, symbol string) (*domain.PricingRun, error) {
	return s.Query.GetLatestRun(ctx, symbol)
}

func (s *PricingService) ListRuns(ctx context.Context, symbol string, limit int) ([]*domain.PricingRun, error) {
	return s.Query.ListRuns(ctx, symbol, limit)
}
