package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/pathpricing/internal/pricing/domain"
	"github.com/wyfcoding/pathpricing/pkg/db"
)

type pricingRunRepository struct {
	db *gorm.DB
}

// NewPricingRunRepository 创建并返回一个新的 pricingRunRepository 实例。
func NewPricingRunRepository(gdb *gorm.DB) domain.PricingRunRepository {
	return &pricingRunRepository{db: gdb}
}

// AutoMigrate 创建或更新定价运行表
func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&PricingRunModel{})
}

func (r *pricingRunRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.db, fn)
}

// Save 按 ID 插入或整行覆盖
func (r *pricingRunRepository) Save(ctx context.Context, run *domain.PricingRun) error {
	model, err := toPricingRunModel(run)
	if err != nil {
		return err
	}
	if model == nil {
		return nil
	}
	return db.Conn(ctx, r.db).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(model).Error
}

func (r *pricingRunRepository) Get(ctx context.Context, id string) (*domain.PricingRun, error) {
	var m PricingRunModel
	if err := db.Conn(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, id)
		}
		return nil, err
	}
	return toPricingRun(&m)
}

// GetLatest 最近一次未失败的运行
func (r *pricingRunRepository) GetLatest(ctx context.Context, symbol string) (*domain.PricingRun, error) {
	var m PricingRunModel
	if err := db.Conn(ctx, r.db).
		Where("symbol = ? AND status <> ?", symbol, domain.RunStatusFailed).
		Order("created_at desc").
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no run for %s", domain.ErrRunNotFound, symbol)
		}
		return nil, err
	}
	return toPricingRun(&m)
}

func (r *pricingRunRepository) List(ctx context.Context, symbol string, limit int) ([]*domain.PricingRun, error) {
	q := db.Conn(ctx, r.db).Order("created_at desc").Limit(limit)
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	var models []PricingRunModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	runs := make([]*domain.PricingRun, 0, len(models))
	for i := range models {
		run, err := toPricingRun(&models[i])
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}
