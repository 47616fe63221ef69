package service

import (
	"context"
	"strings"

	"ecoprado/internal/model"
	"ecoprado/internal/repository"
)

// MarketplaceService 商城目录和兑换记录查询
type MarketplaceService struct {
	catalog repository.CatalogRepository
	orders  repository.OrderRepository
}

func NewMarketplaceService(stores *Stores) *MarketplaceService {
	return &MarketplaceService{
		catalog: stores.Catalog,
		orders:  stores.Orders,
	}
}

func (s *MarketplaceService) ListItems(ctx context.Context) ([]*model.MarketplaceItem, error) {
	return s.catalog.List(ctx)
}

func (s *MarketplaceService) GetItem(ctx context.Context, id int64) (*model.MarketplaceItem, error) {
	return s.catalog.GetByID(ctx, id)
}

// ListPurchases 按兑换顺序返回
func (s *MarketplaceService) ListPurchases(ctx context.Context, publicKey string) ([]*model.PurchaseOrder, error) {
	if strings.TrimSpace(publicKey) == "" {
		return nil, newValidationError("public_key", "不能为空")
	}
	return s.orders.ListByAccount(ctx, publicKey)
}
