package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"ecoprado/internal/model"
)

var (
	ErrOrderNotFound = errors.New("订单不存在")
	ErrItemNotFound  = errors.New("商品不存在")
)

// OrderRepository 兑换订单日志
type OrderRepository interface {
	Create(ctx context.Context, order *model.PurchaseOrder) error
	GetByID(ctx context.Context, id int64) (*model.PurchaseOrder, error)
	ListByAccount(ctx context.Context, accountRef string) ([]*model.PurchaseOrder, error)
	// AttachAnchor 补写锚定回执，已有值时不覆盖
	AttachAnchor(ctx context.Context, id int64, txHash string) (*model.PurchaseOrder, error)
}

type memoryOrderRepository struct {
	mu        sync.RWMutex
	nextID    int64
	byID      map[int64]*model.PurchaseOrder
	byAccount map[string][]*model.PurchaseOrder
}

func NewMemoryOrderRepository() OrderRepository {
	return &memoryOrderRepository{
		byID:      make(map[int64]*model.PurchaseOrder),
		byAccount: make(map[string][]*model.PurchaseOrder),
	}
}

func (r *memoryOrderRepository) Create(ctx context.Context, order *model.PurchaseOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	order.ID = r.nextID
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}

	stored := cloneOrder(order)
	r.byID[stored.ID] = stored
	r.byAccount[stored.AccountRef] = append(r.byAccount[stored.AccountRef], stored)
	return nil
}

func (r *memoryOrderRepository) GetByID(ctx context.Context, id int64) (*model.PurchaseOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.byID[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func (r *memoryOrderRepository) ListByAccount(ctx context.Context, accountRef string) ([]*model.PurchaseOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.byAccount[accountRef]
	result := make([]*model.PurchaseOrder, 0, len(list))
	for _, o := range list {
		result = append(result, cloneOrder(o))
	}
	return result, nil
}

func (r *memoryOrderRepository) AttachAnchor(ctx context.Context, id int64, txHash string) (*model.PurchaseOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.byID[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if order.AnchorTxHash == nil {
		order.AnchorTxHash = &txHash
	}
	return cloneOrder(order), nil
}

func cloneOrder(o *model.PurchaseOrder) *model.PurchaseOrder {
	copied := *o
	copied.AnchorTxHash = copyString(o.AnchorTxHash)
	return &copied
}

// CatalogRepository 商城目录，只读
type CatalogRepository interface {
	List(ctx context.Context) ([]*model.MarketplaceItem, error)
	GetByID(ctx context.Context, id int64) (*model.MarketplaceItem, error)
}

type staticCatalog struct {
	items []model.MarketplaceItem
}

// NewStaticCatalog items 为空时使用默认种子数据
func NewStaticCatalog(items []model.MarketplaceItem) CatalogRepository {
	if len(items) == 0 {
		items = DefaultCatalog()
	}
	copied := make([]model.MarketplaceItem, len(items))
	copy(copied, items)
	return &staticCatalog{items: copied}
}

func (c *staticCatalog) List(ctx context.Context) ([]*model.MarketplaceItem, error) {
	result := make([]*model.MarketplaceItem, 0, len(c.items))
	for i := range c.items {
		item := c.items[i]
		result = append(result, &item)
	}
	return result, nil
}

func (c *staticCatalog) GetByID(ctx context.Context, id int64) (*model.MarketplaceItem, error) {
	for i := range c.items {
		if c.items[i].ID == id {
			item := c.items[i]
			return &item, nil
		}
	}
	return nil, ErrItemNotFound
}

func DefaultCatalog() []model.MarketplaceItem {
	return []model.MarketplaceItem{
		{ID: 1, Name: "Café Orgánico Local", Price: 50, Category: "alimentos", Image: "https://images.unsplash.com/photo-1495474472287-4d71bcdd2085?w=400"},
		{ID: 2, Name: "Taller de Compostaje", Price: 75, Category: "educacion", Image: "https://images.unsplash.com/photo-1466692476868-aef1dfb1e735?w=400"},
		{ID: 3, Name: "Productos Agrícolas Sostenibles", Price: 100, Category: "alimentos", Image: "https://images.unsplash.com/photo-1471193945509-9ad0617afabf?w=400"},
		{ID: 4, Name: "Tour Ecológico Xochitepec", Price: 150, Category: "turismo", Image: "https://images.unsplash.com/photo-1502082553048-f009c37129b9?w=400"},
		{ID: 5, Name: "Planta Nativa para tu Jardín", Price: 30, Category: "jardineria", Image: "https://images.unsplash.com/photo-1466781783364-36c955e42a7f?w=400"},
		{ID: 6, Name: "Descuento Transporte Público", Price: 20, Category: "transporte", Image: "https://images.unsplash.com/photo-1544620347-c4fd4a3d5957?w=400"},
	}
}
