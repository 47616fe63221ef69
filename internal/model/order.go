package model

import (
	"time"
)

// PurchaseOrder 积分商城兑换订单，创建后不可修改（锚定回执除外）
type PurchaseOrder struct {
	ID           int64     `json:"id"`
	AccountRef   string    `json:"account_ref"`
	ItemID       int64     `json:"item_id"`
	ItemName     string    `json:"name"`
	Price        int64     `json:"price"`
	CreatedAt    time.Time `json:"created_at"`
	AnchorTxHash *string   `json:"anchor_tx_hash"`
}

// MarketplaceItem 商城商品，静态种子数据，运行时只读
type MarketplaceItem struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Category string `json:"category"`
	Image    string `json:"image"`
}
