package backend

import (
	"context"
	"time"

	gd "github.com/Keksclan/goRawrDedupe"
)

// PurchaseOrder is an order placed with a supplier.
type PurchaseOrder struct {
	ID       string    `json:"id"`
	Number   string    `json:"number"`
	Supplier string    `json:"supplier"`
	Status   string    `json:"status"`
	Date     time.Time `json:"date"`
	Total    float64   `json:"total"`
}

// OrderPage is one page of purchase orders.
type OrderPage struct {
	Orders   []PurchaseOrder `json:"orders"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// PurchaseService reads purchase orders.
type PurchaseService struct {
	client *Client
	dedup  *gd.Deduplicator
}

// NewPurchaseService returns a PurchaseService.
func NewPurchaseService(c *Client, d *gd.Deduplicator) *PurchaseService {
	return &PurchaseService{client: c, dedup: d}
}

// ListOrders returns one page of purchase orders.
func (s *PurchaseService) ListOrders(ctx context.Context, number, size int) (OrderPage, error) {
	pg := newPage(number, size)
	k, err := key(ctx, "purchases", append([]string{"orders"}, pg.keyParts()...)...)
	if err != nil {
		return OrderPage{}, err
	}
	return gd.Do(ctx, s.dedup, k, func(ctx context.Context) (OrderPage, error) {
		var p OrderPage
		err := s.client.Get(ctx, "/purchases/orders", pg.query(), &p)
		return p, err
	})
}
