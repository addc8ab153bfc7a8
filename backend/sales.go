package backend

import (
	"context"
	"time"

	gd "github.com/Keksclan/goRawrDedupe"
)

// InvoiceLine is one line of a sales invoice.
type InvoiceLine struct {
	ItemID   string  `json:"item_id"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

// Invoice is a sales invoice.
type Invoice struct {
	ID       string        `json:"id,omitempty"`
	Number   string        `json:"number,omitempty"`
	Customer string        `json:"customer"`
	Date     time.Time     `json:"date"`
	Lines    []InvoiceLine `json:"lines"`
	Total    float64       `json:"total"`
}

// InvoicePage is one page of invoices.
type InvoicePage struct {
	Invoices []Invoice `json:"invoices"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

// SalesService reads and writes sales invoices.
type SalesService struct {
	client *Client
	dedup  *gd.Deduplicator
}

// NewSalesService returns a SalesService.
func NewSalesService(c *Client, d *gd.Deduplicator) *SalesService {
	return &SalesService{client: c, dedup: d}
}

// ListInvoices returns one page of invoices.
func (s *SalesService) ListInvoices(ctx context.Context, number, size int) (InvoicePage, error) {
	pg := newPage(number, size)
	k, err := key(ctx, "sales", append([]string{"invoices"}, pg.keyParts()...)...)
	if err != nil {
		return InvoicePage{}, err
	}
	return gd.Do(ctx, s.dedup, k, func(ctx context.Context) (InvoicePage, error) {
		var p InvoicePage
		err := s.client.Get(ctx, "/sales/invoices", pg.query(), &p)
		return p, err
	})
}

// CreateInvoice posts inv and drops the company's cached sales results.
func (s *SalesService) CreateInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	prefix, err := scope(ctx, "sales")
	if err != nil {
		return Invoice{}, err
	}
	var created Invoice
	if err := s.client.Post(ctx, "/sales/invoices", inv, &created); err != nil {
		return Invoice{}, err
	}
	s.dedup.ClearCache(prefix)
	return created, nil
}
