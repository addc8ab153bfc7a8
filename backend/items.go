package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	gd "github.com/Keksclan/goRawrDedupe"
	"github.com/Keksclan/goRawrDedupe/cache"
)

// DefaultItemTTL is how long item records stay in the shared store.
const DefaultItemTTL = 5 * time.Minute

// Item is an inventory item.
type Item struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	SKU   string  `json:"sku,omitempty"`
	Unit  string  `json:"unit,omitempty"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

// ItemPage is one page of the item list.
type ItemPage struct {
	Items    []Item `json:"items"`
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// NameCheck is the outcome of verifying a proposed item name. When the name
// is taken, ExistingID names the item that holds it.
type NameCheck struct {
	Name       string `json:"name"`
	Available  bool   `json:"available"`
	ExistingID string `json:"existing_id,omitempty"`
}

// ItemService reads and writes inventory items.
type ItemService struct {
	client *Client
	dedup  *gd.Deduplicator
	store  cache.Cache
	ttl    time.Duration
}

// NewItemService returns an ItemService. store may be nil, in which case
// item lookups rely on the deduplicator's cache alone. A ttl of zero uses
// DefaultItemTTL.
func NewItemService(c *Client, d *gd.Deduplicator, store cache.Cache, ttl time.Duration) *ItemService {
	if ttl <= 0 {
		ttl = DefaultItemTTL
	}
	return &ItemService{client: c, dedup: d, store: store, ttl: ttl}
}

// Search returns items matching query. A blank query matches nothing and
// sends no request.
func (s *ItemService) Search(ctx context.Context, query string) ([]Item, error) {
	q := Normalize(query)
	k, err := key(ctx, "items", "search", q)
	if err != nil {
		return nil, err
	}
	if q == "" {
		return []Item{}, nil
	}
	return gd.Do(ctx, s.dedup, k, func(ctx context.Context) ([]Item, error) {
		var items []Item
		err := s.client.Get(ctx, "/items/search", url.Values{"q": {q}}, &items)
		return items, err
	})
}

// List returns page number of the item list. Pages start at 1.
func (s *ItemService) List(ctx context.Context, number, size int) (ItemPage, error) {
	pg := newPage(number, size)
	k, err := key(ctx, "items", append([]string{"list"}, pg.keyParts()...)...)
	if err != nil {
		return ItemPage{}, err
	}
	return gd.Do(ctx, s.dedup, k, func(ctx context.Context) (ItemPage, error) {
		var p ItemPage
		err := s.client.Get(ctx, "/items", pg.query(), &p)
		return p, err
	})
}

// Get returns the item with id. Records are also kept in the shared store,
// so other processes see them without hitting the backend.
func (s *ItemService) Get(ctx context.Context, id string) (Item, error) {
	k, err := key(ctx, "items", "get", id)
	if err != nil {
		return Item{}, err
	}
	return gd.Do(ctx, s.dedup, k, func(ctx context.Context) (Item, error) {
		if s.store == nil {
			return s.fetch(ctx, id)
		}
		raw, err := s.store.GetOrSet(ctx, k, s.ttl, func(ctx context.Context) ([]byte, error) {
			it, err := s.fetch(ctx, id)
			if err != nil {
				return nil, err
			}
			return json.Marshal(it)
		})
		if err != nil {
			return Item{}, err
		}
		var it Item
		if err := json.Unmarshal(raw, &it); err != nil {
			return Item{}, fmt.Errorf("backend: decode cached item %q: %w", id, err)
		}
		return it, nil
	})
}

func (s *ItemService) fetch(ctx context.Context, id string) (Item, error) {
	var it Item
	err := s.client.Get(ctx, "/items/"+url.PathEscape(id), nil, &it)
	return it, err
}

// VerifyName reports whether name is free to use for a new item. Names are
// compared after normalization, so repeated checks while a user types the
// same name with different spacing or case share one request.
func (s *ItemService) VerifyName(ctx context.Context, name string) (NameCheck, error) {
	n := Normalize(name)
	if n == "" {
		return NameCheck{}, ErrEmptyName
	}
	k, err := key(ctx, "items", "verify", n)
	if err != nil {
		return NameCheck{}, err
	}
	return gd.Do(ctx, s.dedup, k, func(ctx context.Context) (NameCheck, error) {
		var nc NameCheck
		err := s.client.Get(ctx, "/items/verify-name", url.Values{"name": {n}}, &nc)
		return nc, err
	})
}

// Create adds item and drops every cached item result for the company,
// since lists, searches and name checks may all have changed. The shared
// store is left alone: it holds records by ID, which a create cannot
// invalidate.
func (s *ItemService) Create(ctx context.Context, item Item) (Item, error) {
	prefix, err := scope(ctx, "items")
	if err != nil {
		return Item{}, err
	}
	var created Item
	if err := s.client.Post(ctx, "/items", item, &created); err != nil {
		return Item{}, err
	}
	s.dedup.ClearCache(prefix)
	return created, nil
}
