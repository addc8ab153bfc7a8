package backend

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/Keksclan/goRawrDedupe/contextx"
)

// Normalize lowercases s, trims it and collapses runs of whitespace to a
// single space, so "  Hex  BOLT" and "hex bolt" share a key.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// key builds "<domain>:<company>:<parts...>" for the company in ctx. The
// company and every part are query-escaped, so ':' only ever appears as a
// segment separator and user text cannot spell out another scope.
func key(ctx context.Context, domain string, parts ...string) (string, error) {
	prefix, err := scope(ctx, domain)
	if err != nil {
		return "", err
	}
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.QueryEscape(p)
	}
	return prefix + strings.Join(escaped, ":"), nil
}

// scope is the prefix shared by every key of domain for the company in ctx.
func scope(ctx context.Context, domain string) (string, error) {
	co, ok := contextx.CompanyFromContext(ctx)
	if !ok {
		return "", ErrNoCompany
	}
	return domain + ":" + url.QueryEscape(co) + ":", nil
}

// DefaultPageSize is used when a list call passes a size of zero or less.
const DefaultPageSize = 20

// page is a 1-based page request.
type page struct {
	Number int
	Size   int
}

func newPage(number, size int) page {
	if size <= 0 {
		size = DefaultPageSize
	}
	return page{Number: max(number, 1), Size: size}
}

func (p page) keyParts() []string {
	return []string{strconv.Itoa(p.Number), strconv.Itoa(p.Size)}
}

func (p page) query() map[string][]string {
	return map[string][]string{
		"page":      {strconv.Itoa(p.Number)},
		"page_size": {strconv.Itoa(p.Size)},
	}
}
