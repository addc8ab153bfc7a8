package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Keksclan/goRawrDedupe/backend"
	"github.com/Keksclan/goRawrDedupe/contextx"
)

// newGateway returns the JSON API the frontend calls. Every read goes through
// the shared deduplicator; X-Company-ID scopes the request.
func newGateway(a *app) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/items/search", func(w http.ResponseWriter, r *http.Request) {
		items, err := a.items.Search(r.Context(), r.URL.Query().Get("q"))
		respond(w, r, a.logger, items, err)
	})
	mux.HandleFunc("GET /api/items/verify-name", func(w http.ResponseWriter, r *http.Request) {
		nc, err := a.items.VerifyName(r.Context(), r.URL.Query().Get("name"))
		respond(w, r, a.logger, nc, err)
	})
	mux.HandleFunc("GET /api/items", func(w http.ResponseWriter, r *http.Request) {
		number, size := pageParams(r)
		page, err := a.items.List(r.Context(), number, size)
		respond(w, r, a.logger, page, err)
	})
	mux.HandleFunc("GET /api/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		it, err := a.items.Get(r.Context(), r.PathValue("id"))
		respond(w, r, a.logger, it, err)
	})
	mux.HandleFunc("POST /api/items", func(w http.ResponseWriter, r *http.Request) {
		var in backend.Item
		if !decode(w, r, &in) {
			return
		}
		it, err := a.items.Create(r.Context(), in)
		respond(w, r, a.logger, it, err)
	})
	mux.HandleFunc("GET /api/sales/invoices", func(w http.ResponseWriter, r *http.Request) {
		number, size := pageParams(r)
		page, err := a.sales.ListInvoices(r.Context(), number, size)
		respond(w, r, a.logger, page, err)
	})
	mux.HandleFunc("POST /api/sales/invoices", func(w http.ResponseWriter, r *http.Request) {
		var in backend.Invoice
		if !decode(w, r, &in) {
			return
		}
		inv, err := a.sales.CreateInvoice(r.Context(), in)
		respond(w, r, a.logger, inv, err)
	})
	mux.HandleFunc("GET /api/purchases/orders", func(w http.ResponseWriter, r *http.Request) {
		number, size := pageParams(r)
		page, err := a.purchases.ListOrders(r.Context(), number, size)
		respond(w, r, a.logger, page, err)
	})

	return scoped(mux)
}

// scoped copies X-Company-ID and X-Request-ID into the request context,
// generating a request ID when the caller sent none.
func scoped(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if co := r.Header.Get("X-Company-ID"); co != "" {
			ctx = contextx.WithCompany(ctx, co)
		}
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = contextx.NewRequestID()
		}
		ctx = contextx.WithRequestID(ctx, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// pageParams reads page and size. page_size is accepted as an alias of size.
func pageParams(r *http.Request) (int, int) {
	q := r.URL.Query()
	number, _ := strconv.Atoi(q.Get("page"))
	rawSize := q.Get("size")
	if rawSize == "" {
		rawSize = q.Get("page_size")
	}
	size, _ := strconv.Atoi(rawSize)
	return number, size
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func respond(w http.ResponseWriter, r *http.Request, logger *slog.Logger, v any, err error) {
	if err != nil {
		code := statusFor(err)
		if code >= http.StatusInternalServerError {
			logger.ErrorContext(r.Context(), "gateway: request failed",
				slog.String("path", r.URL.Path),
				slog.String("request_id", contextx.RequestIDFromContext(r.Context())),
				slog.Any("error", err))
		}
		writeError(w, code, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a service error to the gateway's HTTP status. Backend
// status codes pass through.
func statusFor(err error) int {
	var se *backend.StatusError
	switch {
	case errors.Is(err, backend.ErrNoCompany), errors.Is(err, backend.ErrEmptyName):
		return http.StatusBadRequest
	case errors.Is(err, backend.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &se):
		return se.StatusCode
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
