package contextx

import "context"

// WithCompany returns a derived context scoped to the given company. Cache
// keys built by the backend services include it, so results never leak
// between companies.
func WithCompany(ctx context.Context, companyID string) context.Context {
	return context.WithValue(ctx, companyKey, companyID)
}

// CompanyFromContext returns the company stored in ctx. The boolean is false
// when none is set or the value is empty.
func CompanyFromContext(ctx context.Context) (string, bool) {
	c, _ := ctx.Value(companyKey).(string)
	return c, c != ""
}
