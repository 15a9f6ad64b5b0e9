package users

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// CompanyHeader names the header carrying the tenant a request acts in.
const CompanyHeader = "X-Company-ID"

// Middleware guards routes with engine-derived permissions.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequirePermission ensures the session actor holds the permission, either
// globally or through their role in the request's company context.
func (m Middleware) RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := shared.UserIDFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			tenantID := requestTenant(r)
			perms, err := m.Service.Permissions(r.Context(), userID, tenantID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("resolve permissions", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !perms.Has(perm) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestTenant parses the company header, returning uuid.Nil when absent
// or malformed.
func requestTenant(r *http.Request) uuid.UUID {
	raw := r.Header.Get(CompanyHeader)
	if raw == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}
