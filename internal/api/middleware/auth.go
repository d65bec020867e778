package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/swarmpush/swarmpush/internal/api/models"
	"github.com/swarmpush/swarmpush/internal/auth"
)

type operatorKey struct{}

// TokenValidator validates bearer tokens and returns the operator name.
type TokenValidator interface {
	Validate(token string) (string, error)
}

// Auth requires a valid operator bearer token.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeUnauthorized(w, r, "missing authorization header")
				return
			}

			const prefix = "Bearer "
			if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
				writeUnauthorized(w, r, "invalid authorization header format")
				return
			}
			token := strings.TrimSpace(header[len(prefix):])
			if token == "" {
				writeUnauthorized(w, r, "missing bearer token")
				return
			}

			operator, err := validator.Validate(token)
			if err != nil {
				detail := "invalid operator token"
				if errors.Is(err, auth.ErrTokenExpired) {
					detail = "operator token has expired"
				}
				writeUnauthorized(w, r, detail)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), operatorKey{}, operator)))
		})
	}
}

// writeUnauthorized is local to avoid an import cycle with response.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	problem := models.NewUnauthorized(GetRequestID(r.Context()), detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetOperator returns the authenticated operator, or "".
func GetOperator(ctx context.Context) string {
	op, _ := ctx.Value(operatorKey{}).(string)
	return op
}
