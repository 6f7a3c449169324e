package firebase

import (
	"net/http"

	"go.uber.org/zap"
)

// Middleware authenticates each request from its Authorization header and
// binds the verified claims into the request context. Failures are rendered
// through HTTPStatus and ExternalMessage, so the response never reveals which
// individual check rejected the credential.
func (e *Extractor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if e.devBypass != nil {
			ctx = BindClaims(ctx, e.devBypass.ToClaims())
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		claims, err := e.Extract(ctx, r.Header.Get("Authorization"))
		if err != nil {
			kind, _ := KindOf(err)
			e.logger.Warn("request authentication failed",
				zap.String("kind", string(kind)),
				zap.String("path", r.URL.Path))
			http.Error(w, ExternalMessage(err), HTTPStatus(err))
			return
		}

		ctx = BindClaims(ctx, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
