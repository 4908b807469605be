package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/iurnickita/poscashup/internal/apperr"
	"github.com/iurnickita/poscashup/internal/auth/config"
	"github.com/iurnickita/poscashup/internal/model"
)

type Auth interface {
	Middleware(h http.HandlerFunc) http.HandlerFunc
	NewToken(rc model.RequestContext) (string, error)
}

type ctxKey struct{}

type auth struct {
	cfg config.Config
}

func NewAuth(cfg config.Config) Auth {
	return &auth{cfg: cfg}
}

func (a *auth) NewToken(rc model.RequestContext) (string, error) {
	return NewToken(a.cfg.Secret, a.cfg.TokenTTL, rc)
}

func (a *auth) Middleware(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// токен терминала
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			apperr.WriteHTTP(w, fmt.Errorf("%w: authorization header must be 'Bearer <token>'", apperr.ErrUnauthorized))
			return
		}

		rc, err := ParseToken(a.cfg.Secret, tokenString)
		if err != nil {
			apperr.WriteHTTP(w, fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err))
			return
		}

		// передаём управление хендлеру
		h.ServeHTTP(w, r.WithContext(WithRequestContext(r.Context(), rc)))
	}
}

func WithRequestContext(ctx context.Context, rc model.RequestContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

// FromContext возвращает контекст терминала, положенный middleware.
func FromContext(ctx context.Context) (model.RequestContext, bool) {
	rc, ok := ctx.Value(ctxKey{}).(model.RequestContext)
	return rc, ok
}
