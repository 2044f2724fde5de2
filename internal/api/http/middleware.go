package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/golang-jwt/jwt/v5"

	"github.com/hasanulhasan/url-shortify-backend/internal/models"
	"github.com/hasanulhasan/url-shortify-backend/pkg/response"
)

type identityCtxKey struct{}

// identityClaims is what the external identity provider puts into the bearer
// token: the subject is the user id, tier names the quota tier.
type identityClaims struct {
	Tier string `json:"tier"`
	jwt.RegisteredClaims
}

// authenticate verifies the bearer token and injects the caller's identity
// into the request context. Identity issuance lives outside this service;
// the middleware only checks the HMAC signature and extracts the claims.
func authenticate(secret []byte) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.UnauthorizedResponse)
				return
			}

			claims := new(identityClaims)

			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return secret, nil
			})
			if err != nil || !parsed.Valid || claims.Subject == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.UnauthorizedResponse)
				return
			}

			identity := models.Identity{
				UserID: claims.Subject,
				Tier:   claims.Tier,
			}

			ctx := context.WithValue(r.Context(), identityCtxKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func identityFromContext(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(identityCtxKey{}).(models.Identity)
	return identity, ok
}
