package access

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/modelgate/core/logger"
)

// ErrInvalidToken is returned for tokens that are malformed, expired or not signed with the secret
var ErrInvalidToken = errors.New("invalid token")

// AdminClaims are the claims of an administration token
type AdminClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// JwtMiddlewareBuilder is a helper builder for NewJwtMiddleware
type JwtMiddlewareBuilder struct {
	// Secret is the HMAC secret tokens are signed with
	Secret []byte
	// Issuer is the accepted issuer for the token. If empty, any issuer is accepted.
	Issuer string
}

// NewAdminToken signs a token with the given roles. It is used by operators and tests.
func NewAdminToken(secret []byte, subject string, roles []string, validity time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := AdminClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseAdminToken validates a token and returns its authorization
func ParseAdminToken(secret []byte, issuer, tokenString string) (*Authorization, error) {
	var claims AdminClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if issuer != "" && claims.Issuer != issuer {
		return nil, ErrInvalidToken
	}
	return &Authorization{Subject: claims.Subject, Roles: claims.Roles}, nil
}

// NewJwtMiddleware returns a middleware handler to validate
// JWT bearer token.
//
// Requests without a token are passed on without authorization. A token that
// cannot be validated is answered with http.StatusUnauthorized and a JSON error body.
func NewJwtMiddleware(jmb *JwtMiddlewareBuilder) mux.MiddlewareFunc {
	if len(jmb.Secret) == 0 {
		panic("jwt middleware requires a secret")
	}

	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if AuthorizationFromContext(r.Context()) != nil { // already authorized?
				h.ServeHTTP(w, r)
				return
			}

			tokenString := ""
			bearer := r.Header.Get("Authorization")
			if len(bearer) >= 8 && strings.ToLower(bearer[:7]) == "bearer " {
				tokenString = bearer[7:]
			}
			if len(tokenString) == 0 {
				h.ServeHTTP(w, r) // no token no auth, moving on
				return
			}

			auth, err := ParseAdminToken(jmb.Secret, jmb.Issuer, tokenString)
			if err != nil {
				logger.FromContext(r.Context()).Warnln("rejected admin token:", err)
				writeUnauthorized(w, ErrInvalidToken.Error())
				return
			}

			ctx, _ := logger.ContextWithLoggerIdentity(r.Context(), auth.Subject)
			ctx = auth.ContextWithAuthorization(ctx)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	body, _ := json.Marshal(map[string]string{"status": "error", "message": message})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write(body)
}
