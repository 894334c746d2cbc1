package transport

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xtremefabrix/formrelay/internal/config"
	"github.com/xtremefabrix/formrelay/model"
)

// operatorLeeway tolerates clock skew between the token issuer and us.
const operatorLeeway = 30 * time.Second

// IssueOperatorToken signs an HS256 token for an operator. It backs the
// command-line token helper and tests.
func IssueOperatorToken(cfg config.AdminConfig, secret []byte, subject string, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("admin secret is empty")
	}
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// OperatorAuthenticator returns middleware that verifies HS256 bearer tokens
// and records the token subject as the operator of the request. An empty
// secret rejects every request.
func OperatorAuthenticator(cfg config.AdminConfig, secret []byte) func(http.Handler) http.Handler {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(operatorLeeway),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(secret) == 0 {
				WriteError(w, model.NewUnauthorizedError("Operator access is not configured"))
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				WriteError(w, model.NewUnauthorizedError("Missing authorization header"))
				return
			}
			tokenStr, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || tokenStr == "" {
				WriteError(w, model.NewUnauthorizedError("Invalid authorization header format"))
				return
			}

			var claims jwt.RegisteredClaims
			token, err := parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
				return secret, nil
			})
			if err != nil {
				WriteError(w, model.NewUnauthorizedError(classifyJWTError(err)))
				return
			}
			if !token.Valid || claims.Subject == "" {
				WriteError(w, model.NewUnauthorizedError("Invalid token"))
				return
			}

			ctx := r.Context()
			rctx := model.RequestContext{}
			if existing := model.RequestContextFrom(ctx); existing != nil {
				rctx = *existing
			}
			rctx.OperatorID = claims.Subject
			next.ServeHTTP(w, r.WithContext(model.WithRequestContext(ctx, &rctx)))
		})
	}
}

func classifyJWTError(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "Token expired"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "Invalid token issuer"
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return "Invalid token audience"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "Token is missing a required claim"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		if strings.Contains(err.Error(), "signing method") {
			return "Disallowed signing algorithm"
		}
		return "Invalid token signature"
	default:
		return "Invalid token"
	}
}
