package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2/jwt"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

type contextKey string

const UserIDKey contextKey = "userID"

// TokenVerifier checks a bearer token and returns the user id it was
// issued for.
type TokenVerifier func(ctx context.Context, token string) (string, error)

// ClerkVerifier validates Clerk session JWTs. clerk.SetKey must have been
// called before the first request.
func ClerkVerifier(ctx context.Context, token string) (string, error) {
	claims, err := jwt.Verify(ctx, &jwt.VerifyParams{
		Token: token,
	})
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// HMACVerifier accepts HS256 tokens signed with secret. It exists for local
// runs without a Clerk instance and must not be enabled in production.
func HMACVerifier(secret []byte) TokenVerifier {
	return func(_ context.Context, token string) (string, error) {
		parsed, err := jwtv5.Parse(token, func(t *jwtv5.Token) (interface{}, error) {
			return secret, nil
		}, jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}), jwtv5.WithExpirationRequired())
		if err != nil {
			return "", fmt.Errorf("verify token: %w", err)
		}

		subject, err := parsed.Claims.GetSubject()
		if err != nil {
			return "", fmt.Errorf("read subject: %w", err)
		}
		if subject == "" {
			return "", errors.New("token has no subject")
		}
		return subject, nil
	}
}

// AuthMiddleware rejects requests without a valid bearer token and stores
// the token subject as the user id in the request context.
func AuthMiddleware(verify TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondWithError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == authHeader || token == "" {
				respondWithError(w, http.StatusUnauthorized, "Invalid authorization format. Use 'Bearer <token>'")
				return
			}

			userID, err := verify(r.Context(), token)
			if err != nil || userID == "" {
				log.Printf("Token verification failed: %v", err)
				respondWithError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID extracts the authenticated user id from context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	body, _ := json.Marshal(map[string]string{"error": message})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}
