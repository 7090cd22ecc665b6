// Package middleware содержит HTTP middleware сервиса учёта заказов.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mmeshcher/inventory-system/internal/model"
)

type contextKey string

const callerKey contextKey = "caller"

const authCookieName = "auth_token"

// AuthMiddleware проверяет токен, выданный сервисом аутентификации.
// Формат токена: <userID>.<role>.<hex hmac-sha256 от "<userID>.<role>">.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// Middleware проверяет заголовок Authorization (или cookie авторизации) и добавляет
// сведения о пользователе в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := tokenFromRequest(r)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		caller, ok := a.parseToken(token)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), callerKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Issue выпускает подписанный токен для пользователя с указанной ролью.
func (a *AuthMiddleware) Issue(userID uuid.UUID, role model.Role) string {
	payload := userID.String() + "." + string(role)
	return payload + "." + a.sign(payload)
}

func (a *AuthMiddleware) sign(payload string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *AuthMiddleware) parseToken(token string) (model.Caller, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return model.Caller{}, false
	}

	payload := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(a.sign(payload))) {
		return model.Caller{}, false
	}

	id, err := uuid.Parse(parts[0])
	if err != nil {
		return model.Caller{}, false
	}

	role := model.Role(parts[1])
	if role != model.RoleAdmin && role != model.RoleSeller {
		return model.Caller{}, false
	}

	return model.Caller{UserID: id, Role: role}, true
}

func tokenFromRequest(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		return strings.TrimSpace(token), ok && token != ""
	}

	cookie, err := r.Cookie(authCookieName)
	if err != nil {
		return "", false
	}
	return cookie.Value, cookie.Value != ""
}

// CallerFromContext извлекает сведения о пользователе из контекста запроса.
func CallerFromContext(ctx context.Context) (model.Caller, bool) {
	caller, ok := ctx.Value(callerKey).(model.Caller)
	return caller, ok
}

// WithCaller добавляет сведения о пользователе в контекст.
func WithCaller(ctx context.Context, caller model.Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}
