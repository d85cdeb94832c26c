package auth

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/spec-kit/clinic-service/internal/domain"
)

// SocketTokenParam is the query parameter accepted when a client cannot set headers.
const SocketTokenParam = "token"

// SocketHandshake verifies the access token on a realtime handshake before
// the upgrade. Rejected handshakes never reach next, so no connection exists.
func SocketHandshake(m *AuthMiddleware, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.URL.Query().Get(SocketTokenParam)
			if token == "" {
				var err error
				token, err = BearerToken(r.Header.Get("Authorization"))
				if err != nil {
					rejectHandshake(w, false, err.Error())
					return
				}
			}

			claim, err := m.Verify(token)
			if err != nil {
				kind := Classify(err)
				logger.Debug("socket handshake rejected", zap.String("reason", kind.String()))
				if kind == TokenErrorSigning {
					logger.Error("socket handshake misconfigured", zap.Error(err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				rejectHandshake(w, kind == TokenErrorExpired, "invalid access token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaim(r.Context(), claim)))
		})
	}
}

// SocketClaim returns the identity attached by SocketHandshake.
func SocketClaim(r *http.Request) (domain.Claim, bool) {
	return ClaimFrom(r.Context())
}

func rejectHandshake(w http.ResponseWriter, expired bool, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
		"accessTokenExpired": expired,
	})
}
