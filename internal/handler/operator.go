package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/pkg/httpmiddleware"
)

// OperatorKeyHeader carries the operator API key.
const OperatorKeyHeader = "X-Operator-Key"

// HashOperatorKey returns the hex HMAC-SHA256 of key under pepper, the form
// in which operator keys are configured.
func HashOperatorKey(key string, pepper []byte) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// OperatorAuth admits requests whose X-Operator-Key hashes to one of
// hashes. Comparison is constant-time per candidate.
func OperatorAuth(hashes []string, pepper []byte) (httpmiddleware.Middleware, error) {
	allowed := make([][]byte, 0, len(hashes))
	for _, h := range hashes {
		raw, err := hex.DecodeString(strings.TrimSpace(h))
		if err != nil || len(raw) != sha256.Size {
			return nil, errors.Errorf("operator key hash %q is not a hex SHA-256 digest", h)
		}
		allowed = append(allowed, raw)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(OperatorKeyHeader)
			if key == "" || !matchKey(allowed, key, pepper) {
				zctx.From(r.Context()).Info("Operator auth rejected", zap.String("path", r.URL.Path))
				httpmiddleware.WriteError(w, http.StatusUnauthorized, "unauthorized", "operator key required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}

func matchKey(allowed [][]byte, key string, pepper []byte) bool {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	sum := mac.Sum(nil)

	ok := false
	for _, a := range allowed {
		if hmac.Equal(sum, a) {
			ok = true
		}
	}
	return ok
}
