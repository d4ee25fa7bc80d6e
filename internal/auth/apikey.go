package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
)

// APIKeyMiddleware accepts any of a fixed set of keys. Only their SHA-256
// digests are kept in memory.
type APIKeyMiddleware struct {
	headerName string
	hashes     [][]byte
}

func NewAPIKeyMiddleware(headerName string, keys []string) *APIKeyMiddleware {
	if headerName == "" {
		headerName = "X-API-Key"
	}
	m := &APIKeyMiddleware{headerName: headerName}
	for _, k := range keys {
		h := sha256.Sum256([]byte(k))
		m.hashes = append(m.hashes, h[:])
	}
	return m
}

func (m *APIKeyMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(m.headerName)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		sum := sha256.Sum256([]byte(key))
		matched := 0
		for _, h := range m.hashes {
			matched |= subtle.ConstantTimeCompare(h, sum[:])
		}
		if matched != 1 {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		ctx := WithPrincipal(r.Context(), &Principal{Subject: HashAPIKey(key)[:12], Method: "api_key"})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
