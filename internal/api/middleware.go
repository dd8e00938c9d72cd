// Файл: internal/api/middleware.go
package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log"
	"net/http"
)

// SignatureHeader - заголовок с hex HMAC-SHA256 тела запроса.
const SignatureHeader = "X-Signature"

const maxBodyBytes = 1 << 20

// SignatureMiddleware проверяет подпись тела запроса. Пустой secret отключает проверку.
func SignatureMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			signature := r.Header.Get(SignatureHeader)
			if signature == "" {
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized: Missing "+SignatureHeader+" header")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "Bad request: unreadable body")
				return
			}
			r.Body.Close()

			if !validSignature(body, signature, secret) {
				log.Printf("SignatureMiddleware: Неверная подпись запроса от %s", r.RemoteAddr)
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized: Invalid signature")
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

// Sign вычисляет подпись тела запроса.
func Sign(body []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func validSignature(body []byte, signature, secret string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hmac.Equal(h.Sum(nil), expected)
}
