package middleware

import (
	"net/http"

	"go.uber.org/zap"
)

// RequireJSON rejects checkout mutations that do not declare a JSON body.
func RequireJSON(h http.Handler, sugar *zap.SugaredLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType := r.Header.Get("Content-Type")
		if contentType != "application/json" {
			sugar.Error("wrong content type: " + contentType)
			http.Error(w, "wrong content type", http.StatusBadRequest)
			return
		}

		h.ServeHTTP(w, r)
	})
}
