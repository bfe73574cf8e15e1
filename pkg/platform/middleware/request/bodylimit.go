package request

import (
	"net/http"

	dErrors "edureg/pkg/domain-errors"
	"edureg/pkg/platform/httputil"
)

// BodyLimit caps credential and authorization payloads at maxBytes.
// A declared Content-Length over the cap is rejected with 413 before the
// handler runs; undeclared or chunked bodies are cut off by http.MaxBytesReader
// and surface as 413 from httputil.DecodeJSON.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				httputil.WriteError(w, dErrors.New(dErrors.CodePayloadTooLarge, "request body too large"))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
