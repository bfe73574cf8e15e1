package requesttime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMiddleware(t *testing.T) {
	t.Run("pins a UTC instant for the whole request", func(t *testing.T) {
		var first, second time.Time
		handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			first = Now(r.Context())
			time.Sleep(5 * time.Millisecond)
			second = Now(r.Context())
		}))

		before := time.Now()
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/credentials", nil))
		after := time.Now()

		assert.Equal(t, first, second)
		assert.Equal(t, time.UTC, first.Location())
		assert.False(t, first.Before(before))
		assert.False(t, first.After(after))
	})
}

func TestNow(t *testing.T) {
	t.Run("falls back to the current UTC time", func(t *testing.T) {
		before := time.Now()
		got := Now(context.Background())
		after := time.Now()

		assert.Equal(t, time.UTC, got.Location())
		assert.False(t, got.Before(before))
		assert.False(t, got.After(after))
	})
}

func TestWithTime(t *testing.T) {
	t.Run("normalizes zoned times to UTC", func(t *testing.T) {
		zone := time.FixedZone("UTC+2", 2*60*60)
		issuedAt := time.Date(2024, 6, 15, 14, 0, 0, 0, zone)

		got := Now(WithTime(context.Background(), issuedAt))

		assert.Equal(t, time.UTC, got.Location())
		assert.True(t, got.Equal(issuedAt))
		assert.Equal(t, 12, got.Hour())
	})

	t.Run("later time replaces earlier", func(t *testing.T) {
		first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		second := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

		ctx := WithTime(WithTime(context.Background(), first), second)

		assert.Equal(t, second, Now(ctx))
	})
}
