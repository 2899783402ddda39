package httpapi

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func newGuarded(secret string) *echo.Echo {
	e := echo.New()
	e.Use(CronSecret(secret, slog.New(slog.NewTextHandler(io.Discard, nil))))
	e.GET("/jobs/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e
}

func TestCronSecret(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		configured string
		header     string
		want       int
	}{
		{name: "valid secret", configured: "s3cret", header: "s3cret", want: http.StatusOK},
		{name: "missing header", configured: "s3cret", want: http.StatusUnauthorized},
		{name: "wrong secret", configured: "s3cret", header: "guess", want: http.StatusUnauthorized},
		{name: "prefix of secret", configured: "s3cret", header: "s3c", want: http.StatusUnauthorized},
		{name: "unconfigured rejects all", configured: "", header: "", want: http.StatusUnauthorized},
		{name: "unconfigured rejects any value", configured: "", header: "anything", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/jobs/test", nil)
			if tt.header != "" {
				req.Header.Set(CronSecretHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			newGuarded(tt.configured).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
			}
		})
	}
}
