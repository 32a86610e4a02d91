package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Limit_Per_IP(t *testing.T) {
	req := require.New(t)
	l := New(2, time.Minute)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(addr string) int {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	req.Equal(http.StatusOK, do("10.0.0.1:1111"))
	req.Equal(http.StatusOK, do("10.0.0.1:1111"))
	req.Equal(http.StatusTooManyRequests, do("10.0.0.1:1111"))

	// Another client is unaffected.
	req.Equal(http.StatusOK, do("10.0.0.2:2222"))
}
