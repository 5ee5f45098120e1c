package seed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feed = `[
	{"id": "3d5a0a36-6c6e-4b57-9d44-8a1b3f1e0a01", "name": " Wells ", "description": "Water", "target_amount": "1000.00", "active": true},
	{"id": "not-a-uuid", "name": "Broken", "target_amount": "10"},
	{"id": "3d5a0a36-6c6e-4b57-9d44-8a1b3f1e0a02", "name": "Zero", "target_amount": "0"},
	{"id": "3d5a0a36-6c6e-4b57-9d44-8a1b3f1e0a03", "name": "Roof", "target_amount": "250.555", "active": false}
]`

func TestConvert(t *testing.T) {
	items, err := Decode(strings.NewReader(feed))
	require.NoError(t, err)
	require.Len(t, items, 4)

	projects, skipped := Convert(items)
	require.Len(t, projects, 2)
	assert.Equal(t, []string{"not-a-uuid", "3d5a0a36-6c6e-4b57-9d44-8a1b3f1e0a02"}, skipped)

	assert.Equal(t, "Wells", projects[0].Name)
	assert.True(t, projects[0].IsActive)
	assert.Equal(t, "1000.00", projects[0].TargetAmount.StringFixed(2))
	assert.Equal(t, "250.56", projects[1].TargetAmount.String())
	assert.False(t, projects[1].IsActive)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"id": 1}`))
	assert.Error(t, err)
}

func TestFetch(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	items, err := Fetch(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, items, 4)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetch_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), srv.Client(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
