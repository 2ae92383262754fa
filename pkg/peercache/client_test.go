package peercache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/gopill/pkg/errors"
	"github.com/glorpus-work/gopill/test/testutil"
)

func TestHTTPClient_Search(t *testing.T) {
	srv := testutil.NewPeerCacheServer(t, map[string]string{"a.pkg.tar.zst": "http://peer:15678/a.pkg.tar.zst"})

	found, err := NewHTTPClient(0).Search(context.Background(), srv.URL+"/", []string{"a.pkg.tar.zst", "b.pkg.tar.zst"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.pkg.tar.zst": "http://peer:15678/a.pkg.tar.zst"}, found)
	assert.Equal(t, [][]string{{"a.pkg.tar.zst", "b.pkg.tar.zst"}}, srv.Requests())
}

func TestHTTPClient_NotFound(t *testing.T) {
	srv := testutil.NewPeerCacheServer(t)

	found, err := NewHTTPClient(0).Search(context.Background(), srv.URL, []string{"a"})
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestHTTPClient_NoFilenamesSkipsRequest(t *testing.T) {
	srv := testutil.NewPeerCacheServer(t)

	found, err := NewHTTPClient(0).Search(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Nil(t, found)
	assert.Empty(t, srv.Requests())
}

func TestHTTPClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
		},
		{
			name:    "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("{not json")) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewHTTPClient(0).Search(context.Background(), srv.URL, []string{"a"})
			assert.ErrorIs(t, err, errors.ErrPeerCache)
		})
	}
}

func TestHTTPClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPClient(0).Search(context.Background(), url, []string{"a"})
	assert.ErrorIs(t, err, errors.ErrPeerCache)
}
