package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/beborico/runway-crawler/internal/runway"
)

func galleryServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDiscoverLookURLs(t *testing.T) {
	srv := galleryServer(t, `<html><div class="RunwayGalleryImageCollection"></div></html>`, http.StatusOK)

	loc := New(Config{Timeout: 2 * time.Second}, nil)
	urls, err := loc.DiscoverLookURLs(context.Background(), srv.URL+"/slideshow/collection#1", 3)
	require.NoError(t, err)
	require.Equal(t, []string{
		srv.URL + "/slideshow/collection#1",
		srv.URL + "/slideshow/collection#2",
		srv.URL + "/slideshow/collection#3",
	}, urls)
}

func TestDiscoverLookURLsRejectsPageWithoutGallery(t *testing.T) {
	srv := galleryServer(t, `<html><p>nothing here</p></html>`, http.StatusOK)

	loc := New(Config{Timeout: 2 * time.Second}, nil)
	_, err := loc.DiscoverLookURLs(context.Background(), srv.URL+"/slideshow/collection", 2)
	require.ErrorIs(t, err, runway.ErrElementNotFound)
}

func TestDiscoverLookURLsRejectsBadCount(t *testing.T) {
	loc := New(Config{}, nil)
	_, err := loc.DiscoverLookURLs(context.Background(), "https://example.com/slideshow", 0)
	require.ErrorIs(t, err, runway.ErrValidation)
}

func TestDiscoverLookURLsReportsFetchFailure(t *testing.T) {
	srv := galleryServer(t, "", http.StatusNotFound)

	loc := New(Config{Timeout: 2 * time.Second}, nil)
	_, err := loc.DiscoverLookURLs(context.Background(), srv.URL+"/slideshow/collection", 2)
	require.ErrorIs(t, err, runway.ErrNavigation)
}
