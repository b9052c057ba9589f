package contenthub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smtindex/smtindex/pkg/sources"
	"github.com/smtindex/smtindex/pkg/whttp"
)

type stubRenderer struct {
	page  string
	calls []string
}

func (r *stubRenderer) Render(_ context.Context, url string) (string, error) {
	r.calls = append(r.calls, url)
	return r.page, nil
}

func newHub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><head><title>Empty</title></head><body></body></html>"))
	})
	mux.HandleFunc("/grid", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(gridPage))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testClientOpt() Option {
	return WithClient(whttp.NewClient(2*time.Second, 0))
}

func TestFetchTemplates_FirstPageWithRows(t *testing.T) {
	srv := newHub(t)
	src := New(WithURLs(srv.URL+"/broken", srv.URL+"/empty", srv.URL+"/grid"), testClientOpt())

	entries, used, err := src.FetchTemplates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/grid", used)
	require.Len(t, entries, 3)
	assert.Equal(t, srv.URL+"/fileadmin/IDTA-02006-3-0_Submodel_Digital-Nameplate.pdf", sources.Value(entries[0].PDFLink))
	assert.Equal(t, srv.URL+"/x", sources.Value(entries[2].PDFLink))
	assert.Contains(t, sources.Value(entries[0].RepoLink), "https://github.com/")
}

func TestFetchTemplates_NoTemplates(t *testing.T) {
	srv := newHub(t)
	src := New(WithURLs(srv.URL+"/empty", srv.URL+"/broken"), testClientOpt())

	entries, used, err := src.FetchTemplates(context.Background())
	assert.True(t, errors.Is(err, ErrNoTemplates))
	assert.Empty(t, entries)
	assert.Equal(t, srv.URL+"/empty", used)
}

func TestFetchTemplates_AllFetchesFail(t *testing.T) {
	srv := newHub(t)
	src := New(WithURLs(srv.URL+"/broken"), testClientOpt())

	_, _, err := src.FetchTemplates(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoTemplates))
}

func TestFetchTemplates_RenderFallback(t *testing.T) {
	srv := newHub(t)
	r := &stubRenderer{page: cardPage}
	src := New(WithURLs(srv.URL+"/empty"), WithRenderer(r), testClientOpt())

	entries, used, err := src.FetchTemplates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/empty"}, r.calls)
	assert.Equal(t, srv.URL+"/empty", used)
	require.Len(t, entries, 2)
	assert.Equal(t, "Carbon Footprint", entries[0].Name)
}

func TestFetchTemplates_RendererNotUsedWhenHTTPWorks(t *testing.T) {
	srv := newHub(t)
	r := &stubRenderer{page: cardPage}
	src := New(WithURLs(srv.URL+"/grid"), WithRenderer(r), testClientOpt())

	_, _, err := src.FetchTemplates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, r.calls)
}
