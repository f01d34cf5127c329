package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/catalog-browser/internal/domain/product"
)

const twoProducts = `[
  {"productId": 1, "productName": "Leaf Rake", "productCode": "GDN-0011", "price": 19.95, "starRating": 3.2, "tags": ["x"]},
  {"productId": 3, "productName": "Garden Cart", "productCode": "GDN-0023", "price": 32.99, "starRating": 4.2}
]`

// --- Helpers ---

type feedServer struct {
	*httptest.Server
	hits atomic.Int64
}

func newFeedServer(t *testing.T, h http.HandlerFunc) *feedServer {
	t.Helper()
	fs := &feedServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.hits.Add(1)
		h(w, r)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func serveBody(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newRepo(t *testing.T, url string, opts ...Option) *Repository {
	t.Helper()
	r, err := New(Config{URL: url, Timeout: 2 * time.Second}, opts...)
	require.NoError(t, err)
	return r
}

func requireAccessError(t *testing.T, err error, kind product.ErrorKind) *product.AccessError {
	t.Helper()
	require.Error(t, err)
	ae, ok := product.AsAccessError(err)
	require.True(t, ok, "expected *product.AccessError, got %T: %v", err, err)
	require.Equal(t, kind, ae.Kind)
	return ae
}

type failingCache struct{}

func (failingCache) Load(context.Context) (product.Snapshot, bool, error) {
	return product.Snapshot{}, false, errors.New("cache down")
}

func (failingCache) Store(context.Context, product.Snapshot) error {
	return errors.New("cache down")
}

// --- Tests ---

func TestNew_RequiresURL(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestFetchAll(t *testing.T) {
	fs := newFeedServer(t, serveBody(http.StatusOK, twoProducts))
	repo := newRepo(t, fs.URL)

	products, err := repo.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, int64(1), products[0].ID)
	assert.Equal(t, int64(3), products[1].ID)
}

func TestFetchOne(t *testing.T) {
	fs := newFeedServer(t, serveBody(http.StatusOK, twoProducts))
	repo := newRepo(t, fs.URL)
	ctx := context.Background()

	t.Run("present", func(t *testing.T) {
		p, ok, err := repo.FetchOne(ctx, 3)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Garden Cart", p.Name)
	})

	t.Run("absent is not an error", func(t *testing.T) {
		p, ok, err := repo.FetchOne(ctx, 2)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, p.ID)
	})

	t.Run("every listed id resolves", func(t *testing.T) {
		all, err := repo.FetchAll(ctx)
		require.NoError(t, err)
		for _, want := range all {
			got, ok, err := repo.FetchOne(ctx, want.ID)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, want.ID, got.ID)
		}
	})
}

func TestFetchOne_DuplicateIDsFirstWins(t *testing.T) {
	fs := newFeedServer(t, serveBody(http.StatusOK,
		`[{"productId":7,"productName":"first"},{"productId":7,"productName":"second"}]`))
	repo := newRepo(t, fs.URL)

	p, ok, err := repo.FetchOne(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", p.Name)
}

func TestFetch_ServerError(t *testing.T) {
	fs := newFeedServer(t, serveBody(http.StatusInternalServerError, `{"code":500}`))
	repo := newRepo(t, fs.URL)
	ctx := context.Background()

	_, err := repo.FetchAll(ctx)
	ae := requireAccessError(t, err, product.KindServer)
	assert.Equal(t, http.StatusInternalServerError, ae.Status)
	assert.Contains(t, ae.Message, "500 Internal Server Error")
	assert.Contains(t, ae.Error(), "Server returned code: 500")

	_, ok, err := repo.FetchOne(ctx, 1)
	assert.False(t, ok)
	ae = requireAccessError(t, err, product.KindServer)
	assert.Equal(t, http.StatusInternalServerError, ae.Status)
}

func TestFetch_NotFoundStatus(t *testing.T) {
	fs := newFeedServer(t, http.NotFound)
	repo := newRepo(t, fs.URL)

	_, err := repo.FetchAll(context.Background())
	ae := requireAccessError(t, err, product.KindServer)
	assert.Equal(t, http.StatusNotFound, ae.Status)
}

func TestFetch_MalformedBodyIsServerError(t *testing.T) {
	fs := newFeedServer(t, serveBody(http.StatusOK, `<html>oops</html>`))
	repo := newRepo(t, fs.URL)

	_, err := repo.FetchAll(context.Background())
	ae := requireAccessError(t, err, product.KindServer)
	assert.Equal(t, http.StatusOK, ae.Status)
	assert.Contains(t, ae.Message, "http failure during parsing")
}

func TestFetch_BodyTooLarge(t *testing.T) {
	fs := newFeedServer(t, serveBody(http.StatusOK, twoProducts))
	r, err := New(Config{URL: fs.URL, MaxBodyBytes: 16})
	require.NoError(t, err)

	_, err = r.FetchAll(context.Background())
	ae := requireAccessError(t, err, product.KindServer)
	assert.Contains(t, ae.Message, "exceeds 16 bytes")
}

func TestFetch_ClientError(t *testing.T) {
	fs := newFeedServer(t, serveBody(http.StatusOK, twoProducts))
	url := fs.URL
	fs.Close()

	repo := newRepo(t, url)

	_, err := repo.FetchAll(context.Background())
	ae := requireAccessError(t, err, product.KindClient)
	assert.Zero(t, ae.Status)
	assert.Contains(t, ae.Error(), "An error occurred")

	_, _, err = repo.FetchOne(context.Background(), 1)
	requireAccessError(t, err, product.KindClient)
}

func TestFetch_InvalidURLIsClientError(t *testing.T) {
	repo := newRepo(t, "http://[::1]:namedport")

	_, err := repo.FetchAll(context.Background())
	requireAccessError(t, err, product.KindClient)
}

func TestFetch_CallerContextCancelled(t *testing.T) {
	release := make(chan struct{})
	fs := newFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		serveBody(http.StatusOK, twoProducts)(w, r)
	})
	defer close(release)
	repo := newRepo(t, fs.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := repo.FetchAll(ctx)
	requireAccessError(t, err, product.KindClient)
}

func TestFetch_ConcurrentCallsShareOneRequest(t *testing.T) {
	release := make(chan struct{})
	fs := newFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		serveBody(http.StatusOK, twoProducts)(w, r)
	})
	repo := newRepo(t, fs.URL)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			products, err := repo.FetchAll(context.Background())
			if err == nil && len(products) != 2 {
				err = errors.Errorf("got %d products", len(products))
			}
			errs <- err
		}()
	}

	// Let every caller join the in-flight request before it completes.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), fs.hits.Load())
}

func TestFetch_NoCacheFetchesEveryTime(t *testing.T) {
	fs := newFeedServer(t, serveBody(http.StatusOK, twoProducts))
	repo := newRepo(t, fs.URL)
	ctx := context.Background()

	for range 3 {
		_, err := repo.FetchAll(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), fs.hits.Load())
}

func TestFetch_MemoryCache(t *testing.T) {
	fs := newFeedServer(t, serveBody(http.StatusOK, twoProducts))
	cache := NewMemoryCache(time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }
	repo := newRepo(t, fs.URL, WithCache(cache))
	ctx := context.Background()

	first, err := repo.FetchAll(ctx)
	require.NoError(t, err)
	_, ok, err := repo.FetchOne(ctx, 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), fs.hits.Load(), "second call served from cache")

	// Callers own their copy.
	first[0].Name = "mutated"
	first[0].Extra["tags"] = jx.Raw(`["mutated"]`)
	first[0].Extra["color"] = jx.Raw(`"red"`)
	again, err := repo.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Leaf Rake", again[0].Name)
	assert.JSONEq(t, `["x"]`, string(again[0].Extra["tags"]))
	assert.NotContains(t, again[0].Extra, "color")

	again[0].Extra["tags"][1] = '!'
	rake, _, err := repo.FetchOne(ctx, 1)
	require.NoError(t, err)
	assert.JSONEq(t, `["x"]`, string(rake.Extra["tags"]))

	now = now.Add(2 * time.Minute)
	_, err = repo.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fs.hits.Load(), "expired entry refetched")
}

func TestFetch_FailingCacheFallsThrough(t *testing.T) {
	fs := newFeedServer(t, serveBody(http.StatusOK, twoProducts))
	repo := newRepo(t, fs.URL, WithCache(failingCache{}))

	products, err := repo.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestFetch_FailureIsNotCached(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	fs := newFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			serveBody(http.StatusBadGateway, "")(w, r)
			return
		}
		serveBody(http.StatusOK, twoProducts)(w, r)
	})
	repo := newRepo(t, fs.URL, WithCache(NewMemoryCache(time.Minute)))
	ctx := context.Background()

	_, err := repo.FetchAll(ctx)
	requireAccessError(t, err, product.KindServer)

	fail.Store(false)
	products, err := repo.FetchAll(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestObserver(t *testing.T) {
	fs := newFeedServer(t, serveBody(http.StatusOK, twoProducts))
	seen := make(chan product.Snapshot, 1)
	repo := newRepo(t, fs.URL,
		WithObserver(ObserverFunc(func(context.Context, product.Snapshot) {
			panic("observer bug")
		})),
		WithObserver(ObserverFunc(func(_ context.Context, s product.Snapshot) {
			seen <- s
		})),
	)

	products, err := repo.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 2)

	select {
	case s := <-seen:
		assert.Equal(t, []int64{1, 3}, s.IDs())
		assert.False(t, s.Cached)
		assert.False(t, s.FetchedAt.IsZero())
	case <-time.After(time.Second):
		t.Fatal("observer was not notified")
	}
}

func TestObserver_NotCalledOnFailure(t *testing.T) {
	fs := newFeedServer(t, serveBody(http.StatusServiceUnavailable, ""))
	var calls atomic.Int64
	repo := newRepo(t, fs.URL, WithObserver(ObserverFunc(func(context.Context, product.Snapshot) {
		calls.Add(1)
	})))

	_, err := repo.FetchAll(context.Background())
	require.Error(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestPing(t *testing.T) {
	fs := newFeedServer(t, serveBody(http.StatusOK, twoProducts))
	repo := newRepo(t, fs.URL)
	require.NoError(t, repo.Ping(context.Background()))
}
