// Package fetch retrieves per-architecture repodata.json documents over
// HTTP, backed by an on-disk cache so repeated runs (and --offline runs)
// don't require the network.
package fetch

import (
	"context"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/sdboyer/constext"
	flock "github.com/theckman/go-flock"
)

// FetchError marks a network or cache failure acquiring an index file, as
// distinct from a malformed-document ParseError raised later by
// internal/repodata.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return "fetch: " + e.URL + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

var cacheBucket = []byte("repodata")

// Fetcher retrieves repodata documents for a channel, caching bodies in a
// bolt database under cacheDir and serialising cache access across
// concurrent curate invocations with a flock file lock.
type Fetcher struct {
	client       *http.Client
	channelAlias string
	offline      bool
	cacheDir     string

	db   *bolt.DB
	lock *flock.Flock
}

// New opens (creating if needed) the on-disk cache in cacheDir and returns
// a Fetcher for channelAlias (expected to already end in "/"). timeout
// bounds each individual HTTP request.
func New(cacheDir, channelAlias string, offline bool, timeout time.Duration) (*Fetcher, error) {
	if err := ensureDir(cacheDir); err != nil {
		return nil, errors.Wrap(err, "fetch: creating cache dir")
	}

	lock := flock.NewFlock(path.Join(cacheDir, ".curate-cache.lock"))
	if err := lock.Lock(); err != nil {
		return nil, errors.Wrap(err, "fetch: acquiring cache lock")
	}

	db, err := bolt.Open(path.Join(cacheDir, "repodata-cache.db"), 0o644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		lock.Unlock()
		return nil, errors.Wrap(err, "fetch: opening cache database")
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	}); err != nil {
		db.Close()
		lock.Unlock()
		return nil, errors.Wrap(err, "fetch: initialising cache bucket")
	}

	return &Fetcher{
		client:       &http.Client{Timeout: timeout},
		channelAlias: channelAlias,
		offline:      offline,
		cacheDir:     cacheDir,
		db:           db,
		lock:         lock,
	}, nil
}

// Close releases the cache database and inter-process lock.
func (f *Fetcher) Close() error {
	dbErr := f.db.Close()
	lockErr := f.lock.Unlock()
	if dbErr != nil {
		return dbErr
	}
	return lockErr
}

// FetchIndex returns the raw repodata.json body for the given subdir
// (e.g. "linux-64", "noarch"). In offline mode, a cache miss is a
// FetchError; online, a network failure falls back to a stale cache
// entry if one exists, and is otherwise a FetchError.
func (f *Fetcher) FetchIndex(ctx context.Context, subdir string) ([]byte, error) {
	url := strings.TrimSuffix(f.channelAlias, "/") + "/" + subdir + "/repodata.json"

	if f.offline {
		body, ok := f.readCache(url)
		if !ok {
			return nil, &FetchError{URL: url, Err: errors.New("offline and no cached copy available")}
		}
		return body, nil
	}

	deadlineCtx, deadlineCancel := context.WithTimeout(context.Background(), f.client.Timeout)
	defer deadlineCancel()
	reqCtx, cancel := constext.Cons(ctx, deadlineCtx)
	defer cancel()

	body, err := f.fetchLive(reqCtx, url)
	if err != nil {
		if cached, ok := f.readCache(url); ok {
			return cached, nil
		}
		return nil, &FetchError{URL: url, Err: err}
	}

	f.writeCache(url, body)
	return body, nil
}

func (f *Fetcher) fetchLive(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (f *Fetcher) readCache(url string) ([]byte, bool) {
	var body []byte
	_ = f.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(cacheBucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(url)); v != nil {
			body = append([]byte(nil), v...)
		}
		return nil
	})
	return body, body != nil
}

func (f *Fetcher) writeCache(url string, body []byte) {
	_ = f.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(cacheBucket)
		if b == nil {
			return nil
		}
		return b.Put([]byte(url), body)
	})
}
