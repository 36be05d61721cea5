package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/critreview/internal/adapters/remote"
	"github.com/okian/critreview/internal/adapters/storage"
	service "github.com/okian/critreview/internal/app"
	"github.com/okian/critreview/internal/domain/model"
	"github.com/okian/critreview/internal/domain/request"
	. "github.com/smartystreets/goconvey/convey"
)

const snapshot = `{"CSCI0170":{"course":4.5,"prof":4.1},"MATH0100":{"course":"3.2"},"ENGL0900":{"course":null}}`

// fakeFetcher decodes body into out and counts calls. When gate is set each
// call blocks until it is closed.
type fakeFetcher struct {
	mu    sync.Mutex
	body  string
	err   error
	gate  chan struct{}
	calls atomic.Int32
	last  request.Request
	// during runs inside Fetch, after the cache miss and before the result.
	during func()
}

func (f *fakeFetcher) Fetch(ctx context.Context, r request.Request, out any) error {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.during != nil {
		f.during()
	}
	f.mu.Lock()
	f.last = r
	body, err := f.body, f.err
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return &remote.DecodeError{Source: "stub", Err: err}
	}
	return nil
}

// failingSetStore is a memory store whose writes always fail.
type failingSetStore struct {
	*storage.Memory
}

func (failingSetStore) Set(context.Context, string, string) error {
	return storage.ErrStorage
}

func TestService_GetAllScores(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty cache", t, func() {
		store := storage.NewMemory()
		fetcher := &fakeFetcher{body: snapshot}
		svc := service.New(store, fetcher, service.WithSessionID("s-1"))

		Convey("When scores are requested", func() {
			got, err := svc.GetAllScores(ctx)

			Convey("Then exactly one scores request is made", func() {
				So(err, ShouldBeNil)
				So(fetcher.calls.Load(), ShouldEqual, int32(1))
				So(fetcher.last.Kind, ShouldEqual, request.Scores)
				So(fetcher.last.Courses, ShouldBeEmpty)
				So(got, ShouldHaveLength, 3)
			})

			Convey("And the snapshot is written under the cache key", func() {
				raw, ok, err := store.Get(ctx, service.CacheKey)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				var cached model.ScoreMap
				So(json.Unmarshal([]byte(raw), &cached), ShouldBeNil)
				So(cached, ShouldHaveLength, 3)
			})

			Convey("And a second call is served from the cache", func() {
				again, err := svc.GetAllScores(ctx)
				So(err, ShouldBeNil)
				So(fetcher.calls.Load(), ShouldEqual, int32(1))
				a, _ := json.Marshal(got)
				b, _ := json.Marshal(again)
				So(string(b), ShouldEqual, string(a))
			})
		})
	})

	Convey("Given a populated cache", t, func() {
		store := storage.NewMemory()
		So(store.Set(ctx, service.CacheKey, `{"X":{"course":2}}`), ShouldBeNil)
		fetcher := &fakeFetcher{body: snapshot}
		svc := service.New(store, fetcher)

		Convey("When scores are requested", func() {
			got, err := svc.GetAllScores(ctx)

			Convey("Then no network call is made and the cached value is returned", func() {
				So(err, ShouldBeNil)
				So(fetcher.calls.Load(), ShouldEqual, int32(0))
				So(got, ShouldContainKey, "X")
				So(got, ShouldHaveLength, 1)
			})
		})

		Convey("When the cache is invalidated", func() {
			So(svc.Invalidate(ctx), ShouldBeNil)
			got, err := svc.GetAllScores(ctx)

			Convey("Then the next call fetches again", func() {
				So(err, ShouldBeNil)
				So(fetcher.calls.Load(), ShouldEqual, int32(1))
				So(got, ShouldHaveLength, 3)
			})
		})
	})

	Convey("Given an empty string stored under the cache key", t, func() {
		store := storage.NewMemory()
		So(store.Set(ctx, service.CacheKey, ""), ShouldBeNil)
		fetcher := &fakeFetcher{body: snapshot}
		svc := service.New(store, fetcher)

		Convey("Then it is treated as a miss", func() {
			_, err := svc.GetAllScores(ctx)
			So(err, ShouldBeNil)
			So(fetcher.calls.Load(), ShouldEqual, int32(1))
		})
	})

	Convey("Given a corrupt cache entry", t, func() {
		store := storage.NewMemory()
		So(store.Set(ctx, service.CacheKey, "{not json"), ShouldBeNil)
		fetcher := &fakeFetcher{body: snapshot}
		svc := service.New(store, fetcher)

		Convey("When scores are requested", func() {
			_, err := svc.GetAllScores(ctx)

			Convey("Then a DecodeError is returned and nothing is fetched", func() {
				So(errors.Is(err, remote.ErrDecode), ShouldBeTrue)
				So(fetcher.calls.Load(), ShouldEqual, int32(0))
				raw, _, _ := store.Get(ctx, service.CacheKey)
				So(raw, ShouldEqual, "{not json")
			})
		})
	})

	Convey("Given a failing fetch", t, func() {
		store := storage.NewMemory()
		fetcher := &fakeFetcher{err: &remote.FetchError{URL: "stub", StatusCode: 503}}
		svc := service.New(store, fetcher)

		Convey("When scores are requested", func() {
			_, err := svc.GetAllScores(ctx)

			Convey("Then the FetchError is returned and nothing is cached", func() {
				So(errors.Is(err, remote.ErrFetch), ShouldBeTrue)
				_, ok, _ := store.Get(ctx, service.CacheKey)
				So(ok, ShouldBeFalse)
			})
		})
	})

	Convey("Given an existing but empty entry under the cache key", t, func() {
		store := storage.NewMemory()
		So(store.Set(ctx, service.CacheKey, ""), ShouldBeNil)

		Convey("When the fetch fails", func() {
			svc := service.New(store, &fakeFetcher{err: &remote.FetchError{URL: "stub", StatusCode: 500}})
			_, err := svc.GetAllScores(ctx)

			Convey("Then the entry is left byte-for-byte", func() {
				So(errors.Is(err, remote.ErrFetch), ShouldBeTrue)
				raw, ok, _ := store.Get(ctx, service.CacheKey)
				So(ok, ShouldBeTrue)
				So(raw, ShouldEqual, "")
			})
		})

		Convey("When the response does not decode", func() {
			svc := service.New(store, &fakeFetcher{body: `["not","a","map"]`})
			_, err := svc.GetAllScores(ctx)

			Convey("Then the entry is left byte-for-byte", func() {
				So(errors.Is(err, remote.ErrDecode), ShouldBeTrue)
				raw, ok, _ := store.Get(ctx, service.CacheKey)
				So(ok, ShouldBeTrue)
				So(raw, ShouldEqual, "")
			})
		})
	})

	Convey("Given two services sharing one SQLite cache", t, func() {
		path := filepath.Join(t.TempDir(), "cache.db")
		storeA, err := storage.NewSQLite(path)
		So(err, ShouldBeNil)
		defer storeA.Close()
		storeB, err := storage.NewSQLite(path)
		So(err, ShouldBeNil)
		defer storeB.Close()

		other := service.New(storeB, &fakeFetcher{body: `{"OTHR0001":{"course":2.5}}`})
		var (
			written  string
			otherErr error
		)

		Convey("When the other service writes while this one's fetch is failing", func() {
			fetcher := &fakeFetcher{err: &remote.FetchError{URL: "stub", StatusCode: 502}}
			fetcher.during = func() {
				// Runs on the fetch goroutine; assertions happen below.
				if _, otherErr = other.GetAllScores(ctx); otherErr == nil {
					written, _, otherErr = storeB.Get(ctx, service.CacheKey)
				}
			}
			_, err := service.New(storeA, fetcher).GetAllScores(ctx)

			Convey("Then the other service's bytes survive", func() {
				So(errors.Is(err, remote.ErrFetch), ShouldBeTrue)
				So(otherErr, ShouldBeNil)
				So(written, ShouldNotBeBlank)
				raw, ok, err := storeA.Get(ctx, service.CacheKey)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(raw, ShouldEqual, written)
			})
		})

		Convey("When the response does not decode", func() {
			fetcher := &fakeFetcher{body: `null`}
			fetcher.during = func() {
				// Runs on the fetch goroutine; assertions happen below.
				if _, otherErr = other.GetAllScores(ctx); otherErr == nil {
					written, _, otherErr = storeB.Get(ctx, service.CacheKey)
				}
			}
			_, err := service.New(storeA, fetcher).GetAllScores(ctx)

			Convey("Then the other service's bytes survive", func() {
				So(errors.Is(err, remote.ErrDecode), ShouldBeTrue)
				So(otherErr, ShouldBeNil)
				raw, _, _ := storeA.Get(ctx, service.CacheKey)
				So(raw, ShouldEqual, written)
			})
		})
	})

	Convey("Given a response that is not a score map", t, func() {
		store := storage.NewMemory()
		fetcher := &fakeFetcher{body: `[1,2]`}
		svc := service.New(store, fetcher)

		Convey("Then a DecodeError is returned and nothing is cached", func() {
			_, err := svc.GetAllScores(ctx)
			So(errors.Is(err, remote.ErrDecode), ShouldBeTrue)
			So(store.Len(), ShouldEqual, 0)
		})

		Convey("And a null body is rejected too", func() {
			fetcher.body = `null`
			_, err := svc.GetAllScores(ctx)
			So(errors.Is(err, remote.ErrDecode), ShouldBeTrue)
			So(store.Len(), ShouldEqual, 0)
		})
	})

	Convey("Given storage that cannot be written", t, func() {
		store := failingSetStore{storage.NewMemory()}
		fetcher := &fakeFetcher{body: snapshot}
		svc := service.New(store, fetcher)

		Convey("Then the fetched data is still returned", func() {
			got, err := svc.GetAllScores(ctx)
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 3)
		})
	})
}

func TestService_Concurrency(t *testing.T) {
	Convey("Given many callers missing the cache at once", t, func() {
		store := storage.NewMemory()
		fetcher := &fakeFetcher{body: snapshot, gate: make(chan struct{})}
		svc := service.New(store, fetcher)

		const callers = 16
		var (
			wg     sync.WaitGroup
			failed atomic.Int32
		)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := svc.GetAllScores(context.Background())
				if err != nil || len(got) != 3 {
					failed.Add(1)
				}
			}()
		}

		// Let every caller reach the shared flight before releasing it.
		time.Sleep(50 * time.Millisecond)
		close(fetcher.gate)
		wg.Wait()

		Convey("Then a single request serves all of them", func() {
			So(failed.Load(), ShouldEqual, int32(0))
			So(fetcher.calls.Load(), ShouldEqual, int32(1))
			So(store.Len(), ShouldEqual, 1)
		})
	})

	Convey("Given two callers sharing one fetch", t, func() {
		store := storage.NewMemory()
		fetcher := &fakeFetcher{body: snapshot, gate: make(chan struct{})}
		svc := service.New(store, fetcher)

		results := make([]model.ScoreMap, 2)
		var wg sync.WaitGroup
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], _ = svc.GetAllScores(context.Background())
			}()
		}
		time.Sleep(50 * time.Millisecond)
		close(fetcher.gate)
		wg.Wait()

		Convey("When one caller mutates its snapshot", func() {
			delete(results[0], "CSCI0170")
			results[0]["MATH0100"][0] = 'X'

			Convey("Then the other caller's snapshot is unaffected", func() {
				So(fetcher.calls.Load(), ShouldEqual, int32(1))
				So(results[1], ShouldHaveLength, 3)
				So(results[1], ShouldContainKey, "CSCI0170")
				n, ok := results[1]["MATH0100"].Number("course")
				So(ok, ShouldBeTrue)
				So(n, ShouldEqual, 3.2)
			})
		})
	})

	Convey("Given a caller whose context is cancelled while waiting", t, func() {
		store := storage.NewMemory()
		fetcher := &fakeFetcher{body: snapshot, gate: make(chan struct{})}
		svc := service.New(store, fetcher)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := svc.GetAllScores(ctx)

		Convey("Then it returns the context error", func() {
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			close(fetcher.gate)
		})

		Convey("And the shared fetch still completes for later callers", func() {
			close(fetcher.gate)
			got, err := svc.GetAllScores(context.Background())
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 3)
			So(fetcher.calls.Load(), ShouldEqual, int32(1))
		})
	})
}

func TestService_GetReviews(t *testing.T) {
	Convey("Given a service", t, func() {
		store := storage.NewMemory()
		fetcher := &fakeFetcher{body: `{"CSCI0170":[{"text":"great"}]}`}
		svc := service.New(store, fetcher)

		Convey("When reviews are requested twice", func() {
			_, err1 := svc.GetReviews(context.Background(), "CSCI0170")
			got, err2 := svc.GetReviews(context.Background(), "CSCI0170")

			Convey("Then each call goes to the API and nothing is cached", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(fetcher.calls.Load(), ShouldEqual, int32(2))
				So(fetcher.last.Kind, ShouldEqual, request.Reviews)
				So(fetcher.last.Courses, ShouldResemble, []string{"CSCI0170"})
				So(got, ShouldContainKey, "CSCI0170")
				So(store.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestService_Entry(t *testing.T) {
	Convey("Given a cached snapshot", t, func() {
		ctx := context.Background()
		store := storage.NewMemory()
		So(store.Set(ctx, service.CacheKey, snapshot), ShouldBeNil)
		svc := service.New(store, &fakeFetcher{}, service.WithScoreField("course"))

		Convey("When an entry with a numeric score is requested", func() {
			e, err := svc.Entry(ctx, "CSCI0170", "")

			Convey("Then it carries the normalized intensity and color", func() {
				So(err, ShouldBeNil)
				So(*e.Raw, ShouldEqual, 4.5)
				So(*e.Intensity, ShouldEqual, 0.875)
				So(e.Color, ShouldEqual, "rgb(25, 140, 0)")
			})
		})

		Convey("When the score is a numeric string", func() {
			e, err := svc.Entry(ctx, "MATH0100", "course")
			So(err, ShouldBeNil)
			So(*e.Raw, ShouldEqual, 3.2)
		})

		Convey("When the course has no score", func() {
			e, err := svc.Entry(ctx, "ENGL0900", "")
			So(err, ShouldBeNil)
			So(e.Raw, ShouldBeNil)
			So(e.Color, ShouldBeEmpty)
		})

		Convey("When every entry is requested", func() {
			entries, err := svc.Entries(ctx, "")

			Convey("Then they are ordered by id", func() {
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 3)
				So(entries[0].ID, ShouldEqual, "CSCI0170")
				So(entries[1].ID, ShouldEqual, "ENGL0900")
				So(entries[2].ID, ShouldEqual, "MATH0100")
				So(*entries[2].Raw, ShouldEqual, 3.2)
			})
		})

		Convey("When the course is unknown", func() {
			_, err := svc.Entry(ctx, "NOPE", "")
			So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_Session(t *testing.T) {
	Convey("Given two services without an explicit session id", t, func() {
		a := service.New(storage.NewMemory(), &fakeFetcher{})
		b := service.New(storage.NewMemory(), &fakeFetcher{})

		Convey("Then each gets its own id", func() {
			So(a.SessionID(), ShouldNotBeBlank)
			So(a.SessionID(), ShouldNotEqual, b.SessionID())
			So(a.GetStats()["sessionID"], ShouldEqual, a.SessionID())
		})
	})
}
