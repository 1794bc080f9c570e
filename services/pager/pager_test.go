package pager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"suggesterr/models"
)

func fixedPage(page, totalPages, n int) models.CatalogPage {
	items := make([]models.CatalogItem, n)
	for i := range items {
		items[i] = models.CatalogItem{ID: int64(page*1000 + i), MediaType: models.MediaTypeMovie}
	}
	return models.CatalogPage{Items: items, Page: page, TotalPages: totalPages}
}

func TestScrollMetrics_NearEnd(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		metrics ScrollMetrics
		want    bool
	}{
		{"at start", ScrollMetrics{ScrollLeft: 0, ClientWidth: 500, ScrollWidth: 5000}, false},
		{"just below threshold", ScrollMetrics{ScrollLeft: 3480, ClientWidth: 500, ScrollWidth: 5000}, false},
		{"at 80 percent", ScrollMetrics{ScrollLeft: 3500, ClientWidth: 500, ScrollWidth: 5000}, true},
		{"within 20px of end", ScrollMetrics{ScrollLeft: 190, ClientWidth: 500, ScrollWidth: 705}, true},
		{"row narrower than viewport", ScrollMetrics{ScrollLeft: 0, ClientWidth: 500, ScrollWidth: 400}, true},
		{"zero width", ScrollMetrics{}, false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.metrics.NearEnd(); got != tc.want {
				t.Errorf("NearEnd(%+v) = %v, want %v", tc.metrics, got, tc.want)
			}
		})
	}
}

func TestLoadMore_AdvancesOnePageAtATime(t *testing.T) {
	t.Parallel()
	p := New(func(ctx context.Context, key string, page int) (models.CatalogPage, error) {
		return fixedPage(page, 3, 20), nil
	})

	for want := 1; want <= 3; want++ {
		result, err := p.LoadMore(context.Background(), "popular")
		if err != nil {
			t.Fatalf("LoadMore failed: %v", err)
		}
		if result.Skipped {
			t.Fatalf("page %d unexpectedly skipped: %+v", want, result)
		}
		if result.Page != want {
			t.Errorf("expected page %d, got %d", want, result.Page)
		}
	}

	// Page 3 of 3 ended the container.
	result, err := p.LoadMore(context.Background(), "popular")
	if err != nil {
		t.Fatalf("LoadMore failed: %v", err)
	}
	if !result.Skipped || result.SkipReason != SkipEndOfData {
		t.Errorf("expected end-of-data skip, got %+v", result)
	}
}

func TestLoadMore_EmptyPageEndsContainer(t *testing.T) {
	t.Parallel()
	p := New(func(ctx context.Context, key string, page int) (models.CatalogPage, error) {
		return models.CatalogPage{Page: page, TotalPages: 99}, nil
	})

	result, err := p.LoadMore(context.Background(), "upcoming")
	if err != nil {
		t.Fatalf("LoadMore failed: %v", err)
	}
	if !result.EndOfData {
		t.Error("empty page should end the container")
	}
	if result.Page != 0 {
		t.Errorf("empty fetch must not advance the cursor, got page %d", result.Page)
	}
}

func TestLoadMore_ErrorLeavesCursorRetryable(t *testing.T) {
	t.Parallel()
	fail := true
	p := New(func(ctx context.Context, key string, page int) (models.CatalogPage, error) {
		if fail {
			return models.CatalogPage{}, errors.New("upstream down")
		}
		return fixedPage(page, 10, 20), nil
	})

	if _, err := p.LoadMore(context.Background(), "popular"); err == nil {
		t.Fatal("expected fetch error")
	}

	page, endOfData, inFlight := p.Cursor("popular")
	if page != 0 || endOfData || inFlight {
		t.Errorf("error should leave cursor untouched, got page=%d end=%v inflight=%v", page, endOfData, inFlight)
	}

	fail = false
	result, err := p.LoadMore(context.Background(), "popular")
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if result.Page != 1 {
		t.Errorf("retry should fetch page 1, got %d", result.Page)
	}
}

func TestLoadMore_SingleFlight(t *testing.T) {
	t.Parallel()
	var fetches atomic.Int64
	release := make(chan struct{})
	p := New(func(ctx context.Context, key string, page int) (models.CatalogPage, error) {
		fetches.Add(1)
		<-release
		return fixedPage(page, 10, 20), nil
	})

	var wg sync.WaitGroup
	var skips atomic.Int64
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := p.LoadMore(context.Background(), "popular")
			if err != nil {
				t.Errorf("LoadMore failed: %v", err)
				return
			}
			if result.Skipped {
				skips.Add(1)
			}
		}()
	}

	// Let the stragglers hit the in-flight guard, then release the fetch.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if fetches.Load() != 1 {
		t.Errorf("expected exactly 1 fetch, got %d", fetches.Load())
	}
	if skips.Load() != 9 {
		t.Errorf("expected 9 skips, got %d", skips.Load())
	}
}

func TestLoadMore_IndependentContainers(t *testing.T) {
	t.Parallel()
	p := New(func(ctx context.Context, key string, page int) (models.CatalogPage, error) {
		if key == "short" {
			return fixedPage(page, 1, 5), nil
		}
		return fixedPage(page, 10, 20), nil
	})

	if _, err := p.LoadMore(context.Background(), "short"); err != nil {
		t.Fatalf("LoadMore failed: %v", err)
	}
	if _, err := p.LoadMore(context.Background(), "long"); err != nil {
		t.Fatalf("LoadMore failed: %v", err)
	}

	_, shortEnded, _ := p.Cursor("short")
	longPage, longEnded, _ := p.Cursor("long")
	if !shortEnded {
		t.Error("short container should have ended")
	}
	if longEnded || longPage != 1 {
		t.Errorf("long container should be open at page 1, got page=%d end=%v", longPage, longEnded)
	}
}

func TestReset_AllowsRefetchFromPageOne(t *testing.T) {
	t.Parallel()
	var pagesFetched []int
	p := New(func(ctx context.Context, key string, page int) (models.CatalogPage, error) {
		pagesFetched = append(pagesFetched, page)
		return fixedPage(page, 2, 20), nil
	})

	p.LoadMore(context.Background(), "popular")
	p.LoadMore(context.Background(), "popular")

	// Ended now; a further load skips.
	result, _ := p.LoadMore(context.Background(), "popular")
	if !result.Skipped {
		t.Fatal("expected skip after end of data")
	}

	p.Reset("popular")
	result, err := p.LoadMore(context.Background(), "popular")
	if err != nil {
		t.Fatalf("LoadMore after reset failed: %v", err)
	}
	if result.Page != 1 {
		t.Errorf("expected page 1 after reset, got %d", result.Page)
	}

	want := []int{1, 2, 1}
	if fmt.Sprint(pagesFetched) != fmt.Sprint(want) {
		t.Errorf("expected fetch sequence %v, got %v", want, pagesFetched)
	}
}

func TestReset_DiscardsInFlightResult(t *testing.T) {
	t.Parallel()
	started := make(chan struct{})
	release := make(chan struct{})
	var appended atomic.Int64
	p := New(func(ctx context.Context, key string, page int) (models.CatalogPage, error) {
		close(started)
		<-release
		return fixedPage(page, 10, 20), nil
	}, WithAppend(func(key string, items []models.CatalogItem) {
		appended.Add(int64(len(items)))
	}))

	done := make(chan Result)
	go func() {
		result, _ := p.LoadMore(context.Background(), "popular")
		done <- result
	}()

	<-started
	p.Reset("popular")
	close(release)
	result := <-done

	if !result.Skipped {
		t.Errorf("fetch landing after reset should be discarded, got %+v", result)
	}
	if appended.Load() != 0 {
		t.Errorf("discarded fetch must not append, appended %d items", appended.Load())
	}
	if page, _, _ := p.Cursor("popular"); page != 0 {
		t.Errorf("cursor should stay at 0 after discarded fetch, got %d", page)
	}
}

func TestLoadingHooks_EndAlwaysRuns(t *testing.T) {
	t.Parallel()
	var begins, ends atomic.Int64
	p := New(func(ctx context.Context, key string, page int) (models.CatalogPage, error) {
		return models.CatalogPage{}, errors.New("boom")
	}, WithLoadingHooks(
		func(key string) { begins.Add(1) },
		func(key string) { ends.Add(1) },
	))

	p.LoadMore(context.Background(), "popular")

	if begins.Load() != 1 || ends.Load() != 1 {
		t.Errorf("expected hooks to run once each on error, got begin=%d end=%d", begins.Load(), ends.Load())
	}
}

func TestMaybeLoadMore_SkipsWhenFarFromEnd(t *testing.T) {
	t.Parallel()
	var fetches atomic.Int64
	p := New(func(ctx context.Context, key string, page int) (models.CatalogPage, error) {
		fetches.Add(1)
		return fixedPage(page, 10, 20), nil
	})

	result, err := p.MaybeLoadMore(context.Background(), "popular",
		ScrollMetrics{ScrollLeft: 0, ClientWidth: 500, ScrollWidth: 5000})
	if err != nil {
		t.Fatalf("MaybeLoadMore failed: %v", err)
	}
	if !result.Skipped {
		t.Error("expected skip far from the end")
	}
	if fetches.Load() != 0 {
		t.Errorf("expected no fetch, got %d", fetches.Load())
	}
}

func TestDebouncer_CoalescesBursts(t *testing.T) {
	t.Parallel()
	var fires atomic.Int64
	d := NewDebouncerWithDelay(30*time.Millisecond, func() { fires.Add(1) })
	defer d.Stop()

	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)
	if fires.Load() != 1 {
		t.Errorf("expected a burst to fire once, got %d", fires.Load())
	}

	d.Trigger()
	time.Sleep(100 * time.Millisecond)
	if fires.Load() != 2 {
		t.Errorf("expected a later trigger to fire again, got %d", fires.Load())
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	t.Parallel()
	var fires atomic.Int64
	d := NewDebouncerWithDelay(30*time.Millisecond, func() { fires.Add(1) })

	d.Trigger()
	d.Stop()
	d.Trigger()

	time.Sleep(100 * time.Millisecond)
	if fires.Load() != 0 {
		t.Errorf("expected no fires after stop, got %d", fires.Load())
	}
}
