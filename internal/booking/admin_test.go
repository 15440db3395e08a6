package booking

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"agencydesk-backend/internal/calendar"
	"agencydesk-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

// memoryCache makes invalidation observable in tests.
type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	val, ok := c.items[key]
	return val, ok, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

func (c *memoryCache) DeletePrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
		}
	}
	return nil
}

func newAdminTestRouter(t *testing.T) (*chi.Mux, *fakeRepo, *memoryCache) {
	t.Helper()
	repo := newFakeRepo()
	if err := repo.CreateType(context.Background(), testBookingType()); err != nil {
		t.Fatalf("seed type: %v", err)
	}

	svc := NewService(repo, calendar.FixedClock{Instant: testNow}, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	memCache := newMemoryCache()
	h := NewHandler(svc, validation.New(), logger, memCache, time.Minute,
		AgencyInfo{Name: "AgencyDesk"}, "https://booking.example.com")
	adm := NewAdminHandler(h, repo, logger)

	r := chi.NewRouter()
	r.Get("/api/booking/{slug}", h.BookingPage)
	r.Post("/api/admin/booking-types", adm.CreateType)
	r.Delete("/api/admin/booking-types/{id}", adm.DeleteType)
	r.Post("/api/admin/blocks", adm.CreateBlock(time.UTC))
	r.Delete("/api/admin/blocks/{id}", adm.DeleteBlock)
	return r, repo, memCache
}

func countDaySlots(t *testing.T, r http.Handler, date string) int {
	t.Helper()
	rec := doJSON(t, r, http.MethodGet, "/api/booking/discovery-call?date="+date, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	return len(decodeBody(t, rec)["slots"].([]interface{}))
}

func TestAdminCreateBlockInvalidatesCache(t *testing.T) {
	r, _, memCache := newAdminTestRouter(t)

	if got := countDaySlots(t, r, "2026-02-02"); got != 6 {
		t.Fatalf("expected 6 slots before the block, got %d", got)
	}
	if _, ok, _ := memCache.Get(context.Background(), "booking:discovery-call:date:2026-02-02"); !ok {
		t.Fatal("day availability not cached")
	}

	rec := doJSON(t, r, http.MethodPost, "/api/admin/blocks", map[string]string{
		"bookingTypeId": "bt1",
		"date":          "2026-02-02",
		"start":         "09:00",
		"end":           "12:00",
		"reason":        "offsite",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// A stale cache would keep serving the six pre-block slots.
	if got := countDaySlots(t, r, "2026-02-02"); got != 0 {
		t.Fatalf("expected 0 slots after the block, got %d", got)
	}
}

func TestAdminGlobalBlockInvalidatesCache(t *testing.T) {
	r, _, _ := newAdminTestRouter(t)

	if got := countDaySlots(t, r, "2026-02-02"); got != 6 {
		t.Fatalf("expected 6 slots before the block, got %d", got)
	}

	rec := doJSON(t, r, http.MethodPost, "/api/admin/blocks", map[string]string{
		"date":  "2026-02-02",
		"start": "09:00",
		"end":   "10:00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	if got := countDaySlots(t, r, "2026-02-02"); got != 4 {
		t.Fatalf("expected 4 slots after the global block, got %d", got)
	}
}

func TestAdminDeleteBlockInvalidatesCache(t *testing.T) {
	r, repo, _ := newAdminTestRouter(t)
	block := TimeBlock{
		ID:        "blk1",
		StartTime: time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC),
	}
	if err := repo.InsertTimeBlock(context.Background(), block); err != nil {
		t.Fatalf("seed block: %v", err)
	}

	if got := countDaySlots(t, r, "2026-02-02"); got != 0 {
		t.Fatalf("expected 0 slots while blocked, got %d", got)
	}

	rec := doJSON(t, r, http.MethodDelete, "/api/admin/blocks/blk1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if got := countDaySlots(t, r, "2026-02-02"); got != 6 {
		t.Fatalf("expected 6 slots after removing the block, got %d", got)
	}
}

func TestAdminDeleteTypeInvalidatesCache(t *testing.T) {
	r, _, memCache := newAdminTestRouter(t)

	countDaySlots(t, r, "2026-02-02")
	if _, ok, _ := memCache.Get(context.Background(), "booking:discovery-call:date:2026-02-02"); !ok {
		t.Fatal("day availability not cached")
	}

	rec := doJSON(t, r, http.MethodDelete, "/api/admin/booking-types/bt1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if _, ok, _ := memCache.Get(context.Background(), "booking:discovery-call:date:2026-02-02"); ok {
		t.Fatal("availability cache survived the type deletion")
	}
}

func TestAdminCreateTypeDuplicateSlug(t *testing.T) {
	r, _, _ := newAdminTestRouter(t)
	body := map[string]interface{}{
		"name":            "Deep Dive",
		"durationMinutes": 60,
		"timezone":        "UTC",
		"windows": []map[string]string{
			{"weekday": "monday", "start": "09:00", "end": "12:00"},
		},
	}

	rec := doJSON(t, r, http.MethodPost, "/api/admin/booking-types", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodPost, "/api/admin/booking-types", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a duplicate slug, got %d: %s", rec.Code, rec.Body.String())
	}
}
