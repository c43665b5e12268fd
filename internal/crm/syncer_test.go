package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clinic-concierge/internal/config"
	"clinic-concierge/internal/directory"
)

func newCRMServer(t *testing.T, pages [][]APIClient) (*httptest.Server, *[]string) {
	t.Helper()
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		queries = append(queries, r.URL.RawQuery)

		page := 0
		fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)
		content := []APIClient{}
		if page < len(pages) {
			content = pages[page]
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content": content,
			"page":    map[string]any{"total_pages": len(pages), "number": page},
		})
	}))
	return srv, &queries
}

func newTestSyncer(srv *httptest.Server) (*Syncer, *directory.MemoryStore) {
	store := directory.NewMemoryStore()
	c := NewClient(config.CRMConfig{APIKey: "test-key", CompanyID: "clinic-1", BaseURL: srv.URL})
	return NewSyncer(c, store, time.Hour), store
}

func TestSyncAll_WalksAllPagesAndNormalizesPhones(t *testing.T) {
	srv, _ := newCRMServer(t, [][]APIClient{
		{
			{ID: "c-1", FirstName: "Олена", LastName: "Коваль", Phone: "+380931234567"},
			{ID: "c-2", FirstName: "Іван", Phone: "380631112233"},
		},
		{
			{ID: "c-3", Phone: "0671234567"},
			{ID: "", Phone: "0670000000"}, // no id, skipped
			{ID: "c-5", Phone: ""},        // no phone, skipped
		},
	})
	defer srv.Close()

	s, store := newTestSyncer(srv)
	n, err := s.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if n != 3 {
		t.Fatalf("written = %d, want 3", n)
	}

	c, ok, err := store.FindClientByPhone(context.Background(), "0931234567")
	if err != nil || !ok {
		t.Fatalf("client not mirrored: ok=%v err=%v", ok, err)
	}
	if c.ID != "c-1" || c.FirstName != "Олена" {
		t.Fatalf("unexpected client: %+v", c)
	}
}

func TestSync_FullWhenEmptyIncrementalAfter(t *testing.T) {
	srv, queries := newCRMServer(t, [][]APIClient{
		{{ID: "c-1", Phone: "0931234567"}},
	})
	defer srv.Close()

	s, _ := newTestSyncer(srv)

	if _, err := s.Sync(context.Background()); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if _, err := s.Sync(context.Background()); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	first, second := (*queries)[0], (*queries)[len(*queries)-1]
	if strings.Contains(first, "createdStart") {
		t.Fatalf("first sync must be full, got query %q", first)
	}
	if !strings.Contains(second, "createdStart") {
		t.Fatalf("second sync must be incremental, got query %q", second)
	}
}

func TestListClients_SurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(config.CRMConfig{APIKey: "bad", CompanyID: "clinic-1", BaseURL: srv.URL})
	if _, err := c.ListClients(context.Background(), 0, 1, time.Time{}, time.Time{}); err == nil {
		t.Fatalf("expected status error")
	}
}
