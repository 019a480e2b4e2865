package store_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/outreachkit/prospector/internal/prospect"
	"github.com/outreachkit/prospector/internal/store"
)

func openTemp(t *testing.T) *store.SQLite {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "campaigns.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestScanEmptyStoreReturnsEmptySlice(t *testing.T) {
	t.Parallel()

	s := openTemp(t)

	values, err := s.Scan(context.Background(), store.CampaignKeyPrefix)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values == nil || len(values) != 0 {
		t.Fatalf("expected empty slice, got %#v", values)
	}
}

func TestPutScanOrdersByKey(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	ctx := context.Background()

	for _, kv := range []struct{ k, v string }{
		{"campaign:002", "second"},
		{"campaign:001", "first"},
		{"other:000", "not a campaign"},
	} {
		if err := s.Put(ctx, kv.k, []byte(kv.v)); err != nil {
			t.Fatalf("put %s: %v", kv.k, err)
		}
	}

	values, err := s.Scan(ctx, "campaign:")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(values) != 2 {
		t.Fatalf("expected 2 values, got %d", len(values))
	}
	if string(values[0]) != "first" || string(values[1]) != "second" {
		t.Fatalf("wrong order: %q, %q", values[0], values[1])
	}
}

func TestCampaignsRoundTripAndDropsUnparseable(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	campaigns := store.Campaigns{Store: s}
	ctx := context.Background()

	stored := prospect.Campaign{
		Title: "SF founders",
		Prospects: []prospect.Prospect{{
			FirstName:     "Ada",
			LinkedInURL:   "https://linkedin.com/in/ada",
			Email:         "ada@ion.com",
			EmailMessages: []prospect.EmailMessage{{From: "me", Text: "hi Ada"}},
		}},
	}
	if err := campaigns.Put(ctx, store.NewKey(time.Now()), stored); err != nil {
		t.Fatalf("put campaign: %v", err)
	}
	if err := s.Put(ctx, store.CampaignKeyPrefix+"zz-broken", []byte("{not json")); err != nil {
		t.Fatalf("put broken row: %v", err)
	}

	got, err := campaigns.ListAll(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected the broken row to be dropped, got %d campaigns", len(got))
	}
	if got[0].Title != stored.Title {
		t.Fatalf("title = %q, want %q", got[0].Title, stored.Title)
	}
	if len(got[0].Prospects) != 1 || got[0].Prospects[0].EmailMessages[0].Text != "hi Ada" {
		t.Fatalf("prospect did not round-trip: %#v", got[0].Prospects)
	}
}

func TestCampaignListEmptyStoreIsNotAnError(t *testing.T) {
	t.Parallel()

	campaigns := store.Campaigns{Store: openTemp(t)}

	got, err := campaigns.ListAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no campaigns, got %d", len(got))
	}
}

func TestNewKeyIsPrefixedAndUnique(t *testing.T) {
	t.Parallel()

	now := time.Now()
	a, b := store.NewKey(now), store.NewKey(now)
	if !strings.HasPrefix(a, store.CampaignKeyPrefix) {
		t.Fatalf("key %q missing prefix", a)
	}
	if a == b {
		t.Fatalf("keys must be unique even at the same timestamp: %q", a)
	}
}
