package directory

import (
	"context"
	"testing"
	"time"

	"remind/internal/notification"
)

func seedContacts() []Contact {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []Contact{
		{ID: "c-1", Name: "Ana Torres", Address: "ana@x.com", CreatedAt: base},
		{ID: "c-2", Name: "Bob Marsh", Address: "bob@y.org", CreatedAt: base.Add(time.Hour)},
		{ID: "c-3", Name: "Carla", Address: "carla.ana@z.io", CreatedAt: base.Add(2 * time.Hour)},
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()
	dir := NewMemory(seedContacts()...)
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "empty returns all", query: "", want: []string{"c-1", "c-2", "c-3"}},
		{name: "matches name case-insensitively", query: "ANA", want: []string{"c-1", "c-3"}},
		{name: "matches address", query: "y.org", want: []string{"c-2"}},
		{name: "no match", query: "zzz", want: nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := dir.Search(ctx, tt.query)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Search(%q) returned %d contacts, want %d", tt.query, len(got), len(tt.want))
			}
			for i, c := range got {
				if c.ID != tt.want[i] {
					t.Fatalf("Search(%q)[%d] = %s, want %s", tt.query, i, c.ID, tt.want[i])
				}
			}
		})
	}
}

func TestResolveSelection(t *testing.T) {
	t.Parallel()
	r, err := ResolveSelection(Contact{ID: "c-1", Name: "Ana", Address: "ana@x.com"})
	if err != nil {
		t.Fatalf("ResolveSelection: %v", err)
	}
	if r.Kind != notification.RecipientRegistered || r.ContactID != "c-1" {
		t.Fatalf("recipient = %+v", r)
	}
	if r.Name != "" || r.Address != "" {
		t.Fatal("registered recipient must not carry adhoc fields")
	}

	if _, err := ResolveSelection(Contact{}); err == nil {
		t.Fatal("expected error for contact without id")
	}
}

func TestResolveFreeText(t *testing.T) {
	t.Parallel()
	r, err := ResolveFreeText("  Ana ", " ana@x.com ")
	if err != nil {
		t.Fatalf("ResolveFreeText: %v", err)
	}
	if r.Kind != notification.RecipientAdhoc || r.Name != "Ana" || r.Address != "ana@x.com" {
		t.Fatalf("recipient = %+v", r)
	}
	if r.ContactID != "" {
		t.Fatal("adhoc recipient must not carry a contact id")
	}

	for _, tc := range []struct{ name, addr string }{
		{"", "ana@x.com"},
		{"Ana", ""},
		{"Ana", "ana @x.com"},
	} {
		if _, err := ResolveFreeText(tc.name, tc.addr); err == nil {
			t.Fatalf("expected error for (%q, %q)", tc.name, tc.addr)
		}
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()
	dir := NewMemory(seedContacts()...)
	resolve := Lookup(context.Background(), dir)

	info, ok := resolve("c-2")
	if !ok || info.Name != "Bob Marsh" || info.Address != "bob@y.org" {
		t.Fatalf("Lookup(c-2) = %+v, %v", info, ok)
	}
	if _, ok := resolve("c-gone"); ok {
		t.Fatal("expected miss for unknown contact")
	}
}
