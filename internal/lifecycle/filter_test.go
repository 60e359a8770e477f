package lifecycle

import (
	"testing"

	"remind/internal/notification"
)

func TestParseStatusFilter(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    StatusFilter
		wantErr bool
	}{
		{"", FilterAll, false},
		{"all", FilterAll, false},
		{" Pending ", StatusFilter(notification.StatusPending), false},
		{"sent", StatusFilter(notification.StatusSent), false},
		{"bogus", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStatusFilter(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseStatusFilter(%q) err = %v", tt.in, err)
		}
		if err == nil && got != tt.want {
			t.Fatalf("ParseStatusFilter(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func filterFixture() []notification.Notification {
	return []notification.Notification{
		{ID: "1", Subject: "Invoice due", Status: notification.StatusPending,
			Recipient: notification.Adhoc("Ana", "ana@x.com")},
		{ID: "2", Subject: "Renewal", Status: notification.StatusSent,
			Recipient: notification.Registered("c-7")},
		{ID: "3", Subject: "Checkup", Status: notification.StatusPending,
			Recipient: notification.Adhoc("Bruno", "bruno@y.com")},
		{ID: "4", Subject: "Invoice overdue", Status: notification.StatusCancelled,
			Recipient: notification.Adhoc("Ana", "ana@x.com")},
	}
}

func resolveFixture(contactID string) (notification.DisplayInfo, bool) {
	if contactID == "c-7" {
		return notification.DisplayInfo{Name: "Carla", Address: "carla@z.com"}, true
	}
	return notification.DisplayInfo{}, false
}

func ids(items []notification.Notification) []string {
	out := make([]string, len(items))
	for i, n := range items {
		out[i] = n.ID
	}
	return out
}

func TestFilter(t *testing.T) {
	t.Parallel()
	items := filterFixture()

	tests := []struct {
		name   string
		status StatusFilter
		query  string
		want   []string
	}{
		{"all empty query", FilterAll, "", []string{"1", "2", "3", "4"}},
		{"pending only", StatusFilter(notification.StatusPending), "", []string{"1", "3"}},
		{"subject substring", FilterAll, "invoice", []string{"1", "4"}},
		{"adhoc name", FilterAll, "bruno", []string{"3"}},
		{"resolved registered name", FilterAll, "carla", []string{"2"}},
		{"resolved registered address", FilterAll, "z.com", []string{"2"}},
		{"status and query combined", StatusFilter(notification.StatusPending), "ana", []string{"1"}},
		{"no match", FilterAll, "zzz", nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ids(Filter(items, tt.status, tt.query, resolveFixture))
			if len(got) != len(tt.want) {
				t.Fatalf("Filter = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Filter = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	t.Parallel()
	items := filterFixture()
	_ = Filter(items, StatusFilter(notification.StatusPending), "ana", resolveFixture)
	if items[1].ID != "2" || len(items) != 4 {
		t.Fatal("Filter mutated its input slice")
	}
}
