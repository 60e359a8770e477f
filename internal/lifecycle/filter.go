package lifecycle

import (
	"fmt"
	"strings"

	"remind/internal/notification"
)

// StatusFilter is either FilterAll or one concrete status.
type StatusFilter string

const FilterAll StatusFilter = "all"

func ParseStatusFilter(s string) (StatusFilter, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" || t == string(FilterAll) {
		return FilterAll, nil
	}
	st, err := notification.ParseStatus(t)
	if err != nil {
		return "", fmt.Errorf("status filter: %w", err)
	}
	return StatusFilter(st), nil
}

func (f StatusFilter) matches(s notification.Status) bool {
	return f == FilterAll || notification.Status(f) == s
}

// Filter is the pure listing projection: status filter plus
// case-insensitive substring search over subject, resolved recipient name
// and resolved recipient address. Ordering is preserved, and both
// recipient variants expose the same {name, address} shape via resolve.
func Filter(items []notification.Notification, status StatusFilter, query string, resolve func(contactID string) (notification.DisplayInfo, bool)) []notification.Notification {
	q := strings.ToLower(strings.TrimSpace(query))

	out := make([]notification.Notification, 0, len(items))
	for _, n := range items {
		if !status.matches(n.Status) {
			continue
		}
		if q != "" {
			info := n.Recipient.Display(resolve)
			if !strings.Contains(strings.ToLower(n.Subject), q) &&
				!strings.Contains(strings.ToLower(info.Name), q) &&
				!strings.Contains(strings.ToLower(info.Address), q) {
				continue
			}
		}
		out = append(out, n)
	}
	return out
}
