package chat

import (
	"fmt"
	"strings"
	"time"
)

// Relative renders a timestamp token the platform displays as relative time
// ("in 3 hours", "2 hours ago").
func Relative(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}

// Absolute renders a timestamp token displayed as a full local date-time.
func Absolute(t time.Time) string {
	return fmt.Sprintf("<t:%d:f>", t.Unix())
}

// Mention renders a user ping.
func Mention(userID string) string {
	return fmt.Sprintf("<@%s>", userID)
}

// PingList renders mentions for every roster member not on vacation, or a
// placeholder when nobody is pingable.
func PingList(roster []string, onVacation func(string) bool) string {
	var pings []string
	for _, id := range roster {
		if !onVacation(id) {
			pings = append(pings, Mention(id))
		}
	}
	if len(pings) == 0 {
		return "*(No active users)*"
	}
	return strings.Join(pings, " ")
}
