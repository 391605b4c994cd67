package notification

import "fmt"

// Copy picks the notification text for the count-th capture of the day.
// Counts below one are treated as the first capture.
func Copy(eventName string, count int) Message {
	switch {
	case count <= 1:
		return Message{
			Title:    "First capture today ✨",
			Subtitle: eventName,
			Body:     "Nice start! Tap to see it on your Soonlist.",
		}
	case count == 2:
		return Message{
			Title:    "2 captures today 🙌",
			Subtitle: eventName,
			Body:     "Two for two. Your plans are taking shape.",
		}
	case count == 3:
		return Message{
			Title:    "3 captures today 🔥",
			Subtitle: eventName,
			Body:     "Three in one day. You're on a roll!",
		}
	default:
		return Message{
			Title:    fmt.Sprintf("%d captures today 🎉", count),
			Subtitle: eventName,
			Body:     fmt.Sprintf("That's %d events saved today. Your calendar thanks you.", count),
		}
	}
}
