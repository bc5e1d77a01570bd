package chat

import (
	"time"
)

const timeLayout = "03:04 PM"

// Clock renders a message timestamp the way rows show it.
func Clock(ts int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ts).In(loc).Format(timeLayout)
}

// Render is the one-line form of an item: "[03:04 PM] text".
func Render(item Item, loc *time.Location) string {
	return "[" + Clock(item.Message.Timestamp, loc) + "] " + item.Message.Text
}
