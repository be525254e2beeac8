package listeners

import "github.com/danmu-go/danmu-go/src/pkg/events"

const (
	ListenStart events.EventType = "ListenStart"
	ListenStop  events.EventType = "ListenStop"
	LiveStart   events.EventType = "LiveStart"
	LiveEnd     events.EventType = "LiveEnd"
)
