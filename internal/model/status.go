package model

import "time"

// LoopStatus is the watch loop's view of itself, served read-only
// by the delivery controller.
type LoopStatus struct {
	Revision            string
	Tailnet             string
	DeviceCount         int
	RouteCount          int
	LastSuccess         time.Time
	LastError           string
	ConsecutiveFailures int
	CurrentInterval     time.Duration
	PublishedVersion    uint64
}
