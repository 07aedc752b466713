package dto

import (
	"time"

	"github.com/horockey/tailgate/internal/model"
)

type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type Status struct {
	Revision            string `json:"revision"`
	Tailnet             string `json:"tailnet,omitempty"`
	DeviceCount         int    `json:"devices"`
	RouteCount          int    `json:"routes"`
	LastSuccess         string `json:"lastSuccess,omitempty"`
	LastError           string `json:"lastError,omitempty"`
	ConsecutiveFailures int    `json:"consecutiveFailures"`
	CurrentIntervalSec  int64  `json:"currentIntervalSeconds"`
	PublishedVersion    uint64 `json:"publishedVersion"`
}

func NewStatus(st model.LoopStatus) Status {
	res := Status{
		Revision:            st.Revision,
		Tailnet:             st.Tailnet,
		DeviceCount:         st.DeviceCount,
		RouteCount:          st.RouteCount,
		LastError:           st.LastError,
		ConsecutiveFailures: st.ConsecutiveFailures,
		CurrentIntervalSec:  int64(st.CurrentInterval / time.Second),
		PublishedVersion:    st.PublishedVersion,
	}
	if !st.LastSuccess.IsZero() {
		res.LastSuccess = st.LastSuccess.Format(time.RFC3339)
	}
	return res
}
