package domain

import "time"

// Notification is the single transient message shown by the panel button.
// Generation increases with every Show and identifies the instance its
// auto-dismiss timer belongs to.
type Notification struct {
	Generation uint64        `json:"generation"`
	Message    string        `json:"message"`
	Success    bool          `json:"success"`
	ShownAt    time.Time     `json:"shownAt"`
	Delay      time.Duration `json:"delay"`
}
