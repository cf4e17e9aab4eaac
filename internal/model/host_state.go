package model

// HostState is the Feedback Governor's per-hostname adaptive politeness
// state.
type HostState struct {
	Host          string `json:"host"`
	CurrentDelay  int64  `json:"currentDelay"`
	SuccessStreak int    `json:"successStreak"`
	LastUpdated   int64  `json:"lastUpdated"`
}

// Clamp keeps CurrentDelay inside [initialMS, maxMS].
func (s *HostState) Clamp(initialMS, maxMS int64) {
	if s.CurrentDelay < initialMS {
		s.CurrentDelay = initialMS
	}
	if s.CurrentDelay > maxMS {
		s.CurrentDelay = maxMS
	}
}
