package model

// ContactStatus is a stage of the outreach pipeline.
type ContactStatus string

const (
	StatusPending       ContactStatus = "Pending"
	StatusConnected     ContactStatus = "Connected"
	StatusMessaged      ContactStatus = "Messaged"
	StatusReplied       ContactStatus = "Replied"
	StatusMeetingBooked ContactStatus = "Meeting Booked"
	StatusClosed        ContactStatus = "Closed"
	// StatusLost sits outside the ranked pipeline.
	StatusLost ContactStatus = "Lost"
)

// UnrankedStatus is the rank of Lost and of any value outside the enumeration.
const UnrankedStatus = -1

var statusRanks = map[ContactStatus]int{
	StatusPending:       0,
	StatusConnected:     1,
	StatusMessaged:      2,
	StatusReplied:       3,
	StatusMeetingBooked: 4,
	StatusClosed:        5,
}

// Rank returns the pipeline position of s, or UnrankedStatus.
func (s ContactStatus) Rank() int {
	if r, ok := statusRanks[s]; ok {
		return r
	}
	return UnrankedStatus
}

// IsRanked reports whether s takes part in the never-downgrade comparison.
func (s ContactStatus) IsRanked() bool {
	return s.Rank() != UnrankedStatus
}

// IsValid reports whether s is a member of the enumeration, Lost included.
func (s ContactStatus) IsValid() bool {
	return s.IsRanked() || s == StatusLost
}

// AllStatuses lists every accepted status in pipeline order, Lost last.
func AllStatuses() []ContactStatus {
	return []ContactStatus{
		StatusPending,
		StatusConnected,
		StatusMessaged,
		StatusReplied,
		StatusMeetingBooked,
		StatusClosed,
		StatusLost,
	}
}
