package dispatch

import "errors"

// Status classifies what happened to a reminder during one scan cycle.
type Status string

const (
	StatusDelivered            Status = "delivered"
	StatusSendFailed           Status = "send_failed"
	StatusSkippedBadTime       Status = "skipped_bad_time"
	StatusSkippedNoUser        Status = "skipped_no_user"
	StatusSkippedNoCredentials Status = "skipped_no_credentials"
	StatusSkippedClaimError    Status = "skipped_claim_error"
	StatusSkippedCancelled     Status = "skipped_cancelled"
	StatusContended            Status = "contended"
)

var (
	ErrCycleCancelled = errors.New("scan cycle cancelled before send")
	ErrSendPanicked   = errors.New("send panicked")
)

// Outcome is the result of processing a single reminder.
type Outcome struct {
	ReminderID string
	Status     Status
	Err        error
	Recipient  string
	Simulated  bool
}

// Skipped reports whether the reminder was left pending without a send attempt.
func (o Outcome) Skipped() bool {
	switch o.Status {
	case StatusSkippedBadTime, StatusSkippedNoUser, StatusSkippedNoCredentials,
		StatusSkippedClaimError, StatusSkippedCancelled:
		return true
	}
	return false
}

// Summary aggregates the outcomes of one scan cycle.
//
// Simulated counts deliveries made by a log-only transport; they are also
// counted in Dispatched.
type Summary struct {
	Dispatched int       `json:"dispatched"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Contended  int       `json:"contended"`
	Simulated  int       `json:"simulated"`
	Outcomes   []Outcome `json:"-"`
}

func (s *Summary) add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)

	switch {
	case o.Status == StatusDelivered:
		s.Dispatched++
		if o.Simulated {
			s.Simulated++
		}
	case o.Status == StatusSendFailed:
		s.Failed++
	case o.Status == StatusContended:
		s.Contended++
	case o.Skipped():
		s.Skipped++
	}
}
