package ledger

// Session status values. A session is created open and transitions to
// closed exactly once; there is no way back.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Session is a bounded time window during which attendance may be marked
// for a course.
type Session struct {
	ID        int64  `json:"id"`
	Course    string `json:"course"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time,omitempty"` // empty = no scheduled end
	Status    string `json:"status"`
}

// Record is one attendance mark. At most one record exists per
// (session, student) pair.
type Record struct {
	SessionID int64  `json:"session_id"`
	StudentID string `json:"student_id"`
	Time      string `json:"time"`
	Status    string `json:"status"`
}
