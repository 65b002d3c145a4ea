package store

// Cycle statuses.
const (
	CycleOK      = "ok"
	CyclePartial = "partial"
	CycleFailed  = "failed"
)

// Cycle is one row of the poll log. Times are Unix milliseconds.
type Cycle struct {
	ID               string `json:"id"`
	StartedAt        int64  `json:"started_at"`
	FinishedAt       int64  `json:"finished_at"`
	Status           string `json:"status"`
	CoursesOK        int    `json:"courses_ok"`
	CoursesFailed    int    `json:"courses_failed"`
	CourseUpdates    int    `json:"course_updates"`
	Tracked          int    `json:"tracked"`
	Added            int    `json:"added"`
	Modified         int    `json:"modified"`
	Dropped          int    `json:"dropped"`
	DeliveryFailures int    `json:"delivery_failures"`
	Error            string `json:"error,omitempty"`
}

// Delivery is one notification attempt to one destination.
type Delivery struct {
	ID        string `json:"id"`
	CycleID   string `json:"cycle_id,omitempty"`
	Channel   string `json:"channel"`
	Platform  string `json:"platform"`
	Recipient string `json:"recipient,omitempty"`
	Kind      string `json:"kind"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	SentAt    int64  `json:"sent_at"`
}
