package models

// Section groups rooms and status templates inside a department
type Section struct {
	ID           string            `json:"id"`
	HospitalID   string            `json:"hospitalId"`
	DepartmentID string            `json:"departmentId"`
	Name         string            `json:"name"`
	CreatedAt    int64             `json:"createdAt"`
	Rooms        map[string]Room   `json:"rooms,omitempty"`
	Statuses     map[string]Status `json:"statuses,omitempty"`
}

// Room holds one patient's current status and timer
type Room struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PatientName string `json:"patientName"`
	Memo        string `json:"memo,omitempty"`
	StatusID    string `json:"statusId"`
	// StatusColor is copied from the status at assignment time.
	StatusColor string `json:"statusColor"`
	Timer       *Timer `json:"timer,omitempty"`
	CreatedAt   int64  `json:"createdAt"`
}

// Status is a reusable state template scoped to one section
type Status struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	TimerType  TimerType `json:"timerType"`
	TargetTime int64     `json:"targetTime,omitempty"`
	Color      string    `json:"color"`
	SectionID  string    `json:"sectionId"`
}

// Spec returns the timer spec a room gets when assigned this status. A
// positive target overrides the template's countdown default.
func (s Status) Spec(target int64) TimerSpec {
	if s.TimerType == TimerTypeCountup {
		return Countup{}
	}
	if target <= 0 {
		target = s.TargetTime
	}
	return Countdown{TargetTime: target}
}
