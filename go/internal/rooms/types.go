package rooms

import "github.com/mcdev12/roomboard/go/internal/models"

// SaveStatusRequest is the submitted status-assignment form
type SaveStatusRequest struct {
	PatientName string `json:"patientName"`
	Memo        string `json:"memo"`
	StatusID    string `json:"statusId"`
	// TimerType is the type the form's duration input was shown for. The
	// selected status wins when it exists.
	TimerType models.TimerType `json:"timerType,omitempty"`
	Minutes   int64            `json:"minutes"`
	Seconds   int64            `json:"seconds"`
}

// DurationSeconds is the countdown length entered in the form
func (r SaveStatusRequest) DurationSeconds() int64 {
	return r.Minutes*60 + r.Seconds
}

// Form is the status-assignment form as prefilled when it opens. It is a
// snapshot: later changes to the room do not reinitialize it.
type Form struct {
	RoomID      string           `json:"roomId"`
	PatientName string           `json:"patientName"`
	Memo        string           `json:"memo"`
	StatusID    string           `json:"statusId"`
	TimerType   models.TimerType `json:"timerType,omitempty"`
	Minutes     int64            `json:"minutes"`
	Seconds     int64            `json:"seconds"`
	Statuses    []models.Status  `json:"statuses"`
}

const (
	msgPatientNameRequired = "환자 이름을 입력해주세요."
	msgStatusRequired      = "상태를 선택해주세요."
	msgDurationTooShort    = "타이머는 최소 1초 이상 설정해주세요."
	msgDurationOutOfRange  = "분은 0 이상, 초는 0에서 59 사이로 입력해주세요."
	msgRoomNameRequired    = "방 이름을 입력해주세요."
)
