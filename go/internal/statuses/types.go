package statuses

import "github.com/mcdev12/roomboard/go/internal/models"

// CreateStatusRequest defines the input for creating a status template
type CreateStatusRequest struct {
	Name       string           `json:"name"`
	TimerType  models.TimerType `json:"timerType"`
	TargetTime int64            `json:"targetTime,omitempty"`
	Color      string           `json:"color"`
}

// UpdateStatusRequest is a partial update; nil fields are left untouched
type UpdateStatusRequest struct {
	Name       *string           `json:"name,omitempty"`
	TimerType  *models.TimerType `json:"timerType,omitempty"`
	TargetTime *int64            `json:"targetTime,omitempty"`
	Color      *string           `json:"color,omitempty"`
}

func (r UpdateStatusRequest) fields() map[string]any {
	fields := make(map[string]any)
	if r.Name != nil {
		fields["name"] = *r.Name
	}
	if r.TimerType != nil {
		fields["timerType"] = string(*r.TimerType)
	}
	if r.TargetTime != nil {
		fields["targetTime"] = *r.TargetTime
	}
	if r.Color != nil {
		fields["color"] = *r.Color
	}
	return fields
}

const (
	msgNameRequired     = "상태 이름을 입력해주세요."
	msgInvalidTimerType = "타이머 종류를 선택해주세요."
	msgNegativeTarget   = "타이머 시간은 0초 이상이어야 합니다."
)
