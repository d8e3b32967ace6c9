package users

import "github.com/mcdev12/roomboard/go/internal/models"

// SignUpRequest represents the data needed to open a hospital account
type SignUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
	HospitalName    string `json:"hospitalName"`
	DepartmentName  string `json:"departmentName"`
}

// userRecord is what users/{id} holds. The hash never leaves this package.
type userRecord struct {
	models.HospitalUser
	PasswordHash string `json:"passwordHash"`
}

const minPasswordLength = 6

const (
	msgEmailRequired      = "이메일을 입력해주세요"
	msgEmailInvalid       = "올바른 이메일 형식이 아닙니다"
	msgPasswordRequired   = "비밀번호를 입력해주세요"
	msgPasswordTooShort   = "비밀번호는 최소 6자 이상이어야 합니다"
	msgPasswordMismatch   = "비밀번호가 일치하지 않습니다"
	msgHospitalRequired   = "병원 이름을 입력해주세요"
	msgDepartmentRequired = "진료과목을 입력해주세요"
)
