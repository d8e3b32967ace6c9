package models

// Role of a hospital account
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// HospitalUser is the account record stored under users/{id}
type HospitalUser struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	HospitalID     string `json:"hospitalId"`
	DepartmentID   string `json:"departmentId"`
	Role           Role   `json:"role"`
	HospitalName   string `json:"hospitalName"`
	DepartmentName string `json:"departmentName"`
	CreatedAt      int64  `json:"createdAt"`
}

// Hospital is created at sign-up and rarely mutated
type Hospital struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Departments map[string]Department `json:"departments"`
	CreatedAt   int64                 `json:"createdAt"`
}

type Department struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserHospital is the resolved scope of an account
type UserHospital struct {
	HospitalID     string `json:"hospitalId"`
	DepartmentID   string `json:"departmentId"`
	HospitalName   string `json:"hospitalName"`
	DepartmentName string `json:"departmentName"`
}

// Scope is the hospital/department pair every store path is rooted in
type Scope struct {
	HospitalID   string `json:"hospitalId"`
	DepartmentID string `json:"departmentId"`
}

func (s Scope) Valid() bool {
	return s.HospitalID != "" && s.DepartmentID != ""
}
