package model

type UserRole string

const (
	Interviewer UserRole = "interviewer"
	Admin       UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel

	Name     string   `gorm:"size:100" json:"name"`
	Email    string   `gorm:"size:191;uniqueIndex" json:"email"`
	Password string   `gorm:"size:100" json:"-"`
	Role     UserRole `gorm:"size:20;default:interviewer" json:"role"`
}

func (User) TableName() string {
	return "users"
}
