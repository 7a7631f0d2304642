package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User roles
const (
	RoleAdmin        = "ADMIN"
	RoleCollaborator = "CONGTACVIEN"
	RoleUser         = "USER"
)

// UserProfile is the account shape shared with the web client.
type UserProfile struct {
	ID        uuid.UUID `json:"id" db:"id"`
	FullName  string    `json:"ho_ten" db:"ho_ten"`
	Email     *string   `json:"email,omitempty" db:"email"`
	Phone     *string   `json:"so_dien_thoai,omitempty" db:"so_dien_thoai"`
	Address   *string   `json:"dia_chi,omitempty" db:"dia_chi"`
	Role      string    `json:"role" db:"role"`
	Points    int       `json:"diem_tich_luy" db:"diem_tich_luy"`
	CreatedAt time.Time `json:"ngay_tao" db:"ngay_tao"`
}

// AudienceForRole maps an account role to the notification audience it belongs to.
func AudienceForRole(role string) string {
	switch strings.ToUpper(role) {
	case RoleAdmin:
		return TargetAdmin
	case RoleCollaborator:
		return TargetCollaborator
	default:
		return TargetUser
	}
}
