package model

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered account. PasswordHash and DeletedAt are
// never serialized into API responses.
type User struct {
	ID           string     `json:"id"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Email        string     `json:"email"`
	PhoneNumber  string     `json:"phoneNumber"`
	PasswordHash string     `json:"-"`
	Passport     string     `json:"passport"`
	IDImageFront string     `json:"idImageFront"`
	IDImageBack  string     `json:"idImageBack"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	DeletedAt    *time.Time `json:"-"`
}

// RegisterRequest carries the multipart form fields for registration.
// Identity document files are handled separately by the upload store.
type RegisterRequest struct {
	FirstName   string `form:"firstName" binding:"required"`
	LastName    string `form:"lastName" binding:"required"`
	Email       string `form:"email" binding:"required,email"`
	PhoneNumber string `form:"phoneNumber" binding:"required"`
	Password    string `form:"password" binding:"required,min=6"`
}

// UpdateUserRequest is the allow-list of fields a user may change on their
// own profile. Pointers allow partial updates.
type UpdateUserRequest struct {
	FirstName   *string `form:"firstName"`
	LastName    *string `form:"lastName"`
	Email       *string `form:"email" binding:"omitempty,email"`
	PhoneNumber *string `form:"phoneNumber"`
	Password    *string `form:"password" binding:"omitempty,min=6"`
}

// AdminUpdateUserRequest extends the self-update allow-list with role.
type AdminUpdateUserRequest struct {
	UpdateUserRequest
	Role *string `form:"role" binding:"omitempty,oneof=user admin"`
}

// DocumentFilenames holds the generated storage names of uploaded identity
// documents. Empty string means the field was not present in the request.
type DocumentFilenames struct {
	Passport     string
	IDImageFront string
	IDImageBack  string
}

// LoginUserInfo is the reduced projection returned alongside a token.
type LoginUserInfo struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// LoginInfo builds the reduced projection for login responses.
func (u *User) LoginInfo() LoginUserInfo {
	return LoginUserInfo{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}
