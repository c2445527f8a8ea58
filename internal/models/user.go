package models

// User represents an authenticated customer.
type User struct {
	BaseModel
	FirstName    string        `json:"first_name"`
	LastName     string        `json:"last_name"`
	Email        string        `gorm:"uniqueIndex" json:"email"`
	PasswordHash string        `json:"-"`
	ProfilePhoto string        `json:"profile_photo"`
	Addresses    []UserAddress `json:"addresses,omitempty"`
	Orders       []Order       `json:"orders,omitempty"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Admin is a back-office operator. Admins never share the users table.
type Admin struct {
	BaseModel
	Username     string `gorm:"uniqueIndex" json:"username"`
	DisplayName  string `json:"display_name"`
	PasswordHash string `json:"-"`
}
