package models

import (
	"strings"
	"time"
)

// Roles understood by the platform.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// User is an account of any role.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:150;uniqueIndex;not null" json:"username"`
	FirstName    string    `gorm:"size:150" json:"first_name"`
	LastName     string    `gorm:"size:150" json:"last_name"`
	Email        string    `gorm:"size:254;uniqueIndex;not null" json:"email"`
	RUT          *string   `gorm:"column:rut;size:12;uniqueIndex" json:"rut"`
	Role         string    `gorm:"size:16;not null;index" json:"role"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FullName joins first and last name, falling back to the username.
func (u User) FullName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return u.Username
	}
	return name
}

// RUTValue returns the stored RUT or an empty string.
func (u User) RUTValue() string {
	if u.RUT == nil {
		return ""
	}
	return *u.RUT
}

// TeacherProfile carries teacher specific data.
type TeacherProfile struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Specialty string    `gorm:"size:120" json:"specialty"`
	CreatedAt time.Time `json:"created_at"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// AdminProfile marks an administrator account.
type AdminProfile struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
