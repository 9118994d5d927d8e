package models

import (
	"fmt"
	"time"
)

// Course is a school class identified by level and letter.
type Course struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Level     int       `gorm:"not null;uniqueIndex:idx_course_level_letter" json:"level"`
	Letter    string    `gorm:"size:1;not null;uniqueIndex:idx_course_level_letter" json:"letter"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName renders the course as shown to users.
func (c Course) DisplayName() string {
	return fmt.Sprintf("%d° Básico %s", c.Level, c.Letter)
}

// Subject is a school subject.
type Subject struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:120;not null" json:"name"`
	Code      string    `gorm:"size:32;not null;uniqueIndex" json:"code"`
	Slug      string    `gorm:"size:140;not null;uniqueIndex" json:"slug"`
	Icon      string    `gorm:"size:64" json:"icon"`
	CreatedAt time.Time `json:"created_at"`
}

// Enrollment places a student in a course.
type Enrollment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	StudentID  uint      `gorm:"not null;uniqueIndex:idx_enrollment_student_course" json:"student_id"`
	CourseID   uint      `gorm:"not null;uniqueIndex:idx_enrollment_student_course" json:"course_id"`
	EnrolledAt time.Time `gorm:"not null" json:"enrolled_at"`
	Student    User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
	Course     Course    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"course"`
}

// TeacherAssignment links a teacher to a subject they teach.
type TeacherAssignment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TeacherID uint      `gorm:"not null;uniqueIndex:idx_teacher_subject" json:"teacher_id"`
	SubjectID uint      `gorm:"not null;uniqueIndex:idx_teacher_subject" json:"subject_id"`
	CreatedAt time.Time `json:"created_at"`
	Teacher   User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"teacher"`
	Subject   Subject   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"subject"`
}

// ReinforcementGroup is the support group of a grade level.
type ReinforcementGroup struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Level            int       `gorm:"not null;uniqueIndex" json:"level"`
	MathTeacherID    *uint     `json:"math_teacher_id"`
	EnglishTeacherID *uint     `json:"english_teacher_id"`
	CreatedAt        time.Time `json:"created_at"`
	MathTeacher      *User     `gorm:"constraint:OnDelete:SET NULL" json:"math_teacher,omitempty"`
	EnglishTeacher   *User     `gorm:"constraint:OnDelete:SET NULL" json:"english_teacher,omitempty"`
	Members          []User    `gorm:"many2many:reinforcement_group_members" json:"members,omitempty"`
}
