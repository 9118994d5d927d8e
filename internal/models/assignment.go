package models

import "time"

// ActivityAssignment makes an activity available to a student.
type ActivityAssignment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ActivityID      uint      `gorm:"not null;uniqueIndex:idx_assignment_activity_student" json:"activity_id"`
	StudentID       uint      `gorm:"not null;uniqueIndex:idx_assignment_activity_student;index" json:"student_id"`
	AttemptsAllowed *int      `json:"attempts_allowed"`
	AssignedAt      time.Time `gorm:"not null" json:"assigned_at"`
	Activity        Activity  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student         User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// MaxAttempts resolves the attempt limit for this student; zero means unlimited.
func (a ActivityAssignment) MaxAttempts(activity Activity) int {
	if a.AttemptsAllowed != nil {
		return *a.AttemptsAllowed
	}
	if activity.UnlimitedAttempts {
		return 0
	}
	return activity.AttemptsMax
}
