package models

import "time"

// CourseType distinguishes the parts of the driving curriculum.
type CourseType string

const (
	CourseTypeTheory  CourseType = "theory"
	CourseTypeParking CourseType = "park"
	CourseTypeRoad    CourseType = "road"
)

// IsValidCourseType reports whether the course type is known.
func IsValidCourseType(t CourseType) bool {
	return t == CourseTypeTheory || t == CourseTypeParking || t == CourseTypeRoad
}

// Session is a scheduled lesson between a teacher and an approved student.
type Session struct {
	ID              string     `db:"id" json:"id"`
	SchoolID        string     `db:"school_id" json:"school_id"`
	TeacherID       string     `db:"teacher_id" json:"teacher_id"`
	StudentID       string     `db:"student_id" json:"student_id"`
	CourseType      CourseType `db:"course_type" json:"course_type"`
	ScheduledAt     time.Time  `db:"scheduled_at" json:"scheduled_at"`
	DurationMinutes int        `db:"duration_minutes" json:"duration_minutes"`
	Location        string     `db:"location" json:"location"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// SessionDetail adds participant names for listings.
type SessionDetail struct {
	Session
	TeacherFirstName string `db:"teacher_first_name" json:"teacher_first_name"`
	TeacherLastName  string `db:"teacher_last_name" json:"teacher_last_name"`
	StudentFirstName string `db:"student_first_name" json:"student_first_name"`
	StudentLastName  string `db:"student_last_name" json:"student_last_name"`
}
