package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// QuizQuestion is one question with exactly four options; CorrectAnswer is
// the index of the right option.
type QuizQuestion struct {
	Question      string   `json:"question" validate:"required"`
	Options       []string `json:"options" validate:"required,len=4,dive,required"`
	CorrectAnswer int      `json:"correct_answer" validate:"gte=0,lte=3"`
	Explanation   string   `json:"explanation"`
}

// QuizQuestions is stored as a JSONB column.
type QuizQuestions []QuizQuestion

// Value implements driver.Valuer.
func (q QuizQuestions) Value() (driver.Value, error) {
	return json.Marshal(q)
}

// Scan implements sql.Scanner.
func (q *QuizQuestions) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, q)
	case string:
		return json.Unmarshal([]byte(v), q)
	case nil:
		*q = nil
		return nil
	default:
		return fmt.Errorf("unsupported quiz questions type %T", src)
	}
}

// Quiz is a theory or practice test created by a school manager. Only
// students with an approved enrollment at the school can see it.
type Quiz struct {
	ID               string        `db:"id" json:"id"`
	SchoolID         string        `db:"school_id" json:"school_id"`
	CourseType       CourseType    `db:"course_type" json:"course_type"`
	Title            string        `db:"title" json:"title"`
	Description      string        `db:"description" json:"description"`
	Difficulty       string        `db:"difficulty" json:"difficulty"`
	PassingScore     int           `db:"passing_score" json:"passing_score"`
	TimeLimitMinutes int           `db:"time_limit_minutes" json:"time_limit_minutes"`
	Questions        QuizQuestions `db:"questions" json:"questions"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
}
