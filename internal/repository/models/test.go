package models

import (
	"database/sql"
)

// TestsTable is the remote table mirrored by the test store.
const TestsTable = "tests"

// TestRow is the flat remote shape of a test. Nullable columns fall back to
// defaults when mapped into the domain.
type TestRow struct {
	ID                     string                  `db:"id"`
	Title                  string                  `db:"title"`
	Subject                sql.NullString          `db:"subject"`
	Description            sql.NullString          `db:"description"`
	Category               string                  `db:"category"`
	Difficulty             string                  `db:"difficulty"`
	Duration               int                     `db:"duration"`
	StartTime              sql.NullTime            `db:"start_time"`
	EndTime                sql.NullTime            `db:"end_time"`
	TotalQuestions         sql.NullInt64           `db:"total_questions"`
	TotalMarks             sql.NullInt64           `db:"total_marks"`
	PassingMarks           sql.NullInt64           `db:"passing_marks"`
	QuestionGroups         JSONList[QuestionGroup] `db:"question_groups"`
	Status                 string                  `db:"status"`
	StudentsAssigned       sql.NullInt64           `db:"students_assigned"`
	StudentsCompleted      sql.NullInt64           `db:"students_completed"`
	AverageScore           sql.NullFloat64         `db:"average_score"`
	AllowRetake            sql.NullBool            `db:"allow_retake"`
	ShowResultsImmediately sql.NullBool            `db:"show_results_immediately"`
	CreatedBy              sql.NullString          `db:"created_by"`
	Questions              JSONList[Question]      `db:"questions"`
	CreatedAt              sql.NullTime            `db:"created_at"`
}

// QuestionGroup is the JSON shape of one entry in the question_groups column.
type QuestionGroup struct {
	ID               string `json:"id"`
	QuestionCount    int    `json:"question_count"`
	MarksPerQuestion int    `json:"marks_per_question"`
	TotalMarks       int    `json:"total_marks"`
}

// Question is the JSON shape of one entry in the questions column.
type Question struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Marks         int      `json:"marks"`
	Difficulty    string   `json:"difficulty"`
	Category      string   `json:"category"`
	Explanation   string   `json:"explanation,omitempty"`
}

// Column names of the tests table, in insert order.
var TestColumns = []string{
	"id", "title", "subject", "description", "category", "difficulty", "duration",
	"start_time", "end_time", "total_questions", "total_marks", "passing_marks",
	"question_groups", "status", "students_assigned", "students_completed",
	"average_score", "allow_retake", "show_results_immediately", "created_by",
	"questions", "created_at",
}

// ServerOwnedColumns are maintained by the remote side and never written by clients.
var ServerOwnedColumns = map[string]bool{
	"students_assigned":  true,
	"students_completed": true,
	"average_score":      true,
}
