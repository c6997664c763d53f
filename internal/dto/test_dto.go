package dto

import (
	"time"

	"placement-tests/internal/domain"
)

// QuestionGroupDTO is the JSON shape of a question group.
type QuestionGroupDTO struct {
	ID               string `json:"id"`
	QuestionCount    int    `json:"questionCount"`
	MarksPerQuestion int    `json:"marksPerQuestion"`
	TotalMarks       int    `json:"totalMarks"`
}

// QuestionDTO is the JSON shape of a question.
type QuestionDTO struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Marks         int      `json:"marks"`
	Difficulty    string   `json:"difficulty,omitempty"`
	Category      string   `json:"category,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

// TestResponse is the JSON shape of a cached test.
type TestResponse struct {
	ID                     string             `json:"id"`
	Title                  string             `json:"title"`
	Subject                string             `json:"subject"`
	Description            string             `json:"description"`
	Category               string             `json:"category"`
	Difficulty             string             `json:"difficulty"`
	Duration               int                `json:"duration"`
	StartTime              *time.Time         `json:"startTime,omitempty"`
	EndTime                *time.Time         `json:"endTime,omitempty"`
	TotalQuestions         int                `json:"totalQuestions"`
	TotalMarks             int                `json:"totalMarks"`
	PassingMarks           int                `json:"passingMarks"`
	QuestionGroups         []QuestionGroupDTO `json:"questionGroups"`
	Status                 string             `json:"status"`
	StudentsAssigned       int                `json:"studentsAssigned"`
	StudentsCompleted      int                `json:"studentsCompleted"`
	AverageScore           float64            `json:"averageScore"`
	AllowRetake            bool               `json:"allowRetake"`
	ShowResultsImmediately bool               `json:"showResultsImmediately"`
	CreatedBy              string             `json:"createdBy"`
	CreatedDate            string             `json:"createdDate"`
	Questions              []QuestionDTO      `json:"questions"`
}

// TestListResponse wraps a list of tests.
type TestListResponse struct {
	Tests []TestResponse `json:"tests"`
	Count int            `json:"count"`
}

// CreateTestRequest is the body of POST /api/tests. Server-owned aggregates are not accepted.
type CreateTestRequest struct {
	ID                     string             `json:"id,omitempty"`
	Title                  string             `json:"title"`
	Subject                string             `json:"subject"`
	Description            string             `json:"description"`
	Category               string             `json:"category"`
	Difficulty             string             `json:"difficulty"`
	Duration               int                `json:"duration"`
	StartTime              *time.Time         `json:"startTime,omitempty"`
	EndTime                *time.Time         `json:"endTime,omitempty"`
	TotalQuestions         int                `json:"totalQuestions"`
	TotalMarks             int                `json:"totalMarks"`
	PassingMarks           int                `json:"passingMarks"`
	QuestionGroups         []QuestionGroupDTO `json:"questionGroups"`
	Status                 string             `json:"status"`
	AllowRetake            bool               `json:"allowRetake"`
	ShowResultsImmediately *bool              `json:"showResultsImmediately"` // absent means true
	CreatedBy              string             `json:"createdBy"`
	Questions              []QuestionDTO      `json:"questions"`
}

// UpdateTestRequest is the body of PATCH /api/tests/:id. Absent fields are left unchanged.
type UpdateTestRequest struct {
	Title                  *string             `json:"title"`
	Subject                *string             `json:"subject"`
	Description            *string             `json:"description"`
	Category               *string             `json:"category"`
	Difficulty             *string             `json:"difficulty"`
	Duration               *int                `json:"duration"`
	StartTime              *time.Time          `json:"startTime"`
	EndTime                *time.Time          `json:"endTime"`
	TotalQuestions         *int                `json:"totalQuestions"`
	TotalMarks             *int                `json:"totalMarks"`
	PassingMarks           *int                `json:"passingMarks"`
	QuestionGroups         *[]QuestionGroupDTO `json:"questionGroups"`
	Status                 *string             `json:"status"`
	AllowRetake            *bool               `json:"allowRetake"`
	ShowResultsImmediately *bool               `json:"showResultsImmediately"`
	Questions              *[]QuestionDTO      `json:"questions"`
}

// SyncResponse is returned by POST /api/tests/sync.
type SyncResponse struct {
	Hydrated bool `json:"hydrated"`
	Count    int  `json:"count"`
}

// ToTest converts the request into a domain test.
func (r CreateTestRequest) ToTest() domain.Test {
	show := true
	if r.ShowResultsImmediately != nil {
		show = *r.ShowResultsImmediately
	}
	return domain.Test{
		ID:                     r.ID,
		Title:                  r.Title,
		Subject:                r.Subject,
		Description:            r.Description,
		Category:               domain.Category(r.Category),
		Difficulty:             domain.Difficulty(r.Difficulty),
		Duration:               r.Duration,
		StartTime:              r.StartTime,
		EndTime:                r.EndTime,
		TotalQuestions:         r.TotalQuestions,
		TotalMarks:             r.TotalMarks,
		PassingMarks:           r.PassingMarks,
		QuestionGroups:         toDomainGroups(r.QuestionGroups),
		Status:                 domain.TestStatus(r.Status),
		AllowRetake:            r.AllowRetake,
		ShowResultsImmediately: show,
		CreatedBy:              r.CreatedBy,
		Questions:              toDomainQuestions(r.Questions),
	}
}

// ToPatch converts the request into a domain patch carrying only the sent fields.
func (r UpdateTestRequest) ToPatch() domain.TestPatch {
	p := domain.TestPatch{
		Title:                  r.Title,
		Subject:                r.Subject,
		Description:            r.Description,
		Duration:               r.Duration,
		StartTime:              r.StartTime,
		EndTime:                r.EndTime,
		TotalQuestions:         r.TotalQuestions,
		TotalMarks:             r.TotalMarks,
		PassingMarks:           r.PassingMarks,
		AllowRetake:            r.AllowRetake,
		ShowResultsImmediately: r.ShowResultsImmediately,
	}
	if r.Category != nil {
		c := domain.Category(*r.Category)
		p.Category = &c
	}
	if r.Difficulty != nil {
		d := domain.Difficulty(*r.Difficulty)
		p.Difficulty = &d
	}
	if r.Status != nil {
		s := domain.TestStatus(*r.Status)
		p.Status = &s
	}
	if r.QuestionGroups != nil {
		groups := toDomainGroups(*r.QuestionGroups)
		p.QuestionGroups = &groups
	}
	if r.Questions != nil {
		questions := toDomainQuestions(*r.Questions)
		p.Questions = &questions
	}
	return p
}

// ToTestResponse converts a domain test into its JSON shape.
func ToTestResponse(t domain.Test) TestResponse {
	groups := make([]QuestionGroupDTO, len(t.QuestionGroups))
	for i, g := range t.QuestionGroups {
		groups[i] = QuestionGroupDTO{ID: g.ID, QuestionCount: g.QuestionCount, MarksPerQuestion: g.MarksPerQuestion, TotalMarks: g.TotalMarks}
	}
	questions := make([]QuestionDTO, len(t.Questions))
	for i, q := range t.Questions {
		options := q.Options
		if options == nil {
			options = []string{}
		}
		questions[i] = QuestionDTO{
			ID:            q.ID,
			Question:      q.Prompt,
			Options:       options,
			CorrectAnswer: q.CorrectOption,
			Marks:         q.Marks,
			Difficulty:    string(q.Difficulty),
			Category:      string(q.Category),
			Explanation:   q.Explanation,
		}
	}
	return TestResponse{
		ID:                     t.ID,
		Title:                  t.Title,
		Subject:                t.Subject,
		Description:            t.Description,
		Category:               string(t.Category),
		Difficulty:             string(t.Difficulty),
		Duration:               t.Duration,
		StartTime:              t.StartTime,
		EndTime:                t.EndTime,
		TotalQuestions:         t.TotalQuestions,
		TotalMarks:             t.TotalMarks,
		PassingMarks:           t.PassingMarks,
		QuestionGroups:         groups,
		Status:                 string(t.Status),
		StudentsAssigned:       t.StudentsAssigned,
		StudentsCompleted:      t.StudentsCompleted,
		AverageScore:           t.AverageScore,
		AllowRetake:            t.AllowRetake,
		ShowResultsImmediately: t.ShowResultsImmediately,
		CreatedBy:              t.CreatedBy,
		CreatedDate:            t.CreatedDate,
		Questions:              questions,
	}
}

// ToTestListResponse converts a slice of domain tests.
func ToTestListResponse(tests []domain.Test) TestListResponse {
	out := make([]TestResponse, len(tests))
	for i, t := range tests {
		out[i] = ToTestResponse(t)
	}
	return TestListResponse{Tests: out, Count: len(out)}
}

func toDomainGroups(groups []QuestionGroupDTO) []domain.QuestionGroup {
	out := make([]domain.QuestionGroup, len(groups))
	for i, g := range groups {
		out[i] = domain.QuestionGroup{ID: g.ID, QuestionCount: g.QuestionCount, MarksPerQuestion: g.MarksPerQuestion, TotalMarks: g.TotalMarks}
	}
	return out
}

func toDomainQuestions(questions []QuestionDTO) []domain.Question {
	out := make([]domain.Question, len(questions))
	for i, q := range questions {
		out[i] = domain.Question{
			ID:            q.ID,
			Prompt:        q.Question,
			Options:       q.Options,
			CorrectOption: q.CorrectAnswer,
			Marks:         q.Marks,
			Difficulty:    domain.Difficulty(q.Difficulty),
			Category:      domain.Category(q.Category),
			Explanation:   q.Explanation,
		}
	}
	return out
}
