package domain

import (
	"fmt"
	"strings"
	"time"
)

// Category is the subject area a test assesses.
type Category string

const (
	CategoryAptitude    Category = "aptitude"
	CategoryCoding      Category = "coding"
	CategoryTechnical   Category = "technical"
	CategoryMathematics Category = "mathematics"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryAptitude, CategoryCoding, CategoryTechnical, CategoryMathematics:
		return true
	}
	return false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// TestStatus is the lifecycle state of a test.
type TestStatus string

const (
	StatusDraft     TestStatus = "draft"
	StatusActive    TestStatus = "active"
	StatusCompleted TestStatus = "completed"
	StatusArchived  TestStatus = "archived"
)

func (s TestStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusCompleted, StatusArchived:
		return true
	}
	return false
}

// DateLayout is the layout of Test.CreatedDate.
const DateLayout = "2006-01-02"

// Test is one assessment definition tracked by the test store.
type Test struct {
	ID          string
	Title       string
	Subject     string
	Description string
	Category    Category
	Difficulty  Difficulty

	Duration  int // minutes
	StartTime *time.Time
	EndTime   *time.Time

	TotalQuestions int
	TotalMarks     int
	PassingMarks   int
	QuestionGroups []QuestionGroup

	Status TestStatus

	// Aggregates owned by the remote side.
	StudentsAssigned  int
	StudentsCompleted int
	AverageScore      float64

	AllowRetake            bool
	ShowResultsImmediately bool

	CreatedBy   string
	CreatedDate string
	Questions   []Question
}

// QuestionGroup is a block of equally weighted questions.
// TotalMarks must equal QuestionCount * MarksPerQuestion; call Recalculate after edits.
type QuestionGroup struct {
	ID               string
	QuestionCount    int
	MarksPerQuestion int
	TotalMarks       int
}

// Recalculate derives TotalMarks from the count and per-question marks.
func (g *QuestionGroup) Recalculate() {
	g.TotalMarks = g.QuestionCount * g.MarksPerQuestion
}

type Question struct {
	ID            string
	Prompt        string
	Options       []string
	CorrectOption int
	Marks         int
	Difficulty    Difficulty
	Category      Category
	Explanation   string
}

// IsActive reports whether students can currently be assigned the test.
func (t Test) IsActive() bool {
	return t.Status == StatusActive
}

// Clone returns a deep copy of t.
func (t Test) Clone() Test {
	c := t
	if t.StartTime != nil {
		start := *t.StartTime
		c.StartTime = &start
	}
	if t.EndTime != nil {
		end := *t.EndTime
		c.EndTime = &end
	}
	if t.QuestionGroups != nil {
		c.QuestionGroups = make([]QuestionGroup, len(t.QuestionGroups))
		copy(c.QuestionGroups, t.QuestionGroups)
	}
	if t.Questions != nil {
		c.Questions = make([]Question, len(t.Questions))
		for i, q := range t.Questions {
			if q.Options != nil {
				q.Options = append(make([]string, 0, len(q.Options)), q.Options...)
			}
			c.Questions[i] = q
		}
	}
	return c
}

// Validate checks the fields a caller controls when creating a test.
func (t Test) Validate() error {
	var errs ValidationErrors

	if strings.TrimSpace(t.Title) == "" {
		errs = append(errs, NewMissingFieldError("title"))
	}
	if !t.Category.Valid() {
		errs = append(errs, NewInvalidValueError("category", t.Category))
	}
	if !t.Difficulty.Valid() {
		errs = append(errs, NewInvalidValueError("difficulty", t.Difficulty))
	}
	if !t.Status.Valid() {
		errs = append(errs, NewInvalidValueError("status", t.Status))
	}
	if t.Duration <= 0 {
		errs = append(errs, NewInvalidValueError("duration", t.Duration))
	}
	errs = append(errs, validateSchedule(t.StartTime, t.EndTime)...)
	errs = append(errs, validateMarks(t.TotalMarks, t.PassingMarks)...)
	errs = append(errs, validateGroups(t.QuestionGroups)...)
	errs = append(errs, validateQuestions(t.Questions)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateSchedule(start, end *time.Time) ValidationErrors {
	if start != nil && end != nil && end.Before(*start) {
		return ValidationErrors{{Field: "endTime", Message: "must not be before startTime"}}
	}
	return nil
}

func validateMarks(total, passing int) ValidationErrors {
	var errs ValidationErrors
	if total < 0 {
		errs = append(errs, NewInvalidValueError("totalMarks", total))
	}
	if passing < 0 || passing > total {
		errs = append(errs, NewOutOfRangeError("passingMarks", passing, 0, total))
	}
	return errs
}

func validateGroups(groups []QuestionGroup) ValidationErrors {
	var errs ValidationErrors
	for i, g := range groups {
		if g.TotalMarks != g.QuestionCount*g.MarksPerQuestion {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("questionGroups[%d].totalMarks", i),
				Message: fmt.Sprintf("must equal %d x %d", g.QuestionCount, g.MarksPerQuestion),
			})
		}
	}
	return errs
}

func validateQuestions(questions []Question) ValidationErrors {
	var errs ValidationErrors
	for i, q := range questions {
		if strings.TrimSpace(q.Prompt) == "" {
			errs = append(errs, NewMissingFieldError(fmt.Sprintf("questions[%d].prompt", i)))
		}
		if len(q.Options) == 0 {
			errs = append(errs, NewMissingFieldError(fmt.Sprintf("questions[%d].options", i)))
			continue
		}
		if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
			errs = append(errs, NewOutOfRangeError(fmt.Sprintf("questions[%d].correctOption", i), q.CorrectOption, 0, len(q.Options)-1))
		}
	}
	return errs
}

// TestPatch carries only the fields a caller intends to change. A nil field is left alone.
// Remote-owned aggregates, identity and authorship are deliberately absent.
type TestPatch struct {
	Title                  *string
	Subject                *string
	Description            *string
	Category               *Category
	Difficulty             *Difficulty
	Duration               *int
	StartTime              *time.Time
	EndTime                *time.Time
	TotalQuestions         *int
	TotalMarks             *int
	PassingMarks           *int
	QuestionGroups         *[]QuestionGroup
	Status                 *TestStatus
	AllowRetake            *bool
	ShowResultsImmediately *bool
	Questions              *[]Question
}

// IsEmpty reports whether the patch changes nothing.
func (p TestPatch) IsEmpty() bool {
	return p == TestPatch{}
}

// Validate checks only the fields present in the patch.
func (p TestPatch) Validate() error {
	var errs ValidationErrors

	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		errs = append(errs, NewMissingFieldError("title"))
	}
	if p.Category != nil && !p.Category.Valid() {
		errs = append(errs, NewInvalidValueError("category", *p.Category))
	}
	if p.Difficulty != nil && !p.Difficulty.Valid() {
		errs = append(errs, NewInvalidValueError("difficulty", *p.Difficulty))
	}
	if p.Status != nil && !p.Status.Valid() {
		errs = append(errs, NewInvalidValueError("status", *p.Status))
	}
	if p.Duration != nil && *p.Duration <= 0 {
		errs = append(errs, NewInvalidValueError("duration", *p.Duration))
	}
	errs = append(errs, validateSchedule(p.StartTime, p.EndTime)...)
	if p.TotalMarks != nil && p.PassingMarks != nil {
		errs = append(errs, validateMarks(*p.TotalMarks, *p.PassingMarks)...)
	}
	if p.QuestionGroups != nil {
		errs = append(errs, validateGroups(*p.QuestionGroups)...)
	}
	if p.Questions != nil {
		errs = append(errs, validateQuestions(*p.Questions)...)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateAgainst checks the cross-field rules the patch touches against the
// record it will be merged into, so a patch carrying only one side of a rule
// is still checked.
func (p TestPatch) ValidateAgainst(current Test) error {
	merged := current.Clone()
	p.ApplyTo(&merged)

	var errs ValidationErrors
	if p.TotalMarks != nil || p.PassingMarks != nil {
		errs = append(errs, validateMarks(merged.TotalMarks, merged.PassingMarks)...)
	}
	if p.StartTime != nil || p.EndTime != nil {
		errs = append(errs, validateSchedule(merged.StartTime, merged.EndTime)...)
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ApplyTo merges the patch into t.
func (p TestPatch) ApplyTo(t *Test) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Subject != nil {
		t.Subject = *p.Subject
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Difficulty != nil {
		t.Difficulty = *p.Difficulty
	}
	if p.Duration != nil {
		t.Duration = *p.Duration
	}
	if p.StartTime != nil {
		start := *p.StartTime
		t.StartTime = &start
	}
	if p.EndTime != nil {
		end := *p.EndTime
		t.EndTime = &end
	}
	if p.TotalQuestions != nil {
		t.TotalQuestions = *p.TotalQuestions
	}
	if p.TotalMarks != nil {
		t.TotalMarks = *p.TotalMarks
	}
	if p.PassingMarks != nil {
		t.PassingMarks = *p.PassingMarks
	}
	if p.QuestionGroups != nil {
		t.QuestionGroups = append([]QuestionGroup{}, (*p.QuestionGroups)...)
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.AllowRetake != nil {
		t.AllowRetake = *p.AllowRetake
	}
	if p.ShowResultsImmediately != nil {
		t.ShowResultsImmediately = *p.ShowResultsImmediately
	}
	if p.Questions != nil {
		// clone through a throwaway Test so option slices are not shared
		t.Questions = Test{Questions: *p.Questions}.Clone().Questions
		if t.Questions == nil {
			t.Questions = []Question{}
		}
	}
}
