package store

import (
	"database/sql"
	"time"

	"placement-tests/internal/domain"
	"placement-tests/internal/repository/models"
	"placement-tests/internal/util"
)

// toTest maps a remote row into the local shape, filling defaults for
// absent columns. now supplies the created date when the row has none.
func toTest(row models.TestRow, now time.Time) domain.Test {
	t := domain.Test{
		ID:                row.ID,
		Title:             row.Title,
		Subject:           row.Subject.String,
		Description:       row.Description.String,
		Category:          domain.Category(row.Category),
		Difficulty:        domain.Difficulty(row.Difficulty),
		Duration:          row.Duration,
		StartTime:         util.NullTimeToPtr(row.StartTime),
		EndTime:           util.NullTimeToPtr(row.EndTime),
		TotalQuestions:    int(row.TotalQuestions.Int64),
		TotalMarks:        int(row.TotalMarks.Int64),
		PassingMarks:      int(row.PassingMarks.Int64),
		QuestionGroups:    toQuestionGroups(row.QuestionGroups),
		Status:            domain.TestStatus(row.Status),
		StudentsAssigned:  int(row.StudentsAssigned.Int64),
		StudentsCompleted: int(row.StudentsCompleted.Int64),
		AverageScore:      row.AverageScore.Float64,
		AllowRetake:       row.AllowRetake.Valid && row.AllowRetake.Bool,
		// only NULL falls back to the default; an explicit false is kept
		ShowResultsImmediately: !row.ShowResultsImmediately.Valid || row.ShowResultsImmediately.Bool,
		CreatedBy:              row.CreatedBy.String,
		Questions:              toQuestions(row.Questions),
	}

	if row.CreatedAt.Valid {
		t.CreatedDate = row.CreatedAt.Time.Format(domain.DateLayout)
	} else {
		t.CreatedDate = now.Format(domain.DateLayout)
	}
	return t
}

// toRow maps a local test into the remote shape used for inserts.
// Server-owned aggregates and created_at are left NULL for the remote side to fill.
func toRow(t domain.Test) models.TestRow {
	return models.TestRow{
		ID:                     t.ID,
		Title:                  t.Title,
		Subject:                util.StringToNullString(t.Subject),
		Description:            util.StringToNullString(t.Description),
		Category:               string(t.Category),
		Difficulty:             string(t.Difficulty),
		Duration:               t.Duration,
		StartTime:              util.TimePtrToNullTime(t.StartTime),
		EndTime:                util.TimePtrToNullTime(t.EndTime),
		TotalQuestions:         nullInt(t.TotalQuestions),
		TotalMarks:             nullInt(t.TotalMarks),
		PassingMarks:           nullInt(t.PassingMarks),
		QuestionGroups:         fromQuestionGroups(t.QuestionGroups),
		Status:                 string(t.Status),
		AllowRetake:            nullBool(t.AllowRetake),
		ShowResultsImmediately: nullBool(t.ShowResultsImmediately),
		CreatedBy:              util.StringToNullString(t.CreatedBy),
		Questions:              fromQuestions(t.Questions),
	}
}

// patchColumns maps a patch into the columns it changes, and nothing else.
func patchColumns(p domain.TestPatch) map[string]any {
	cols := make(map[string]any)
	if p.Title != nil {
		cols["title"] = *p.Title
	}
	if p.Subject != nil {
		cols["subject"] = util.StringToNullString(*p.Subject)
	}
	if p.Description != nil {
		cols["description"] = util.StringToNullString(*p.Description)
	}
	if p.Category != nil {
		cols["category"] = string(*p.Category)
	}
	if p.Difficulty != nil {
		cols["difficulty"] = string(*p.Difficulty)
	}
	if p.Duration != nil {
		cols["duration"] = *p.Duration
	}
	if p.StartTime != nil {
		cols["start_time"] = util.TimePtrToNullTime(p.StartTime)
	}
	if p.EndTime != nil {
		cols["end_time"] = util.TimePtrToNullTime(p.EndTime)
	}
	if p.TotalQuestions != nil {
		cols["total_questions"] = nullInt(*p.TotalQuestions)
	}
	if p.TotalMarks != nil {
		cols["total_marks"] = nullInt(*p.TotalMarks)
	}
	if p.PassingMarks != nil {
		cols["passing_marks"] = nullInt(*p.PassingMarks)
	}
	if p.QuestionGroups != nil {
		cols["question_groups"] = fromQuestionGroups(*p.QuestionGroups)
	}
	if p.Status != nil {
		cols["status"] = string(*p.Status)
	}
	if p.AllowRetake != nil {
		cols["allow_retake"] = nullBool(*p.AllowRetake)
	}
	if p.ShowResultsImmediately != nil {
		cols["show_results_immediately"] = nullBool(*p.ShowResultsImmediately)
	}
	if p.Questions != nil {
		cols["questions"] = fromQuestions(*p.Questions)
	}
	return cols
}

func toQuestionGroups(groups models.JSONList[models.QuestionGroup]) []domain.QuestionGroup {
	out := make([]domain.QuestionGroup, len(groups))
	for i, g := range groups {
		out[i] = domain.QuestionGroup{
			ID:               g.ID,
			QuestionCount:    g.QuestionCount,
			MarksPerQuestion: g.MarksPerQuestion,
			TotalMarks:       g.TotalMarks,
		}
	}
	return out
}

func fromQuestionGroups(groups []domain.QuestionGroup) models.JSONList[models.QuestionGroup] {
	out := make(models.JSONList[models.QuestionGroup], len(groups))
	for i, g := range groups {
		out[i] = models.QuestionGroup{
			ID:               g.ID,
			QuestionCount:    g.QuestionCount,
			MarksPerQuestion: g.MarksPerQuestion,
			TotalMarks:       g.TotalMarks,
		}
	}
	return out
}

func toQuestions(questions models.JSONList[models.Question]) []domain.Question {
	out := make([]domain.Question, len(questions))
	for i, q := range questions {
		options := q.Options
		if options == nil {
			options = []string{}
		}
		out[i] = domain.Question{
			ID:            q.ID,
			Prompt:        q.Question,
			Options:       append([]string{}, options...),
			CorrectOption: q.CorrectAnswer,
			Marks:         q.Marks,
			Difficulty:    domain.Difficulty(q.Difficulty),
			Category:      domain.Category(q.Category),
			Explanation:   q.Explanation,
		}
	}
	return out
}

func fromQuestions(questions []domain.Question) models.JSONList[models.Question] {
	out := make(models.JSONList[models.Question], len(questions))
	for i, q := range questions {
		out[i] = models.Question{
			ID:            q.ID,
			Question:      q.Prompt,
			Options:       append([]string{}, q.Options...),
			CorrectAnswer: q.CorrectOption,
			Marks:         q.Marks,
			Difficulty:    string(q.Difficulty),
			Category:      string(q.Category),
			Explanation:   q.Explanation,
		}
	}
	return out
}

func nullInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: true}
}

func nullBool(v bool) sql.NullBool {
	return sql.NullBool{Bool: v, Valid: true}
}
