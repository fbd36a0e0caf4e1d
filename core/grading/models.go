package grading

import (
	"sort"
	"time"
)

// Category is a kind of assessment (quiz, midterm, final...) and its weight in the average.
type Category struct {
	ID     int     `json:"id" db:"id"`
	Name   string  `json:"name" db:"name"`
	Weight float64 `json:"weight" db:"weight"`
}

// Record holds the scores of one learner in one class (i.e. one registration).
type Record struct {
	RegistrationID int              `json:"registration_id"`
	StudentID      int              `json:"student_id"`
	StudentName    string           `json:"student_name"`
	StudentEmail   string           `json:"-"`
	ClassID        int              `json:"class_id"`
	CourseID       int              `json:"course_id"`
	CourseName     string           `json:"course_name"`
	Scores         map[int]*float64 `json:"scores"` // {categoryID: value}; nil value = not entered
}

// Entries lists the record's scores in categories order; missing scores are Absent.
func (r Record) Entries(categories []Category) []ScoreEntry {
	entries := make([]ScoreEntry, 0, len(categories))
	for _, cat := range categories {
		entries = append(entries, ScoreEntry{Weight: cat.Weight, Score: FromPtr(r.Scores[cat.ID])})
	}
	return entries
}

type ReportRow struct {
	Record Record `json:"record"`
	Result Result `json:"result"`
}

// FinalResult is the official result of a registration, as submitted to the backend.
type FinalResult struct {
	RegistrationID int       `json:"registration_id" db:"regis_id"`
	CourseID       int       `json:"course_id" db:"course_id"`
	CourseName     string    `json:"course_name" db:"course_name"`
	RoundedAverage float64   `json:"rounded_average" db:"rounded_average"`
	VerdictCode    Verdict   `json:"verdict_code" db:"verdict_code"`
	Tier           Tier      `json:"tier" db:"tier"`
	FinalizedAt    time.Time `json:"finalized_at" db:"finalized_at"`
}

type PassRate struct {
	CourseID   int     `json:"course_id"`
	CourseName string  `json:"course_name"`
	Finalized  int     `json:"finalized"`
	Passed     int     `json:"passed"`
	Rate       float64 `json:"rate"` // percent, 2 decimals
}

// DraftKey scopes a draft to the teacher editing a class score sheet.
type DraftKey struct {
	TeacherID int
	ClassID   int
}

// Draft is a not-yet-saved score sheet: raw form values by registration then category.
type Draft struct {
	Key     DraftKey               `json:"-"`
	Values  map[int]map[int]string `json:"values"`
	SavedAt time.Time              `json:"saved_at"`
}

func sortRows(rows []ReportRow, byAverage, ascending bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if byAverage && a.Result.Average != b.Result.Average {
			if ascending {
				return a.Result.Average < b.Result.Average
			}
			return a.Result.Average > b.Result.Average
		}
		if ascending || byAverage {
			return a.Record.StudentName < b.Record.StudentName
		}
		return a.Record.StudentName > b.Record.StudentName
	})
}
