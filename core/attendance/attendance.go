// Package attendance handles the rollcall of class sessions.
package attendance

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/anquinko/academia/core"
	"github.com/anquinko/academia/core/user"
)

var (
	ErrNotFound           = errors.New("session not found")
	ErrClassNotFound      = errors.New("class not found")
	ErrIncompleteRollcall = core.NewConflictError("every learner of the class must be marked present or absent")
)

type Session struct {
	ID      int       `json:"id" db:"id"`
	ClassID int       `json:"class_id" db:"class_id"`
	Date    time.Time `json:"session_date" db:"session_date"`
	Content string    `json:"session_content" db:"session_content"`
	Shift   int       `json:"shift" db:"shift"`
}

// Sheet is the rollcall of a session: {studentID: present}, nil when not marked yet.
type Sheet struct {
	SessionID int           `json:"session_id"`
	Marks     map[int]*bool `json:"marks"`
}

// Complete reports whether every enrolled learner has been marked.
func (s Sheet) Complete(enrolled []int) bool {
	for _, id := range enrolled {
		if mark, ok := s.Marks[id]; !ok || mark == nil {
			return false
		}
	}
	return true
}

type (
	Repository interface {
		GetSession(ctx context.Context, id int) (Session, error)
		// QueryEnrolled returns the IDs of the learners registered to a class.
		QueryEnrolled(ctx context.Context, classID int) ([]int, error)
		// SaveMarks replaces the rollcall of a session.
		SaveMarks(ctx context.Context, sessionID int, marks map[int]bool) error
		GetMarks(ctx context.Context, sessionID int) (map[int]bool, error)
		// GetClassTeacher returns the ID of the teacher of a class, or ErrClassNotFound.
		GetClassTeacher(ctx context.Context, classID int) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authorize fails with core.ErrForbidden unless usr teaches the class of the session or is an admin.
func (svc *Service) Authorize(ctx context.Context, usr user.User, sessionID int) error {
	sess, err := svc.repo.GetSession(ctx, sessionID)
	if err != nil {
		return errors.Wrap(err, "getting session")
	}
	teacherID, err := svc.repo.GetClassTeacher(ctx, sess.ClassID)
	if err != nil {
		return errors.Wrap(err, "getting class teacher")
	}
	if !usr.TeachesClass(teacherID) {
		return core.ErrForbidden
	}
	return nil
}

// Save stores a complete rollcall of the session.
func (svc *Service) Save(ctx context.Context, sheet Sheet) error {
	sess, err := svc.repo.GetSession(ctx, sheet.SessionID)
	if err != nil {
		return errors.Wrap(err, "getting session")
	}
	enrolled, err := svc.repo.QueryEnrolled(ctx, sess.ClassID)
	if err != nil {
		return errors.Wrap(err, "querying enrolled learners")
	}

	known := make(map[int]bool, len(enrolled))
	for _, id := range enrolled {
		known[id] = true
	}
	var flds []core.FieldError
	for id := range sheet.Marks {
		if !known[id] {
			flds = append(flds, core.FieldError{Field: "marks." + strconv.Itoa(id), Error: "learner is not registered to this class"})
		}
	}
	if flds != nil {
		sort.Slice(flds, func(i, j int) bool { return flds[i].Field < flds[j].Field })
		return core.NewValidationError(nil, flds...)
	}
	if !sheet.Complete(enrolled) {
		return ErrIncompleteRollcall
	}

	marks := make(map[int]bool, len(sheet.Marks))
	for id, present := range sheet.Marks {
		marks[id] = *present
	}
	return errors.Wrap(svc.repo.SaveMarks(ctx, sess.ID, marks), "saving rollcall")
}

// Get returns the rollcall of a session; learners not marked yet have a nil mark.
func (svc *Service) Get(ctx context.Context, sessionID int) (Sheet, error) {
	sess, err := svc.repo.GetSession(ctx, sessionID)
	if err != nil {
		return Sheet{}, errors.Wrap(err, "getting session")
	}
	enrolled, err := svc.repo.QueryEnrolled(ctx, sess.ClassID)
	if err != nil {
		return Sheet{}, errors.Wrap(err, "querying enrolled learners")
	}
	marks, err := svc.repo.GetMarks(ctx, sess.ID)
	if err != nil {
		return Sheet{}, errors.Wrap(err, "getting rollcall")
	}

	sheet := Sheet{SessionID: sess.ID, Marks: make(map[int]*bool, len(enrolled))}
	for _, id := range enrolled {
		if present, ok := marks[id]; ok {
			sheet.Marks[id] = &present
		} else {
			sheet.Marks[id] = nil
		}
	}
	return sheet, nil
}
