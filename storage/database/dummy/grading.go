package dummydb

import (
	"context"
	"sort"

	"github.com/anquinko/academia/core/grading"
)

type gradingRepository struct {
	db *DB
}

var (
	_ grading.Repository = (*gradingRepository)(nil)
	_ grading.DraftStore = (*gradingRepository)(nil)
)

func NewGradingRepository(db *DB) *gradingRepository {
	return &gradingRepository{db: db}
}

func (repo *gradingRepository) QueryCategories(_ context.Context) ([]grading.Category, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	cats := make([]grading.Category, 0, len(repo.db.categories))
	for _, cat := range repo.db.categories {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].ID < cats[j].ID })
	return cats, nil
}

// record must be called with the lock held.
func (repo *gradingRepository) record(reg *registration) grading.Record {
	rec := grading.Record{
		RegistrationID: reg.id,
		StudentID:      reg.studentID,
		ClassID:        reg.classID,
		Scores:         make(map[int]*float64, len(reg.scores)),
	}
	if usr, ok := repo.db.users[reg.studentID]; ok {
		rec.StudentName = usr.Name
		rec.StudentEmail = usr.Email
	}
	if cls, ok := repo.db.classes[reg.classID]; ok {
		rec.CourseID = cls.courseID
		rec.CourseName = repo.db.courses[cls.courseID].name
	}
	for catID, val := range reg.scores {
		if val != nil {
			v := *val
			rec.Scores[catID] = &v
		}
	}
	return rec
}

func (repo *gradingRepository) GetRecord(_ context.Context, regisID int) (grading.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	reg, ok := repo.db.registrations[regisID]
	if !ok {
		return grading.Record{}, grading.ErrNotFound
	}
	return repo.record(reg), nil
}

func (repo *gradingRepository) QueryClassRecords(_ context.Context, classID int) ([]grading.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var recs []grading.Record
	for _, reg := range repo.db.registrations {
		if reg.classID == classID {
			recs = append(recs, repo.record(reg))
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].RegistrationID < recs[j].RegistrationID })
	return recs, nil
}

func (repo *gradingRepository) SaveScores(_ context.Context, regisID int, scores map[int]*float64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	reg, ok := repo.db.registrations[regisID]
	if !ok {
		return grading.ErrNotFound
	}
	if reg.scores == nil {
		reg.scores = make(map[int]*float64, len(scores))
	}
	for catID, val := range scores {
		if val == nil {
			delete(reg.scores, catID)
			continue
		}
		v := *val
		reg.scores[catID] = &v
	}
	return nil
}

func (repo *gradingRepository) SaveFinalResult(_ context.Context, res grading.FinalResult) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.registrations[res.RegistrationID]; !ok {
		return grading.ErrNotFound
	}
	repo.db.results[res.RegistrationID] = res
	return nil
}

func (repo *gradingRepository) QueryFinalResults(_ context.Context) ([]grading.FinalResult, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	results := make([]grading.FinalResult, 0, len(repo.db.results))
	for _, res := range repo.db.results {
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].RegistrationID < results[j].RegistrationID })
	return results, nil
}

func (repo *gradingRepository) SaveDraft(_ context.Context, draft grading.Draft) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.drafts[draft.Key] = draft
	return nil
}

func (repo *gradingRepository) LoadDraft(_ context.Context, key grading.DraftKey) (grading.Draft, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	draft, ok := repo.db.drafts[key]
	if !ok {
		return grading.Draft{}, grading.ErrDraftNotFound
	}
	return draft, nil
}

func (repo *gradingRepository) ClearDraft(_ context.Context, key grading.DraftKey) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.drafts, key)
	return nil
}

func (repo *gradingRepository) GetClassTeacher(_ context.Context, classID int) (int, error) {
	teacherID, ok := repo.db.classTeacher(classID)
	if !ok {
		return 0, grading.ErrClassNotFound
	}
	return teacherID, nil
}
