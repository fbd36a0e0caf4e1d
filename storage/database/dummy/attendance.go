package dummydb

import (
	"context"
	"sort"

	"github.com/anquinko/academia/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) GetSession(_ context.Context, id int) (attendance.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sess, ok := repo.db.sessions[id]
	if !ok {
		return attendance.Session{}, attendance.ErrNotFound
	}
	return attendance.Session{ID: sess.id, ClassID: sess.classID, Date: sess.date, Content: sess.content}, nil
}

func (repo *attendanceRepository) QueryEnrolled(_ context.Context, classID int) ([]int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var ids []int
	for _, reg := range repo.db.registrations {
		if reg.classID == classID {
			ids = append(ids, reg.studentID)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (repo *attendanceRepository) SaveMarks(_ context.Context, sessionID int, marks map[int]bool) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.sessions[sessionID]; !ok {
		return attendance.ErrNotFound
	}
	stored := make(map[int]bool, len(marks))
	for id, present := range marks {
		stored[id] = present
	}
	repo.db.marks[sessionID] = stored
	return nil
}

func (repo *attendanceRepository) GetMarks(_ context.Context, sessionID int) (map[int]bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	marks := make(map[int]bool, len(repo.db.marks[sessionID]))
	for id, present := range repo.db.marks[sessionID] {
		marks[id] = present
	}
	return marks, nil
}

func (repo *attendanceRepository) GetClassTeacher(_ context.Context, classID int) (int, error) {
	teacherID, ok := repo.db.classTeacher(classID)
	if !ok {
		return 0, attendance.ErrClassNotFound
	}
	return teacherID, nil
}
