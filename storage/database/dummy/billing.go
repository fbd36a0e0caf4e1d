package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/anquinko/academia/core/billing"
)

type billingRepository struct {
	db *DB
}

var _ billing.Repository = (*billingRepository)(nil)

func NewBillingRepository(db *DB) billing.Repository {
	return &billingRepository{db: db}
}

// registration must be called with the lock held.
func (repo *billingRepository) registration(reg *registration) billing.Registration {
	res := billing.Registration{
		ID:            reg.id,
		StudentID:     reg.studentID,
		ClassID:       reg.classID,
		ActualTuition: reg.tuition,
		Paid:          reg.paid,
		Status:        reg.status,
		CreatedAt:     reg.createdAt,
	}
	if usr, ok := repo.db.users[reg.studentID]; ok {
		res.StudentName = usr.Name
		res.StudentEmail = usr.Email
	}
	if cls, ok := repo.db.classes[reg.classID]; ok {
		res.CourseName = repo.db.courses[cls.courseID].name
	}
	return res
}

func (repo *billingRepository) QueryUnpaid(_ context.Context, search string) ([]billing.Registration, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	search = strings.ToLower(search)
	var regs []billing.Registration
	for _, r := range repo.db.registrations {
		if r.status != billing.StatusUnpaid && r.status != billing.StatusPartial {
			continue
		}
		reg := repo.registration(r)
		if search != "" &&
			!strings.Contains(strings.ToLower(reg.StudentName), search) &&
			!strings.Contains(strings.ToLower(reg.CourseName), search) {
			continue
		}
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].ID < regs[j].ID })
	return regs, nil
}

func (repo *billingRepository) GetRegistration(_ context.Context, id int) (billing.Registration, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	reg, ok := repo.db.registrations[id]
	if !ok {
		return billing.Registration{}, billing.ErrNotFound
	}
	return repo.registration(reg), nil
}

// store writes the payment state of reg back. Must be called with the lock held.
func (repo *billingRepository) store(reg billing.Registration) {
	row := repo.db.registrations[reg.ID]
	row.paid = reg.Paid
	row.status = reg.Status
}

func (repo *billingRepository) RecordPayment(_ context.Context, regisID int, txn billing.Transaction, apply func(*billing.Registration) error) (billing.Registration, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	row, ok := repo.db.registrations[regisID]
	if !ok {
		return billing.Registration{}, billing.ErrNotFound
	}
	reg := repo.registration(row)
	if err := apply(&reg); err != nil {
		return billing.Registration{}, err
	}
	txn.RegistrationID = reg.ID
	repo.db.transactions[txn.ID] = txn
	repo.store(reg)
	return reg, nil
}

func (repo *billingRepository) DeleteTransaction(_ context.Context, id uuid.UUID, revert func(*billing.Registration, billing.Transaction)) (billing.Registration, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	txn, ok := repo.db.transactions[id]
	if !ok {
		return billing.Registration{}, billing.ErrTransactionNotFound
	}
	row, ok := repo.db.registrations[txn.RegistrationID]
	if !ok {
		return billing.Registration{}, billing.ErrNotFound
	}
	delete(repo.db.transactions, id)
	reg := repo.registration(row)
	revert(&reg, txn)
	repo.store(reg)
	return reg, nil
}

func (repo *billingRepository) CreateRegistration(_ context.Context, reg billing.Registration, txn billing.Transaction) (billing.Registration, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	cls, ok := repo.db.classes[reg.ClassID]
	if !ok {
		return billing.Registration{}, billing.ErrClassNotFound
	}
	count := 0
	for _, r := range repo.db.registrations {
		if r.classID != cls.id {
			continue
		}
		if r.studentID == reg.StudentID {
			return billing.Registration{}, billing.ErrAlreadyRegistered
		}
		count++
	}
	if count >= cls.capacity {
		return billing.Registration{}, billing.ErrClassFull
	}

	row := &registration{
		id:        repo.db.nextID(0),
		studentID: reg.StudentID,
		classID:   reg.ClassID,
		tuition:   reg.ActualTuition,
		paid:      reg.Paid,
		status:    reg.Status,
		createdAt: reg.CreatedAt,
		scores:    make(map[int]*float64),
	}
	repo.db.registrations[row.id] = row
	txn.RegistrationID = row.id
	repo.db.transactions[txn.ID] = txn
	return repo.registration(row), nil
}

func (repo *billingRepository) QueryClasses(_ context.Context, courseID, levelID int) ([]billing.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classes := []billing.Class{}
	for _, cls := range repo.db.classes {
		if cls.courseID != courseID || cls.levelID != levelID {
			continue
		}
		c := billing.Class{
			ID:          cls.id,
			CourseID:    cls.courseID,
			CourseName:  repo.db.courses[cls.courseID].name,
			LevelID:     cls.levelID,
			StartTime:   cls.startTime,
			MaxStudents: cls.capacity,
		}
		if lvl, ok := repo.db.levels[cls.levelID]; ok {
			c.LevelName = lvl.Name
			c.Tuition = lvl.Tuition
		}
		for _, r := range repo.db.registrations {
			if r.classID == cls.id {
				c.CurrentCount++
			}
		}
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool {
		if !classes[i].StartTime.Equal(classes[j].StartTime) {
			return classes[i].StartTime.Before(classes[j].StartTime)
		}
		return classes[i].ID < classes[j].ID
	})
	return classes, nil
}

func (repo *billingRepository) QueryCourseStats(_ context.Context) ([]billing.CourseStats, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	counts := make(map[int]int, len(repo.db.courses))
	for _, r := range repo.db.registrations {
		if cls, ok := repo.db.classes[r.classID]; ok {
			counts[cls.courseID]++
		}
	}
	stats := make([]billing.CourseStats, 0, len(repo.db.courses))
	for _, co := range repo.db.courses {
		stats = append(stats, billing.CourseStats{CourseID: co.id, CourseName: co.name, Students: counts[co.id]})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].CourseID < stats[j].CourseID })
	return stats, nil
}

func (repo *billingRepository) QueryLevels(_ context.Context) ([]billing.Level, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	levels := make([]billing.Level, 0, len(repo.db.levels))
	for _, lvl := range repo.db.levels {
		levels = append(levels, *lvl)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].ID < levels[j].ID })
	return levels, nil
}

func (repo *billingRepository) UpdateTuitions(_ context.Context, tuitions map[int]float64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, tuition := range tuitions {
		if lvl, ok := repo.db.levels[id]; ok {
			lvl.Tuition = tuition
		}
	}
	return nil
}

func (repo *billingRepository) GetClassTuition(_ context.Context, classID int) (billing.ClassTuition, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	cls, ok := repo.db.classes[classID]
	if !ok {
		return billing.ClassTuition{}, billing.ErrClassNotFound
	}
	ct := billing.ClassTuition{ClassID: cls.id, CourseName: repo.db.courses[cls.courseID].name}
	if lvl, ok := repo.db.levels[cls.levelID]; ok {
		ct.LevelName = lvl.Name
		ct.Tuition = lvl.Tuition
	}
	return ct, nil
}

func (repo *billingRepository) QueryTransactions(_ context.Context, f billing.TransactionFilter) ([]billing.TransactionView, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	search := strings.ToLower(f.Search)
	txns := []billing.TransactionView{}
	for _, txn := range repo.db.transactions {
		switch {
		case f.Status != "" && txn.Status != f.Status,
			f.Method != "" && txn.Method != f.Method,
			!f.From.IsZero() && txn.CreatedAt.Before(f.From),
			!f.To.IsZero() && !txn.CreatedAt.Before(f.To):
			continue
		}
		view := billing.TransactionView{Transaction: txn}
		if row, ok := repo.db.registrations[txn.RegistrationID]; ok {
			reg := repo.registration(row)
			view.StudentName = reg.StudentName
			view.CourseName = reg.CourseName
			if usr, ok := repo.db.users[row.studentID]; ok {
				view.StudentPhone = usr.Phone
			}
		}
		if search != "" && !containsAny(search, txn.ID.String(), txn.Content, view.StudentName, view.StudentPhone) {
			continue
		}
		txns = append(txns, view)
	}
	sort.Slice(txns, func(i, j int) bool {
		if !txns[i].CreatedAt.Equal(txns[j].CreatedAt) {
			return txns[i].CreatedAt.After(txns[j].CreatedAt)
		}
		return txns[i].ID.String() < txns[j].ID.String()
	})
	return txns, nil
}

// containsAny reports whether one of fields contains the lowercase needle, ignoring case.
func containsAny(needle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
