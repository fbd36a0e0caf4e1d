// Package dummydb is an in-memory implementation of the repositories, used by tests and local demos.
package dummydb

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/anquinko/academia/core/billing"
	"github.com/anquinko/academia/core/grading"
	"github.com/anquinko/academia/core/user"
	"github.com/anquinko/academia/storage/database"
)

type (
	DB struct {
		sync.RWMutex
		seq int

		users         map[int]*user.User
		courses       map[int]course
		levels        map[int]*billing.Level
		classes       map[int]class
		registrations map[int]*registration
		categories    map[int]grading.Category
		results       map[int]grading.FinalResult // {regisID: result}
		drafts        map[grading.DraftKey]grading.Draft
		transactions  map[uuid.UUID]billing.Transaction
		sessions      map[int]sessionRow
		marks         map[int]map[int]bool        // {sessionID: {studentID: present}}
	}

	course struct {
		id   int
		name string
	}

	class struct {
		id        int
		teacherID int
		courseID  int
		levelID   int
		startTime time.Time
		capacity  int
	}

	registration struct {
		id        int
		studentID int
		classID   int
		tuition   float64
		paid      float64
		status    billing.Status
		createdAt time.Time
		scores    map[int]*float64 // {categoryID: value}
	}

	sessionRow struct {
		id      int
		classID int
		date    time.Time
		content string
	}
)

func Open() (*DB, error) {
	db := &DB{
		users:         make(map[int]*user.User),
		courses:       make(map[int]course),
		levels:        make(map[int]*billing.Level),
		classes:       make(map[int]class),
		registrations: make(map[int]*registration),
		categories:    make(map[int]grading.Category),
		results:       make(map[int]grading.FinalResult),
		drafts:        make(map[grading.DraftKey]grading.Draft),
		transactions:  make(map[uuid.UUID]billing.Transaction),
		sessions:      make(map[int]sessionRow),
		marks:         make(map[int]map[int]bool),
	}
	return db, nil
}

// nextID returns id when set, a fresh primary key otherwise.
func (db *DB) nextID(id int) int {
	if id == 0 {
		db.seq++
		return db.seq
	}
	if id > db.seq {
		db.seq = id
	}
	return id
}

// Load inserts the rows of fx. Passwords are hashed.
func (db *DB) Load(fx database.Fixture) error {
	db.Lock()
	defer db.Unlock()

	now := time.Now().UTC()
	for _, fu := range fx.Users {
		usr := user.User{
			Name:      fu.Name,
			Username:  fu.Username,
			Email:     fu.Email,
			Phone:     fu.Phone,
			IsActive:  true,
			Roles:     fu.Roles,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := usr.SetPassword(fu.Password); err != nil {
			return errors.Wrap(err, "hashing password")
		}
		usr.ID = db.nextID(fu.ID)
		db.users[usr.ID] = &usr
	}
	for _, fc := range fx.Courses {
		id := db.nextID(fc.ID)
		db.courses[id] = course{id: id, name: fc.Name}
	}
	for _, fl := range fx.Levels {
		id := db.nextID(fl.ID)
		db.levels[id] = &billing.Level{ID: id, Name: fl.Name, Tuition: fl.Tuition}
	}
	for _, fc := range fx.Classes {
		id := db.nextID(fc.ID)
		db.classes[id] = class{id: id, teacherID: fc.TeacherID, courseID: fc.CourseID, levelID: fc.LevelID, startTime: fc.StartTime, capacity: fc.Capacity()}
	}
	for _, fc := range fx.Categories {
		id := db.nextID(fc.ID)
		db.categories[id] = grading.Category{ID: id, Name: fc.Name, Weight: fc.Weight}
	}
	for _, fr := range fx.Registrations {
		reg := &registration{
			id:        db.nextID(fr.ID),
			studentID: fr.StudentID,
			classID:   fr.ClassID,
			tuition:   fr.Tuition,
			paid:      fr.Paid,
			status:    billing.StatusFor(fr.Tuition, fr.Paid),
			createdAt: now,
			scores:    make(map[int]*float64, len(fr.Scores)),
		}
		for catID, val := range fr.Scores {
			val := val
			reg.scores[catID] = &val
		}
		db.registrations[reg.id] = reg
	}
	for _, fs := range fx.Sessions {
		id := db.nextID(fs.ID)
		db.sessions[id] = sessionRow{id: id, classID: fs.ClassID, date: fs.Date, content: fs.Content}
	}
	return nil
}

// classTeacher returns the teacher of a class, if it exists.
func (db *DB) classTeacher(classID int) (int, bool) {
	db.RLock()
	defer db.RUnlock()

	cls, ok := db.classes[classID]
	return cls.teacherID, ok
}
