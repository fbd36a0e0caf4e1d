package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/anquinko/academia/core/user"
	"github.com/anquinko/academia/storage/database"
	"github.com/anquinko/academia/storage/database/dummy"
)

// IDs of the rows of Fixture.
const (
	AdminID   = 1
	TeacherID = 2
	CashierID = 3
	AnID      = 4 // student
	BinhID    = 5 // student
	ChiID     = 6 // student, no email

	EnglishID = 10
	FrenchID  = 11

	LevelA1ID = 20
	LevelB1ID = 21

	EnglishClassID = 30
	FrenchClassID  = 31

	MidtermID = 40
	FinalID   = 41

	AnEnglishRegID   = 50 // scores 6 / 9, unpaid
	BinhEnglishRegID = 51 // midterm 4 only, partially paid
	ChiEnglishRegID  = 52 // no score, paid
	AnFrenchRegID    = 53 // no score, unpaid

	EnglishSessionID = 60

	Password = "Str0ng!Pwd#42"
)

// Fixture is the reference data set shared by the tests.
func Fixture() database.Fixture {
	return database.Fixture{
		Users: []database.FixtureUser{
			{ID: AdminID, Name: "Admin", Username: "admin", Email: "admin@test.vn", Password: Password, Roles: []string{user.RoleAdmin}},
			{ID: TeacherID, Name: "Tina Teacher", Username: "tina", Email: "tina@test.vn", Password: Password, Roles: []string{user.RoleTeacher}},
			{ID: CashierID, Name: "Carl Cashier", Username: "carl", Email: "carl@test.vn", Password: Password, Roles: []string{user.RoleCashier}},
			{ID: AnID, Name: "An Nguyen", Username: "an", Email: "an@test.vn", Password: Password, Roles: []string{user.RoleStudent}},
			{ID: BinhID, Name: "Binh Tran", Username: "binh", Email: "binh@test.vn", Phone: "0901234567", Password: Password, Roles: []string{user.RoleStudent}},
			{ID: ChiID, Name: "Chi Le", Username: "chi", Password: Password, Roles: []string{user.RoleStudent}},
		},
		Courses: []database.FixtureCourse{
			{ID: EnglishID, Name: "English"},
			{ID: FrenchID, Name: "French"},
		},
		Levels: []database.FixtureLevel{
			{ID: LevelA1ID, Name: "A1", Tuition: 1000000},
			{ID: LevelB1ID, Name: "B1", Tuition: 1500000},
		},
		Classes: []database.FixtureClass{
			{ID: EnglishClassID, TeacherID: TeacherID, CourseID: EnglishID, LevelID: LevelA1ID, StartTime: time.Date(2024, 9, 2, 18, 0, 0, 0, time.UTC), MaxStudents: 20},
			{ID: FrenchClassID, TeacherID: TeacherID, CourseID: FrenchID, LevelID: LevelB1ID, StartTime: time.Date(2024, 9, 3, 18, 0, 0, 0, time.UTC), MaxStudents: 2},
		},
		Categories: []database.FixtureCategory{
			{ID: MidtermID, Name: "Midterm", Weight: 0.3},
			{ID: FinalID, Name: "Final", Weight: 0.7},
		},
		Registrations: []database.FixtureRegistration{
			{ID: AnEnglishRegID, StudentID: AnID, ClassID: EnglishClassID, Tuition: 1000000, Scores: map[int]float64{MidtermID: 6, FinalID: 9}},
			{ID: BinhEnglishRegID, StudentID: BinhID, ClassID: EnglishClassID, Tuition: 1000000, Paid: 400000, Scores: map[int]float64{MidtermID: 4}},
			{ID: ChiEnglishRegID, StudentID: ChiID, ClassID: EnglishClassID, Tuition: 1000000, Paid: 1000000},
			{ID: AnFrenchRegID, StudentID: AnID, ClassID: FrenchClassID, Tuition: 1500000},
		},
		Sessions: []database.FixtureSession{
			{ID: EnglishSessionID, ClassID: EnglishClassID, Date: time.Date(2024, 9, 9, 18, 0, 0, 0, time.UTC), Content: "Unit 1"},
		},
	}
}

// PrepareDB returns an in-memory DB loaded with Fixture.
func PrepareDB(t *testing.T) *dummydb.DB {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	if err = db.Load(Fixture()); err != nil {
		t.Fatalf("db.Load() failed: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}
