package database

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Fixture is a set of reference rows loaded by the admin `seed` command and by tests.
// IDs are explicit so that rows can reference each other.
type Fixture struct {
	Users         []FixtureUser         `yaml:"users"`
	Courses       []FixtureCourse       `yaml:"courses"`
	Levels        []FixtureLevel        `yaml:"levels"`
	Classes       []FixtureClass        `yaml:"classes"`
	Categories    []FixtureCategory     `yaml:"grade_categories"`
	Registrations []FixtureRegistration `yaml:"registrations"`
	Sessions      []FixtureSession      `yaml:"sessions"`
}

type (
	FixtureUser struct {
		ID       int      `yaml:"id"`
		Name     string   `yaml:"name"`
		Username string   `yaml:"username"`
		Email    string   `yaml:"email"`
		Phone    string   `yaml:"phone"`
		Password string   `yaml:"password"`
		Roles    []string `yaml:"roles"`
	}

	FixtureCourse struct {
		ID          int    `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	}

	FixtureLevel struct {
		ID      int     `yaml:"id"`
		Name    string  `yaml:"name"`
		Tuition float64 `yaml:"tuition"`
	}

	FixtureClass struct {
		ID          int       `yaml:"id"`
		TeacherID   int       `yaml:"teacher_id"`
		CourseID    int       `yaml:"course_id"`
		LevelID     int       `yaml:"level_id"`
		StartTime   time.Time `yaml:"start_time"`
		MaxStudents int       `yaml:"maximum_stu"`
	}

	FixtureCategory struct {
		ID     int     `yaml:"id"`
		Name   string  `yaml:"name"`
		Weight float64 `yaml:"weight"`
	}

	FixtureRegistration struct {
		ID        int             `yaml:"id"`
		StudentID int             `yaml:"student_id"`
		ClassID   int             `yaml:"class_id"`
		Tuition   float64         `yaml:"tuition"`
		Paid      float64         `yaml:"paid"`
		Scores    map[int]float64 `yaml:"scores"` // {categoryID: value}
	}

	FixtureSession struct {
		ID      int       `yaml:"id"`
		ClassID int       `yaml:"class_id"`
		Date    time.Time `yaml:"date"`
		Content string    `yaml:"content"`
	}
)

// ParseFixture decodes a YAML fixture. Unknown keys are rejected.
func ParseFixture(r io.Reader) (Fixture, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return Fixture{}, errors.Wrap(err, "decoding fixture")
	}
	return fx, nil
}

// DefaultClassCapacity is the number of seats of a class when none is given.
const DefaultClassCapacity = 25

// Capacity returns the number of seats of the class.
func (fc FixtureClass) Capacity() int {
	if fc.MaxStudents <= 0 {
		return DefaultClassCapacity
	}
	return fc.MaxStudents
}
