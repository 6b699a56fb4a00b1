package testutil

import (
	"context"
	"path/filepath"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/lingo/core"
	"github.com/trezcool/lingo/core/quiz"
	logsvc "github.com/trezcool/lingo/services/logger"
	"github.com/trezcool/lingo/storage/database"
)

// PrepareDB opens a migrated sqlite3 database, removed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "opening test DB")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db, nil), "migrating test DB")
	return db
}

// NewValidator returns a validator with every app validation registered.
func NewValidator() *validator.Validate {
	validate, _ := NewValidatorAndTranslator()
	return validate
}

// NewValidatorAndTranslator also returns the translator holding the validation messages.
func NewValidatorAndTranslator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	quiz.InitValidators(validate, translator)
	return validate, translator
}

func NewLogger() core.Logger {
	return logsvc.NewNopLogger()
}

func CreateCourse(t *testing.T, svc *quiz.Service, teacherID, title string) quiz.Course {
	t.Helper()
	course, err := svc.CreateCourse(context.Background(), teacherID, title)
	if err != nil {
		t.Fatalf("createCourse() failed: %v", err)
	}
	return course
}

func CreateQuiz(t *testing.T, svc *quiz.Service, courseID, title string) quiz.Quiz {
	t.Helper()
	qz, err := svc.CreateQuiz(context.Background(), courseID, title, "", quiz.TypeReading)
	if err != nil {
		t.Fatalf("createQuiz() failed: %v", err)
	}
	return qz
}

// CountRows counts the rows of a table.
func CountRows(t *testing.T, db *sqlx.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}
