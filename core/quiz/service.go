package quiz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/lingo/core"
)

var (
	// errors
	ErrNotFound        = errors.New("quiz not found")
	ErrCourseNotFound  = errors.New("course not found")
	ErrForbidden       = errors.New("quiz belongs to another teacher")
	ErrVersionConflict = errors.New("quiz was modified by another request")
)

type (
	// Repository persists quizzes and their question hierarchy.
	// Every method runs on the optional exec (e.g. a transaction), else on the repository's own DB.
	Repository interface {
		CreateCourse(ctx context.Context, course Course, exec ...core.DBExecutor) (Course, error)
		GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		CreateQuiz(ctx context.Context, qz Quiz, exec ...core.DBExecutor) (Quiz, error)
		GetQuiz(ctx context.Context, id string, exec ...core.DBExecutor) (Quiz, error)
		// BumpQuizVersion increments the quiz version, checking it against expected when set,
		// and returns the new version. It returns ErrNotFound or ErrVersionConflict.
		BumpQuizVersion(ctx context.Context, id string, expected *int, exec ...core.DBExecutor) (int, error)

		// DeleteContent deletes the quiz's options, assets, questions and groups, in that order.
		DeleteContent(ctx context.Context, quizID string, exec ...core.DBExecutor) (DeleteResult, error)
		CreateGroups(ctx context.Context, groups []QuestionGroup, exec ...core.DBExecutor) error
		CreateQuestions(ctx context.Context, questions []Question, exec ...core.DBExecutor) error
		CreateOptions(ctx context.Context, options []Option, exec ...core.DBExecutor) error
		CreateAssets(ctx context.Context, assets []Asset, exec ...core.DBExecutor) error

		QueryGroups(ctx context.Context, quizID string, exec ...core.DBExecutor) ([]QuestionGroup, error)
		QueryQuestions(ctx context.Context, quizID string, exec ...core.DBExecutor) ([]Question, error)
		QueryOptions(ctx context.Context, quizID string, exec ...core.DBExecutor) ([]Option, error)
		QueryAssets(ctx context.Context, quizID string, exec ...core.DBExecutor) ([]Asset, error)
	}

	// ContentCache caches quiz content trees for readers.
	// Invalidate records the quiz's latest version; Set must then ignore trees of older versions.
	ContentCache interface {
		Get(ctx context.Context, quizID string) (Content, bool, error)
		Set(ctx context.Context, content Content) error
		Invalidate(ctx context.Context, quizID string, version int) error
	}

	Service struct {
		db       core.DB
		repo     Repository
		cache    ContentCache
		logger   core.Logger
		validate *validator.Validate
		newID    func() string
		nowFunc  func() time.Time
	}
)

func NewService(db core.DB, repo Repository, cache ContentCache, logger core.Logger, validate *validator.Validate) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{
		db:       db,
		repo:     repo,
		cache:    cache,
		logger:   logger,
		validate: validate,
		newID:    func() string { return uuid.New().String() },
		nowFunc:  time.Now,
	}
}

// CreateCourse creates a course owned by the given teacher.
func (svc *Service) CreateCourse(ctx context.Context, teacherID, title string) (Course, error) {
	teacherID = core.CleanString(teacherID)
	title = core.CleanString(title)
	var flds []core.FieldError
	if teacherID == "" {
		flds = append(flds, core.FieldError{Field: "teacherId", Error: "this field is required"})
	}
	if title == "" {
		flds = append(flds, core.FieldError{Field: "title", Error: "this field is required"})
	}
	if flds != nil {
		return Course{}, core.NewValidationError(nil, flds...)
	}
	return svc.repo.CreateCourse(ctx, Course{
		ID:        svc.newID(),
		TeacherID: teacherID,
		Title:     title,
		CreatedAt: svc.nowFunc().UTC(),
	})
}

// CreateQuiz creates an active, empty quiz in the given course.
func (svc *Service) CreateQuiz(ctx context.Context, courseID, title, description, quizType string) (Quiz, error) {
	title = core.CleanString(title)
	quizType = core.CleanString(quizType, true /* lower */)
	if title == "" {
		return Quiz{}, core.NewValidationError(nil, core.FieldError{Field: "title", Error: "this field is required"})
	}
	if !contains(QuizTypes, quizType) {
		return Quiz{}, core.NewValidationError(nil, core.FieldError{Field: "quizType", Error: fmt.Sprintf("invalid quiz type %q", quizType)})
	}
	course, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return Quiz{}, err
	}
	now := svc.nowFunc().UTC()
	return svc.repo.CreateQuiz(ctx, Quiz{
		ID:          svc.newID(),
		CourseID:    course.ID,
		TeacherID:   course.TeacherID,
		Title:       title,
		Description: core.CleanString(description),
		QuizType:    quizType,
		IsActive:    true,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	return svc.repo.GetQuiz(ctx, id)
}

// CheckOwnership returns ErrForbidden unless the teacher owns the quiz's course.
func (svc *Service) CheckOwnership(qz Quiz, teacherID string) error {
	if teacherID == "" || qz.TeacherID != teacherID {
		return ErrForbidden
	}
	return nil
}

// GetContent returns the quiz's full content tree, reading through the cache.
func (svc *Service) GetContent(ctx context.Context, quizID string) (Content, error) {
	if content, ok, err := svc.cache.Get(ctx, quizID); err != nil {
		svc.logger.Warn("reading quiz content cache", err, map[string]interface{}{"quizId": quizID})
	} else if ok {
		return content, nil
	}

	// one snapshot, so a concurrent replace is seen entirely or not at all
	var content Content
	err := core.InTxOpts(ctx, svc.db, core.SnapshotTx, func(tx core.DBExecutor) error {
		var err error
		content, err = svc.loadContent(ctx, quizID, tx)
		return err
	})
	if err != nil {
		return Content{}, err
	}
	if err = svc.cache.Set(ctx, content); err != nil {
		svc.logger.Warn("writing quiz content cache", err, map[string]interface{}{"quizId": quizID})
	}
	return content, nil
}

func (svc *Service) loadContent(ctx context.Context, quizID string, exec core.DBExecutor) (Content, error) {
	qz, err := svc.repo.GetQuiz(ctx, quizID, exec)
	if err != nil {
		return Content{}, err
	}
	groups, err := svc.repo.QueryGroups(ctx, quizID, exec)
	if err != nil {
		return Content{}, pkgerrors.Wrap(err, "querying groups")
	}
	questions, err := svc.repo.QueryQuestions(ctx, quizID, exec)
	if err != nil {
		return Content{}, pkgerrors.Wrap(err, "querying questions")
	}
	options, err := svc.repo.QueryOptions(ctx, quizID, exec)
	if err != nil {
		return Content{}, pkgerrors.Wrap(err, "querying options")
	}
	assets, err := svc.repo.QueryAssets(ctx, quizID, exec)
	if err != nil {
		return Content{}, pkgerrors.Wrap(err, "querying assets")
	}
	return AssembleContent(qz, groups, questions, options, assets), nil
}

// ReplaceContent atomically replaces the whole question hierarchy of a quiz with the given content.
// The import is validated before anything is touched; any later failure rolls everything back.
func (svc *Service) ReplaceContent(ctx context.Context, quizID string, ci ContentImport) (ReplacementResult, error) {
	if err := ci.Validate(svc.validate); err != nil {
		return ReplacementResult{}, err
	}

	t := ci.build(quizID, svc.newID)
	res := t.result()
	var deleted DeleteResult

	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		version, err := svc.repo.BumpQuizVersion(ctx, quizID, ci.Version, tx)
		if err != nil {
			return err
		}
		res.Version = version

		// children before parents
		if deleted, err = svc.repo.DeleteContent(ctx, quizID, tx); err != nil {
			return pkgerrors.Wrap(err, "deleting quiz content")
		}

		// parents before children
		if err = svc.repo.CreateGroups(ctx, t.groups, tx); err != nil {
			return pkgerrors.Wrap(err, "creating groups")
		}
		if err = svc.repo.CreateQuestions(ctx, t.questions, tx); err != nil {
			return pkgerrors.Wrap(err, "creating questions")
		}
		if err = svc.repo.CreateOptions(ctx, t.options, tx); err != nil {
			return pkgerrors.Wrap(err, "creating options")
		}
		if err = svc.repo.CreateAssets(ctx, t.assets, tx); err != nil {
			return pkgerrors.Wrap(err, "creating assets")
		}
		return nil
	})
	if err != nil {
		return ReplacementResult{}, err
	}

	if err = svc.cache.Invalidate(ctx, quizID, res.Version); err != nil {
		svc.logger.Warn("invalidating quiz content cache", err, map[string]interface{}{"quizId": quizID})
	}
	svc.logger.Info("quiz content replaced", map[string]interface{}{
		"quizId":           quizID,
		"version":          res.Version,
		"groups":           res.Groups,
		"questions":        res.Questions,
		"options":          res.Options,
		"assets":           res.Assets,
		"deletedGroups":    deleted.Groups,
		"deletedQuestions": deleted.Questions,
		"deletedOptions":   deleted.Options,
		"deletedAssets":    deleted.Assets,
	})
	return res, nil
}

// NopCache caches nothing.
type NopCache struct{}

var _ ContentCache = NopCache{}

func (NopCache) Get(context.Context, string) (Content, bool, error) { return Content{}, false, nil }
func (NopCache) Set(context.Context, Content) error                 { return nil }
func (NopCache) Invalidate(context.Context, string, int) error      { return nil }
