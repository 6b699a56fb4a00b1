package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/lingo/core"
	"github.com/trezcool/lingo/core/quiz"
)

// batchSize bounds the rows of one multi-row INSERT, keeping it under the drivers' bind var limits.
const batchSize = 500

type (
	courseRow struct {
		ID        string    `db:"id"`
		TeacherID string    `db:"teacher_id"`
		Title     string    `db:"title"`
		CreatedAt time.Time `db:"created_at"`
	}

	quizRow struct {
		ID          string    `db:"id"`
		CourseID    string    `db:"course_id"`
		TeacherID   string    `db:"teacher_id"`
		Title       string    `db:"title"`
		Description string    `db:"description"`
		QuizType    string    `db:"quiz_type"`
		IsActive    bool      `db:"is_active"`
		Version     int       `db:"version"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}

	groupRow struct {
		ID          string `db:"id"`
		QuizID      string `db:"quiz_id"`
		Instruction string `db:"instruction"`
		GroupType   string `db:"group_type"`
		GroupOrder  int    `db:"group_order"`
		Position    int    `db:"position"`
	}

	questionRow struct {
		ID            string          `db:"id"`
		QuizID        string          `db:"quiz_id"`
		GroupID       null.String     `db:"group_id"`
		Content       string          `db:"content"`
		QuestionType  string          `db:"question_type"`
		QuestionOrder int             `db:"question_order"`
		ScoreWeight   decimal.Decimal `db:"score_weight"`
		MetaJSON      null.String     `db:"meta_json"`
		Position      int             `db:"position"`
	}

	optionRow struct {
		ID         string `db:"id"`
		QuestionID string `db:"question_id"`
		Content    string `db:"content"`
		IsCorrect  bool   `db:"is_correct"`
		Position   int    `db:"position"`
	}

	assetRow struct {
		ID          string         `db:"id"`
		OwnerType   quiz.OwnerType `db:"owner_type"`
		OwnerID     string         `db:"owner_id"`
		AssetType   string         `db:"asset_type"`
		URL         null.String    `db:"url"`
		ContentText null.String    `db:"content_text"`
		Caption     null.String    `db:"caption"`
		MimeType    null.String    `db:"mime_type"`
		Position    int            `db:"position"`
	}
)

type quizRepository struct {
	exec core.DBExecutor
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(exec core.DBExecutor) *quizRepository {
	return &quizRepository{exec: exec}
}

func (repo quizRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// trapNoRowsErr maps sql "no rows" err to notFound
func (repo quizRepository) trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (repo quizRepository) unboilQuiz(r quizRow) quiz.Quiz {
	return quiz.Quiz{
		ID:          r.ID,
		CourseID:    r.CourseID,
		TeacherID:   r.TeacherID,
		Title:       r.Title,
		Description: r.Description,
		QuizType:    r.QuizType,
		IsActive:    r.IsActive,
		Version:     r.Version,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func (repo quizRepository) CreateCourse(ctx context.Context, course quiz.Course, exec ...core.DBExecutor) (quiz.Course, error) {
	row := courseRow{
		ID:        course.ID,
		TeacherID: course.TeacherID,
		Title:     course.Title,
		CreatedAt: course.CreatedAt.UTC(),
	}
	q := `INSERT INTO courses (id, teacher_id, title, created_at) VALUES (:id, :teacher_id, :title, :created_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, row); err != nil {
		return quiz.Course{}, errors.Wrap(err, "inserting course")
	}
	return course, nil
}

func (repo quizRepository) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (quiz.Course, error) {
	db := repo.getExec(exec)
	var row courseRow
	q := db.Rebind(`SELECT id, teacher_id, title, created_at FROM courses WHERE id = ?`)
	if err := db.GetContext(ctx, &row, q, id); err != nil {
		return quiz.Course{}, repo.trapNoRowsErr(err, quiz.ErrCourseNotFound, "selecting course")
	}
	return quiz.Course{
		ID:        row.ID,
		TeacherID: row.TeacherID,
		Title:     row.Title,
		CreatedAt: row.CreatedAt.UTC(),
	}, nil
}

func (repo quizRepository) CreateQuiz(ctx context.Context, qz quiz.Quiz, exec ...core.DBExecutor) (quiz.Quiz, error) {
	row := quizRow{
		ID:          qz.ID,
		CourseID:    qz.CourseID,
		Title:       qz.Title,
		Description: qz.Description,
		QuizType:    qz.QuizType,
		IsActive:    qz.IsActive,
		Version:     qz.Version,
		CreatedAt:   qz.CreatedAt.UTC(),
		UpdatedAt:   qz.UpdatedAt.UTC(),
	}
	q := `INSERT INTO quizzes (id, course_id, title, description, quiz_type, is_active, version, created_at, updated_at)
		VALUES (:id, :course_id, :title, :description, :quiz_type, :is_active, :version, :created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, row); err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "inserting quiz")
	}
	return qz, nil
}

func (repo quizRepository) GetQuiz(ctx context.Context, id string, exec ...core.DBExecutor) (quiz.Quiz, error) {
	db := repo.getExec(exec)
	var row quizRow
	q := db.Rebind(`SELECT q.id, q.course_id, c.teacher_id, q.title, q.description, q.quiz_type,
		q.is_active, q.version, q.created_at, q.updated_at
		FROM quizzes q JOIN courses c ON c.id = q.course_id
		WHERE q.id = ?`)
	if err := db.GetContext(ctx, &row, q, id); err != nil {
		return quiz.Quiz{}, repo.trapNoRowsErr(err, quiz.ErrNotFound, "selecting quiz")
	}
	return repo.unboilQuiz(row), nil
}

func (repo quizRepository) BumpQuizVersion(ctx context.Context, id string, expected *int, exec ...core.DBExecutor) (int, error) {
	db := repo.getExec(exec)
	q := `UPDATE quizzes SET version = version + 1, updated_at = ? WHERE id = ?`
	args := []interface{}{time.Now().UTC(), id}
	if expected != nil {
		q += ` AND version = ?`
		args = append(args, *expected)
	}

	res, err := db.ExecContext(ctx, db.Rebind(q), args...)
	if err != nil {
		return 0, errors.Wrap(err, "bumping quiz version")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "bumping quiz version")
	}

	var version int
	err = db.GetContext(ctx, &version, db.Rebind(`SELECT version FROM quizzes WHERE id = ?`), id)
	if err != nil {
		return 0, repo.trapNoRowsErr(err, quiz.ErrNotFound, "selecting quiz version")
	}
	if affected == 0 {
		return 0, quiz.ErrVersionConflict
	}
	return version, nil
}

const (
	quizQuestionIDs = `SELECT id FROM questions WHERE quiz_id = ?`
	quizGroupIDs    = `SELECT id FROM question_groups WHERE quiz_id = ?`
	quizAssetsWhere = `(owner_type = ? AND owner_id IN (` + quizGroupIDs + `))
		OR (owner_type = ? AND owner_id IN (` + quizQuestionIDs + `))`
)

func (repo quizRepository) DeleteContent(ctx context.Context, quizID string, exec ...core.DBExecutor) (quiz.DeleteResult, error) {
	db := repo.getExec(exec)
	var res quiz.DeleteResult

	steps := []struct {
		name  string
		query string
		args  []interface{}
		count *int64
	}{
		{"options", `DELETE FROM options WHERE question_id IN (` + quizQuestionIDs + `)`, []interface{}{quizID}, &res.Options},
		{"assets", `DELETE FROM assets WHERE ` + quizAssetsWhere, []interface{}{quiz.OwnerTypeGroup, quizID, quiz.OwnerTypeQuestion, quizID}, &res.Assets},
		{"questions", `DELETE FROM questions WHERE quiz_id = ?`, []interface{}{quizID}, &res.Questions},
		{"question groups", `DELETE FROM question_groups WHERE quiz_id = ?`, []interface{}{quizID}, &res.Groups},
	}
	for _, step := range steps {
		r, err := db.ExecContext(ctx, db.Rebind(step.query), step.args...)
		if err != nil {
			return quiz.DeleteResult{}, errors.Wrapf(err, "deleting %s", step.name)
		}
		if *step.count, err = r.RowsAffected(); err != nil {
			return quiz.DeleteResult{}, errors.Wrapf(err, "deleting %s", step.name)
		}
	}
	return res, nil
}

// insertBatches runs a named multi-row INSERT for rows[lo:hi] chunks.
func insertBatches(ctx context.Context, db core.DBExecutor, query string, n int, chunk func(lo, hi int) interface{}) error {
	for lo := 0; lo < n; lo += batchSize {
		hi := lo + batchSize
		if hi > n {
			hi = n
		}
		if _, err := db.NamedExecContext(ctx, query, chunk(lo, hi)); err != nil {
			return err
		}
	}
	return nil
}

func (repo quizRepository) CreateGroups(ctx context.Context, groups []quiz.QuestionGroup, exec ...core.DBExecutor) error {
	rows := make([]groupRow, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, groupRow{
			ID:          g.ID,
			QuizID:      g.QuizID,
			Instruction: g.Instruction,
			GroupType:   g.GroupType,
			GroupOrder:  g.GroupOrder,
			Position:    g.Position,
		})
	}
	q := `INSERT INTO question_groups (id, quiz_id, instruction, group_type, group_order, position)
		VALUES (:id, :quiz_id, :instruction, :group_type, :group_order, :position)`
	err := insertBatches(ctx, repo.getExec(exec), q, len(rows), func(lo, hi int) interface{} { return rows[lo:hi] })
	return errors.Wrap(err, "inserting question groups")
}

func (repo quizRepository) CreateQuestions(ctx context.Context, questions []quiz.Question, exec ...core.DBExecutor) error {
	rows := make([]questionRow, 0, len(questions))
	for _, qst := range questions {
		rows = append(rows, questionRow{
			ID:            qst.ID,
			QuizID:        qst.QuizID,
			GroupID:       qst.GroupID,
			Content:       qst.Content,
			QuestionType:  qst.QuestionType,
			QuestionOrder: qst.QuestionOrder,
			ScoreWeight:   qst.ScoreWeight,
			MetaJSON:      qst.MetaJSON,
			Position:      qst.Position,
		})
	}
	q := `INSERT INTO questions (id, quiz_id, group_id, content, question_type, question_order, score_weight, meta_json, position)
		VALUES (:id, :quiz_id, :group_id, :content, :question_type, :question_order, :score_weight, :meta_json, :position)`
	err := insertBatches(ctx, repo.getExec(exec), q, len(rows), func(lo, hi int) interface{} { return rows[lo:hi] })
	return errors.Wrap(err, "inserting questions")
}

func (repo quizRepository) CreateOptions(ctx context.Context, options []quiz.Option, exec ...core.DBExecutor) error {
	rows := make([]optionRow, 0, len(options))
	for _, o := range options {
		rows = append(rows, optionRow{
			ID:         o.ID,
			QuestionID: o.QuestionID,
			Content:    o.Content,
			IsCorrect:  o.IsCorrect,
			Position:   o.Position,
		})
	}
	q := `INSERT INTO options (id, question_id, content, is_correct, position)
		VALUES (:id, :question_id, :content, :is_correct, :position)`
	err := insertBatches(ctx, repo.getExec(exec), q, len(rows), func(lo, hi int) interface{} { return rows[lo:hi] })
	return errors.Wrap(err, "inserting options")
}

func (repo quizRepository) CreateAssets(ctx context.Context, assets []quiz.Asset, exec ...core.DBExecutor) error {
	rows := make([]assetRow, 0, len(assets))
	for _, a := range assets {
		if a.Owner == nil {
			return errors.Errorf("asset %s has no owner", a.ID)
		}
		rows = append(rows, assetRow{
			ID:          a.ID,
			OwnerType:   a.Owner.OwnerType(),
			OwnerID:     a.Owner.OwnerID(),
			AssetType:   a.AssetType,
			URL:         a.URL,
			ContentText: a.ContentText,
			Caption:     a.Caption,
			MimeType:    a.MimeType,
			Position:    a.Position,
		})
	}
	q := `INSERT INTO assets (id, owner_type, owner_id, asset_type, url, content_text, caption, mime_type, position)
		VALUES (:id, :owner_type, :owner_id, :asset_type, :url, :content_text, :caption, :mime_type, :position)`
	err := insertBatches(ctx, repo.getExec(exec), q, len(rows), func(lo, hi int) interface{} { return rows[lo:hi] })
	return errors.Wrap(err, "inserting assets")
}

func (repo quizRepository) QueryGroups(ctx context.Context, quizID string, exec ...core.DBExecutor) ([]quiz.QuestionGroup, error) {
	db := repo.getExec(exec)
	var rows []groupRow
	q := db.Rebind(`SELECT id, quiz_id, instruction, group_type, group_order, position
		FROM question_groups WHERE quiz_id = ? ORDER BY group_order, position`)
	if err := db.SelectContext(ctx, &rows, q, quizID); err != nil {
		return nil, errors.Wrap(err, "selecting question groups")
	}

	groups := make([]quiz.QuestionGroup, 0, len(rows))
	for _, r := range rows {
		groups = append(groups, quiz.QuestionGroup{
			ID:          r.ID,
			QuizID:      r.QuizID,
			Instruction: r.Instruction,
			GroupType:   r.GroupType,
			GroupOrder:  r.GroupOrder,
			Position:    r.Position,
		})
	}
	return groups, nil
}

func (repo quizRepository) QueryQuestions(ctx context.Context, quizID string, exec ...core.DBExecutor) ([]quiz.Question, error) {
	db := repo.getExec(exec)
	var rows []questionRow
	q := db.Rebind(`SELECT id, quiz_id, group_id, content, question_type, question_order, score_weight, meta_json, position
		FROM questions WHERE quiz_id = ? ORDER BY question_order, position`)
	if err := db.SelectContext(ctx, &rows, q, quizID); err != nil {
		return nil, errors.Wrap(err, "selecting questions")
	}

	questions := make([]quiz.Question, 0, len(rows))
	for _, r := range rows {
		questions = append(questions, quiz.Question{
			ID:            r.ID,
			QuizID:        r.QuizID,
			GroupID:       r.GroupID,
			Content:       r.Content,
			QuestionType:  r.QuestionType,
			QuestionOrder: r.QuestionOrder,
			ScoreWeight:   r.ScoreWeight,
			MetaJSON:      r.MetaJSON,
			Position:      r.Position,
		})
	}
	return questions, nil
}

func (repo quizRepository) QueryOptions(ctx context.Context, quizID string, exec ...core.DBExecutor) ([]quiz.Option, error) {
	db := repo.getExec(exec)
	var rows []optionRow
	q := db.Rebind(`SELECT o.id, o.question_id, o.content, o.is_correct, o.position
		FROM options o JOIN questions q ON q.id = o.question_id
		WHERE q.quiz_id = ? ORDER BY o.question_id, o.position`)
	if err := db.SelectContext(ctx, &rows, q, quizID); err != nil {
		return nil, errors.Wrap(err, "selecting options")
	}

	options := make([]quiz.Option, 0, len(rows))
	for _, r := range rows {
		options = append(options, quiz.Option{
			ID:         r.ID,
			QuestionID: r.QuestionID,
			Content:    r.Content,
			IsCorrect:  r.IsCorrect,
			Position:   r.Position,
		})
	}
	return options, nil
}

func (repo quizRepository) QueryAssets(ctx context.Context, quizID string, exec ...core.DBExecutor) ([]quiz.Asset, error) {
	db := repo.getExec(exec)
	var rows []assetRow
	q := db.Rebind(`SELECT id, owner_type, owner_id, asset_type, url, content_text, caption, mime_type, position
		FROM assets WHERE ` + quizAssetsWhere + ` ORDER BY owner_id, position`)
	err := db.SelectContext(ctx, &rows, q, quiz.OwnerTypeGroup, quizID, quiz.OwnerTypeQuestion, quizID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting assets")
	}

	assets := make([]quiz.Asset, 0, len(rows))
	for _, r := range rows {
		owner, err := quiz.NewAssetOwner(r.OwnerType, r.OwnerID)
		if err != nil {
			return nil, errors.Wrapf(err, "reading asset %s", r.ID)
		}
		assets = append(assets, quiz.Asset{
			ID:          r.ID,
			Owner:       owner,
			AssetType:   r.AssetType,
			URL:         r.URL,
			ContentText: r.ContentText,
			Caption:     r.Caption,
			MimeType:    r.MimeType,
			Position:    r.Position,
		})
	}
	return assets, nil
}
