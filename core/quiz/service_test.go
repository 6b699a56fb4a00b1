package quiz_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/lingo/core"
	"github.com/trezcool/lingo/core/quiz"
	sqlxrepos "github.com/trezcool/lingo/storage/database/sqlx"
	"github.com/trezcool/lingo/tests"
)

var errBoom = errors.New("boom")

// failingRepo fails on the first option insert, after groups and questions went in.
type failingRepo struct {
	quiz.Repository
}

func (failingRepo) CreateOptions(context.Context, []quiz.Option, ...core.DBExecutor) error {
	return errBoom
}

// replacingRepo commits a replace of the quiz while the reader is between two queries.
type replacingRepo struct {
	quiz.Repository
	replace func() error
	started bool
	done    chan struct{}
	err     error
}

func (r *replacingRepo) QueryQuestions(ctx context.Context, quizID string, exec ...core.DBExecutor) ([]quiz.Question, error) {
	if !r.started {
		r.started = true
		go func() {
			r.err = r.replace()
			close(r.done)
		}()
		// give the replace a chance to commit before the read goes on
		select {
		case <-r.done:
		case <-time.After(200 * time.Millisecond):
		}
	}
	return r.Repository.QueryQuestions(ctx, quizID, exec...)
}

// spyCache counts invalidations and serves what was set.
type spyCache struct {
	entries       map[string]quiz.Content
	invalidations int
	lastVersion   int
}

func (c *spyCache) Get(_ context.Context, quizID string) (quiz.Content, bool, error) {
	content, ok := c.entries[quizID]
	return content, ok, nil
}

func (c *spyCache) Set(_ context.Context, content quiz.Content) error {
	c.entries[content.Quiz.ID] = content
	return nil
}

func (c *spyCache) Invalidate(_ context.Context, quizID string, version int) error {
	c.invalidations++
	c.lastVersion = version
	delete(c.entries, quizID)
	return nil
}

type fixture struct {
	db   *sqlx.DB
	repo quiz.Repository
	svc  *quiz.Service
	qz   quiz.Quiz
}

func setup(t *testing.T) fixture {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewQuizRepository(db)
	svc := quiz.NewService(db, repo, nil, testutil.NewLogger(), testutil.NewValidator())
	course := testutil.CreateCourse(t, svc, "teacher1", "English B1")
	return fixture{db: db, repo: repo, svc: svc, qz: testutil.CreateQuiz(t, svc, course.ID, "Unit 1")}
}

func sampleImport() quiz.ContentImport {
	double := decimal.NewFromInt(2)
	return quiz.ContentImport{
		Groups: []quiz.NewGroup{
			{
				Instruction: "Listen and answer",
				GroupType:   quiz.GroupListening,
				GroupOrder:  1,
				Assets:      []quiz.NewAsset{{AssetType: quiz.AssetAudio, URL: "https://cdn.test/track1.mp3", MimeType: "audio/mpeg"}},
				Questions: []quiz.NewQuestion{
					{
						Content:       "Where is Tom?",
						QuestionType:  quiz.QuestionMultipleChoice,
						QuestionOrder: 1,
						Options: []quiz.NewOption{
							{Content: "At home", IsCorrect: true},
							{Content: "At school"},
							{Content: "At work"},
						},
					},
					{
						Content:       "Tom is happy.",
						QuestionType:  quiz.QuestionTrueFalse,
						QuestionOrder: 2,
						Options:       []quiz.NewOption{{Content: "True"}, {Content: "False", IsCorrect: true}},
					},
				},
			},
			{
				Instruction: "Read the passage",
				GroupType:   quiz.GroupReading,
				GroupOrder:  2,
				Assets:      []quiz.NewAsset{{AssetType: quiz.AssetText, ContentText: "Tom lives in Leeds.", Caption: "Passage"}},
				Questions: []quiz.NewQuestion{{
					Content:      "Where does Tom live?",
					QuestionType: quiz.QuestionShortAnswer,
					Assets:       []quiz.NewAsset{{AssetType: quiz.AssetImage, URL: "https://cdn.test/map.png"}},
				}},
			},
		},
		Questions: []quiz.NewQuestion{{
			Content:       "Describe your town.",
			QuestionType:  quiz.QuestionEssay,
			QuestionOrder: 1,
			ScoreWeight:   &double,
			MetaJSON:      `{"minWords":80}`,
		}},
	}
}

// snapshot is the content without generated ids, comparable across replacements.
func snapshot(t *testing.T, svc *quiz.Service, quizID string) quiz.ContentImport {
	t.Helper()
	content, err := svc.GetContent(context.Background(), quizID)
	require.NoError(t, err)
	ci := content.ToImport()
	ci.Version = nil
	return ci
}

func tableCounts(t *testing.T, db *sqlx.DB) map[string]int {
	t.Helper()
	counts := make(map[string]int)
	for _, table := range []string{"question_groups", "questions", "options", "assets"} {
		counts[table] = testutil.CountRows(t, db, table)
	}
	return counts
}

func TestService_ReplaceContent(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	res, err := f.svc.ReplaceContent(ctx, f.qz.ID, sampleImport())
	require.NoError(t, err)
	assert.Equal(t, quiz.ReplacementResult{Groups: 2, Questions: 4, Options: 5, Assets: 3, Version: 2}, res)
	assert.Equal(t, map[string]int{"question_groups": 2, "questions": 4, "options": 5, "assets": 3}, tableCounts(t, f.db))

	content, err := f.svc.GetContent(ctx, f.qz.ID)
	require.NoError(t, err)
	assert.Equal(t, res, content.Counts())
	assert.Equal(t, 2, content.Quiz.Version)

	listening := content.Groups[0]
	assert.Equal(t, "Listen and answer", listening.Instruction)
	assert.Equal(t, "https://cdn.test/track1.mp3", listening.Assets[0].URL.String)
	assert.Equal(t, quiz.GroupOwner{GroupID: listening.ID}, listening.Assets[0].Owner)
	require.Len(t, listening.Questions, 2)
	assert.Equal(t, []string{"At home", "At school", "At work"}, optionContents(listening.Questions[0].Options))
	assert.True(t, listening.Questions[0].Options[0].IsCorrect)
	assert.True(t, listening.Questions[0].ScoreWeight.Equal(quiz.DefaultScoreWeight))

	reading := content.Groups[1]
	assert.Equal(t, "Tom lives in Leeds.", reading.Assets[0].ContentText.String)
	assert.Equal(t, "https://cdn.test/map.png", reading.Questions[0].Assets[0].URL.String)

	require.Len(t, content.Questions, 1)
	essay := content.Questions[0]
	assert.False(t, essay.GroupID.Valid)
	assert.True(t, essay.ScoreWeight.Equal(decimal.NewFromInt(2)))
	assert.JSONEq(t, `{"minWords":80}`, essay.MetaJSON.String)
}

func TestService_ReplaceContent_idempotent(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.ReplaceContent(ctx, f.qz.ID, sampleImport())
	require.NoError(t, err)
	first := snapshot(t, f.svc, f.qz.ID)
	firstCounts := tableCounts(t, f.db)

	res, err := f.svc.ReplaceContent(ctx, f.qz.ID, sampleImport())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Version)
	assert.Equal(t, first, snapshot(t, f.svc, f.qz.ID))
	assert.Equal(t, firstCounts, tableCounts(t, f.db))
}

func TestService_ReplaceContent_shrinkLeavesNoOrphans(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.ReplaceContent(ctx, f.qz.ID, sampleImport())
	require.NoError(t, err)

	small := quiz.ContentImport{Groups: []quiz.NewGroup{{
		GroupType: quiz.GroupGrammar,
		Questions: []quiz.NewQuestion{{
			Content:      "She ___ to school.",
			QuestionType: quiz.QuestionFillBlank,
			Assets:       []quiz.NewAsset{{AssetType: quiz.AssetImage, URL: "https://cdn.test/school.png"}},
		}},
	}}}
	_, err = f.svc.ReplaceContent(ctx, f.qz.ID, small)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"question_groups": 1, "questions": 1, "options": 0, "assets": 1}, tableCounts(t, f.db))

	var orphans int
	require.NoError(t, f.db.Get(&orphans, `SELECT COUNT(*) FROM assets a
		WHERE NOT EXISTS (SELECT 1 FROM question_groups g WHERE a.owner_type = 1 AND g.id = a.owner_id)
		AND NOT EXISTS (SELECT 1 FROM questions q WHERE a.owner_type = 2 AND q.id = a.owner_id)`))
	assert.Zero(t, orphans)
}

func TestService_ReplaceContent_empty(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.ReplaceContent(ctx, f.qz.ID, sampleImport())
	require.NoError(t, err)

	res, err := f.svc.ReplaceContent(ctx, f.qz.ID, quiz.ContentImport{})
	require.NoError(t, err)
	assert.Equal(t, quiz.ReplacementResult{Version: 3}, res)
	assert.Equal(t, map[string]int{"question_groups": 0, "questions": 0, "options": 0, "assets": 0}, tableCounts(t, f.db))

	content, err := f.svc.GetContent(ctx, f.qz.ID)
	require.NoError(t, err)
	assert.Empty(t, content.Groups)
	assert.Empty(t, content.Questions)
}

func TestService_ReplaceContent_ordering(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	ci := quiz.ContentImport{
		Groups: []quiz.NewGroup{
			{Instruction: "third", GroupType: quiz.GroupGeneral, GroupOrder: 2},
			{Instruction: "first", GroupType: quiz.GroupGeneral, GroupOrder: 1},
			{Instruction: "second", GroupType: quiz.GroupGeneral, GroupOrder: 1},
		},
		Questions: []quiz.NewQuestion{
			{Content: "b", QuestionType: quiz.QuestionEssay, QuestionOrder: 5},
			{Content: "a", QuestionType: quiz.QuestionEssay, QuestionOrder: 0},
			{Content: "c", QuestionType: quiz.QuestionEssay, QuestionOrder: 5},
		},
	}
	_, err := f.svc.ReplaceContent(ctx, f.qz.ID, ci)
	require.NoError(t, err)

	content, err := f.svc.GetContent(ctx, f.qz.ID)
	require.NoError(t, err)
	var instructions, questions []string
	for _, g := range content.Groups {
		instructions = append(instructions, g.Instruction)
	}
	for _, q := range content.Questions {
		questions = append(questions, q.Content)
	}
	assert.Equal(t, []string{"first", "second", "third"}, instructions)
	assert.Equal(t, []string{"a", "b", "c"}, questions)
}

func TestService_ReplaceContent_validationLeavesContentUntouched(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.ReplaceContent(ctx, f.qz.ID, sampleImport())
	require.NoError(t, err)
	before := snapshot(t, f.svc, f.qz.ID)

	bad := sampleImport()
	bad.Groups[1].Questions[0].Content = "  "
	_, err = f.svc.ReplaceContent(ctx, f.qz.ID, bad)
	require.Error(t, err)
	assert.True(t, core.IsValidationError(err))

	assert.Equal(t, before, snapshot(t, f.svc, f.qz.ID))
	qz, err := f.svc.GetQuiz(ctx, f.qz.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, qz.Version)
}

func TestService_ReplaceContent_rollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.ReplaceContent(ctx, f.qz.ID, sampleImport())
	require.NoError(t, err)
	before := snapshot(t, f.svc, f.qz.ID)
	beforeCounts := tableCounts(t, f.db)

	failing := quiz.NewService(f.db, failingRepo{f.repo}, nil, testutil.NewLogger(), testutil.NewValidator())
	next := quiz.ContentImport{Questions: []quiz.NewQuestion{{
		Content:      "Yes or no?",
		QuestionType: quiz.QuestionTrueFalse,
		Options:      []quiz.NewOption{{Content: "Yes", IsCorrect: true}, {Content: "No"}},
	}}}
	_, err = failing.ReplaceContent(ctx, f.qz.ID, next)
	require.Error(t, err)
	assert.Equal(t, errBoom, pkgerrors.Cause(err))

	assert.Equal(t, before, snapshot(t, f.svc, f.qz.ID))
	assert.Equal(t, beforeCounts, tableCounts(t, f.db))
	qz, err := f.svc.GetQuiz(ctx, f.qz.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, qz.Version)
}

func TestService_ReplaceContent_versionCheck(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	vPtr := func(v int) *int { return &v }

	tests := []struct {
		name    string
		quizID  string
		version *int
		wantErr error
	}{
		{name: "unknown quiz", quizID: "nope", wantErr: quiz.ErrNotFound},
		{name: "stale version", quizID: f.qz.ID, version: vPtr(7), wantErr: quiz.ErrVersionConflict},
		{name: "current version", quizID: f.qz.ID, version: vPtr(1)},
		{name: "no version", quizID: f.qz.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ci := sampleImport()
			ci.Version = tt.version
			_, err := f.svc.ReplaceContent(ctx, tt.quizID, ci)
			if pkgerrors.Cause(err) != tt.wantErr {
				t.Errorf("ReplaceContent() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_GetContent_cache(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	cache := &spyCache{entries: make(map[string]quiz.Content)}
	svc := quiz.NewService(f.db, f.repo, cache, testutil.NewLogger(), testutil.NewValidator())

	_, err := svc.GetContent(ctx, f.qz.ID)
	require.NoError(t, err)
	require.Contains(t, cache.entries, f.qz.ID)

	_, err = svc.ReplaceContent(ctx, f.qz.ID, sampleImport())
	require.NoError(t, err)
	assert.Equal(t, 1, cache.invalidations)
	assert.Equal(t, 2, cache.lastVersion)
	assert.NotContains(t, cache.entries, f.qz.ID)

	content, err := svc.GetContent(ctx, f.qz.ID)
	require.NoError(t, err)
	assert.Len(t, content.Groups, 2)
	assert.Equal(t, content, cache.entries[f.qz.ID])
}

func TestService_CheckOwnership(t *testing.T) {
	f := setup(t)
	assert.NoError(t, f.svc.CheckOwnership(f.qz, "teacher1"))
	assert.Equal(t, quiz.ErrForbidden, f.svc.CheckOwnership(f.qz, "teacher2"))
	assert.Equal(t, quiz.ErrForbidden, f.svc.CheckOwnership(f.qz, ""))
}

func TestService_CreateQuiz(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	tests := []struct {
		name     string
		courseID string
		title    string
		quizType string
		wantErr  func(error) bool
	}{
		{name: "blank title", courseID: f.qz.CourseID, title: " ", quizType: quiz.TypeReading, wantErr: core.IsValidationError},
		{name: "unknown type", courseID: f.qz.CourseID, title: "Unit 2", quizType: "poetry", wantErr: core.IsValidationError},
		{name: "unknown course", courseID: "nope", title: "Unit 2", quizType: quiz.TypeReading, wantErr: func(err error) bool {
			return pkgerrors.Cause(err) == quiz.ErrCourseNotFound
		}},
		{name: "valid", courseID: f.qz.CourseID, title: "Unit 2", quizType: "Writing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qz, err := f.svc.CreateQuiz(ctx, tt.courseID, tt.title, "", tt.quizType)
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, qz.Version)
			assert.Equal(t, quiz.TypeWriting, qz.QuizType)
			assert.Equal(t, "teacher1", qz.TeacherID)

			got, err := f.svc.GetQuiz(ctx, qz.ID)
			require.NoError(t, err)
			assert.Equal(t, qz.Title, got.Title)
			assert.True(t, got.IsActive)
		})
	}
}

func TestService_ReplaceContent_shrinkExactShape(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	twoOptions := func() []quiz.NewOption {
		return []quiz.NewOption{{Content: "yes", IsCorrect: true}, {Content: "no"}}
	}
	question := func(content string) quiz.NewQuestion {
		return quiz.NewQuestion{Content: content, QuestionType: quiz.QuestionTrueFalse, Options: twoOptions()}
	}
	large := quiz.ContentImport{Groups: []quiz.NewGroup{
		{
			GroupType: quiz.GroupReading,
			Assets:    []quiz.NewAsset{{AssetType: quiz.AssetText, ContentText: "First passage"}},
			Questions: []quiz.NewQuestion{question("q1"), question("q2")},
		},
		{
			GroupType: quiz.GroupListening,
			Assets:    []quiz.NewAsset{{AssetType: quiz.AssetAudio, URL: "https://cdn.test/a.mp3"}},
			Questions: []quiz.NewQuestion{question("q3")},
		},
	}}
	res, err := f.svc.ReplaceContent(ctx, f.qz.ID, large)
	require.NoError(t, err)
	assert.Equal(t, quiz.ReplacementResult{Groups: 2, Questions: 3, Options: 6, Assets: 2, Version: 2}, res)

	small := quiz.ContentImport{Groups: []quiz.NewGroup{{
		GroupType: quiz.GroupVocabulary,
		Questions: []quiz.NewQuestion{{
			Content:      "Pick the noun",
			QuestionType: quiz.QuestionMultipleChoice,
			Options: []quiz.NewOption{
				{Content: "run"}, {Content: "dog", IsCorrect: true}, {Content: "blue"}, {Content: "quickly"},
			},
		}},
	}}}
	res, err = f.svc.ReplaceContent(ctx, f.qz.ID, small)
	require.NoError(t, err)
	assert.Equal(t, quiz.ReplacementResult{Groups: 1, Questions: 1, Options: 4, Assets: 0, Version: 3}, res)
	assert.Equal(t, map[string]int{"question_groups": 1, "questions": 1, "options": 4, "assets": 0}, tableCounts(t, f.db))

	content, err := f.svc.GetContent(ctx, f.qz.ID)
	require.NoError(t, err)
	require.Len(t, content.Groups, 1)
	assert.Empty(t, content.Groups[0].Assets)
	require.Len(t, content.Groups[0].Questions, 1)
	assert.Equal(t, []string{"run", "dog", "blue", "quickly"}, optionContents(content.Groups[0].Questions[0].Options))
	assert.Empty(t, content.Questions)
}

func TestService_GetContent_concurrentReplace(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.ReplaceContent(ctx, f.qz.ID, sampleImport())
	require.NoError(t, err)

	next := quiz.ContentImport{Questions: []quiz.NewQuestion{{Content: "Only one", QuestionType: quiz.QuestionEssay}}}
	repo := &replacingRepo{
		Repository: f.repo,
		replace: func() error {
			_, err := f.svc.ReplaceContent(ctx, f.qz.ID, next)
			return err
		},
		done: make(chan struct{}),
	}
	cache := &spyCache{entries: make(map[string]quiz.Content)}
	reader := quiz.NewService(f.db, repo, cache, testutil.NewLogger(), testutil.NewValidator())

	content, err := reader.GetContent(ctx, f.qz.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz.ReplacementResult{Groups: 2, Questions: 4, Options: 5, Assets: 3, Version: 2}, content.Counts())
	assert.Equal(t, content, cache.entries[f.qz.ID])

	<-repo.done
	require.NoError(t, repo.err)
	content, err = f.svc.GetContent(ctx, f.qz.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz.ReplacementResult{Questions: 1, Version: 3}, content.Counts())
}

func optionContents(opts []quiz.Option) []string {
	contents := make([]string, 0, len(opts))
	for _, o := range opts {
		contents = append(contents, o.Content)
	}
	return contents
}
