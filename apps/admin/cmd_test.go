package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/lingo/core"
	"github.com/trezcool/lingo/core/quiz"
	sqlxrepos "github.com/trezcool/lingo/storage/database/sqlx"
	"github.com/trezcool/lingo/tests"
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	// set up DB & services
	db := testutil.PrepareDB(t)
	logger := testutil.NewLogger()
	validate, translator := testutil.NewValidatorAndTranslator()

	// start CLI
	var out bytes.Buffer
	return &commandLine{
		db:         db,
		logger:     logger,
		translator: translator,
		quizSvc:    quiz.NewService(db, sqlxrepos.NewQuizRepository(db), nil, logger, validate),
		out:        &out,
	}, &out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string // substring of the error message
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if !errors.Is(err, tt.wantErr) {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if !strings.Contains(err.Error(), tt.wantErrStr) {
						t.Errorf("cli.run() error.Error() = %s, want it to contain %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			} else if tt.wantErr != nil || tt.wantErrStr != "" {
				t.Errorf("cli.run() expected an error")
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	gooseRunFunc = func(db *sqlx.DB, logger core.Logger, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	runCLITests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "quiz_tags", "sql"}},
	})
}

func Test_commandLine_run(t *testing.T) {
	cli, out := setup(t)

	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	})
	assert.Contains(t, out.String(), "Usage:")
}

func Test_commandLine_contentRoundTrip(t *testing.T) {
	cli, out := setup(t)
	ctx := context.Background()
	dir := t.TempDir()

	runCLITests(t, cli, []cliTest{
		{name: "addcourse: no args", args: []string{"addcourse"}, wantErr: errHelp},
		{name: "addcourse: no title", args: []string{"addcourse", "-teacher", "t1"}, wantErr: errHelp},
		{name: "addcourse", args: []string{"addcourse", "-teacher", "t1", "-title", "English B2"}},
	})
	courseID := strings.TrimSpace(strings.TrimPrefix(out.String(), "course created: "))
	out.Reset()

	runCLITests(t, cli, []cliTest{
		{name: "addquiz: no type", args: []string{"addquiz", "-course", courseID, "-title", "Unit 1"}, wantErr: errHelp},
		{name: "addquiz: unknown course", args: []string{"addquiz", "-course", "nope", "-title", "Unit 1", "-type", "reading"}, wantErr: quiz.ErrCourseNotFound},
		{name: "addquiz", args: []string{"addquiz", "-course", courseID, "-title", "Unit 1", "-type", "reading"}},
	})
	quizID := strings.TrimSpace(strings.TrimPrefix(out.String(), "quiz created: "))
	out.Reset()

	valid := filepath.Join(dir, "valid.json")
	require.NoError(t, os.WriteFile(valid, []byte(`{
		"groups": [{
			"instruction": "Read the text",
			"groupType": "reading",
			"assets": [{"assetType": "text", "contentText": "Lorem ipsum"}],
			"questions": [{
				"content": "What is it about?",
				"questionType": "multiple_choice",
				"options": [{"content": "Nothing", "isCorrect": true}, {"content": "Everything"}]
			}]
		}],
		"questions": [{"content": "Summarize it.", "questionType": "essay", "scoreWeight": 3}]
	}`), 0o644))
	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"groups": [{"groupType": "reading", "questions": [{"content": "?", "questionType": "essay", "scoreWeight": -1}]}]}`), 0o644))
	exported := filepath.Join(dir, "exported.json")

	runCLITests(t, cli, []cliTest{
		{name: "import: no file", args: []string{"import", "-quiz", quizID}, wantErr: errHelp},
		{name: "import: missing file", args: []string{"import", "-quiz", quizID, "-file", filepath.Join(dir, "nope.json")}, wantErr: os.ErrNotExist},
		{
			name:       "import: invalid content",
			args:       []string{"import", "-quiz", quizID, "-file", invalid},
			wantErrStr: "groups[0].questions[0].scoreWeight",
		},
		{name: "import: unknown quiz", args: []string{"import", "-quiz", "nope", "-file", valid}, wantErr: quiz.ErrNotFound},
		{name: "import", args: []string{"import", "-quiz", quizID, "-file", valid}},
		{name: "export: no quiz", args: []string{"export"}, wantErr: errHelp},
		{name: "export", args: []string{"export", "-quiz", quizID, "-file", exported}},
	})
	assert.Contains(t, out.String(), "imported 1 groups, 2 questions, 2 options and 1 assets (version 2)")

	raw, err := os.ReadFile(exported)
	require.NoError(t, err)
	var ci quiz.ContentImport
	require.NoError(t, json.Unmarshal(raw, &ci))
	require.NotNil(t, ci.Version)
	assert.Equal(t, 2, *ci.Version)

	// re-importing the export converges to the same content
	before, err := cli.quizSvc.GetContent(ctx, quizID)
	require.NoError(t, err)
	runCLITests(t, cli, []cliTest{{name: "re-import", args: []string{"import", "-quiz", quizID, "-file", exported}}})
	after, err := cli.quizSvc.GetContent(ctx, quizID)
	require.NoError(t, err)
	assert.Equal(t, 3, after.Quiz.Version)

	wantImport, gotImport := before.ToImport(), after.ToImport()
	wantImport.Version, gotImport.Version = nil, nil
	assert.Equal(t, wantImport, gotImport)
}
