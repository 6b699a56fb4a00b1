package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/lingo/core"
	"github.com/trezcool/lingo/core/quiz"
)

func (cli *commandLine) addCourse(teacherID, title string) error {
	course, err := cli.quizSvc.CreateCourse(context.Background(), teacherID, title)
	if err != nil {
		return cli.describe(err)
	}
	fmt.Fprintf(cli.out, "course created: %s\n", course.ID)
	return nil
}

func (cli *commandLine) addQuiz(courseID, title, description, quizType string) error {
	qz, err := cli.quizSvc.CreateQuiz(context.Background(), courseID, title, description, quizType)
	if err != nil {
		return cli.describe(err)
	}
	fmt.Fprintf(cli.out, "quiz created: %s\n", qz.ID)
	return nil
}

// importContent replaces the quiz's content with a ContentImport read from a JSON file.
func (cli *commandLine) importContent(quizID, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading content file")
	}
	var ci quiz.ContentImport
	if err = json.Unmarshal(raw, &ci); err != nil {
		return errors.Wrap(err, "decoding content file")
	}

	res, err := cli.quizSvc.ReplaceContent(context.Background(), quizID, ci)
	if err != nil {
		return cli.describe(err)
	}
	fmt.Fprintf(
		cli.out, "imported %d groups, %d questions, %d options and %d assets (version %d)\n",
		res.Groups, res.Questions, res.Options, res.Assets, res.Version,
	)
	return nil
}

// exportContent writes the quiz's content in the import format.
func (cli *commandLine) exportContent(quizID, path string) error {
	content, err := cli.quizSvc.GetContent(context.Background(), quizID)
	if err != nil {
		return cli.describe(err)
	}
	raw, err := json.MarshalIndent(content.ToImport(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding content")
	}
	raw = append(raw, '\n')

	if path == "" {
		_, err = cli.out.Write(raw)
		return err
	}
	if err = os.WriteFile(path, raw, 0o644); err != nil {
		return errors.Wrap(err, "writing content file")
	}
	fmt.Fprintf(cli.out, "exported %s to %s\n", quizID, path)
	return nil
}

// describe flattens validation errors into a readable message. Other errors are returned as is.
func (cli *commandLine) describe(err error) error {
	var fldErrs map[string]string
	switch origErr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		fldErrs = core.ValidationFieldErrors(origErr, cli.translator)
	case *core.ValidationError:
		fldErrs = make(map[string]string, len(origErr.Fields))
		for _, fErr := range origErr.Fields {
			fldErrs[fErr.Field] = fErr.Error
		}
	default:
		return err
	}
	if len(fldErrs) == 0 {
		return err
	}

	msgs := make([]string, 0, len(fldErrs))
	for fld, msg := range fldErrs {
		msgs = append(msgs, fld+": "+msg)
	}
	sort.Strings(msgs)
	return core.NewValidationError(errors.New("invalid content:\n  " + strings.Join(msgs, "\n  ")))
}
