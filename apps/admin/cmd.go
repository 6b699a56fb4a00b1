package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	ut "github.com/go-playground/universal-translator"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/lingo/core"
	"github.com/trezcool/lingo/core/quiz"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db         *sqlx.DB
	logger     core.Logger
	translator ut.Translator
	quizSvc    *quiz.Service
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                               - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  addcourse -teacher ID -title TITLE                   - create a course owned by a teacher")
	fmt.Fprintln(cli.out, "  addquiz -course ID -title TITLE -type TYPE [-description TEXT] - create an empty quiz")
	fmt.Fprintln(cli.out, "  import -quiz ID -file PATH                           - replace a quiz's content with a JSON file")
	fmt.Fprintln(cli.out, "  export -quiz ID [-file PATH]                         - write a quiz's content as importable JSON")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addCourseCmd := flag.NewFlagSet("addcourse", flag.ExitOnError)
	addCourseTeacher := addCourseCmd.String("teacher", "", "The owning teacher's user ID.")
	addCourseTitle := addCourseCmd.String("title", "", "The course title.")

	addQuizCmd := flag.NewFlagSet("addquiz", flag.ExitOnError)
	addQuizCourse := addQuizCmd.String("course", "", "The course ID.")
	addQuizTitle := addQuizCmd.String("title", "", "The quiz title.")
	addQuizType := addQuizCmd.String("type", "", "The quiz type: listening, reading, writing or speaking.")
	addQuizDescription := addQuizCmd.String("description", "", "An optional description.")

	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importQuiz := importCmd.String("quiz", "", "The quiz ID.")
	importFile := importCmd.String("file", "", "Path to the content JSON file.")

	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	exportQuiz := exportCmd.String("quiz", "", "The quiz ID.")
	exportFile := exportCmd.String("file", "", "Output path. Prints to stdout when empty.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addcourse":
		if err := addCourseCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addCourseTeacher == "" || *addCourseTitle == "" {
			addCourseCmd.Usage()
			return errHelp
		}
		return cli.addCourse(*addCourseTeacher, *addCourseTitle)
	case "addquiz":
		if err := addQuizCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addQuizCourse == "" || *addQuizTitle == "" || *addQuizType == "" {
			addQuizCmd.Usage()
			return errHelp
		}
		return cli.addQuiz(*addQuizCourse, *addQuizTitle, *addQuizDescription, *addQuizType)
	case "import":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importQuiz == "" || *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importContent(*importQuiz, *importFile)
	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *exportQuiz == "" {
			exportCmd.Usage()
			return errHelp
		}
		return cli.exportContent(*exportQuiz, *exportFile)
	default:
		cli.printUsage()
		return errHelp
	}
}
