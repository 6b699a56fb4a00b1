package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/lingo/core/quiz"
)

type quizApi struct {
	svc *quiz.Service
}

func registerQuizAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *quiz.Service) {
	api := quizApi{svc: svc}

	// teacher endpoints
	tg := g.Group("/teacher/quiz/:quizId", jwt, teacherMiddleware())
	tg.POST("/import", api.importContent)
	tg.GET("/content", api.retrieveContent)

	// student endpoints
	g.GET("/quiz/:quizId", api.retrievePublicContent, jwt)
}

type ImportResponse struct {
	Success string                 `json:"success"`
	Result  quiz.ReplacementResult `json:"result"`
}

// ownedQuiz returns the path's quiz if the authenticated teacher owns it.
func (api *quizApi) ownedQuiz(ctx echo.Context) (quiz.Quiz, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "getting context claims")
	}
	qz, err := api.svc.GetQuiz(ctx.Request().Context(), ctx.Param("quizId"))
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "getting quiz")
	}
	if err = api.svc.CheckOwnership(qz, claims.Subject); err != nil {
		return quiz.Quiz{}, err
	}
	return qz, nil
}

// Handlers

func (api *quizApi) importContent(ctx echo.Context) error {
	qz, err := api.ownedQuiz(ctx)
	if err != nil {
		return err
	}

	var data quiz.ContentImport
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ContentImport")
	}

	res, err := api.svc.ReplaceContent(ctx.Request().Context(), qz.ID, data)
	if err != nil {
		return errors.Wrap(err, "replacing quiz content")
	}

	return ctx.JSON(http.StatusOK, ImportResponse{
		Success: fmt.Sprintf(
			"Imported %d groups, %d questions, %d options and %d assets into %q",
			res.Groups, res.Questions, res.Options, res.Assets, qz.Title,
		),
		Result: res,
	})
}

func (api *quizApi) retrieveContent(ctx echo.Context) error {
	qz, err := api.ownedQuiz(ctx)
	if err != nil {
		return err
	}

	content, err := api.svc.GetContent(ctx.Request().Context(), qz.ID)
	if err != nil {
		return errors.Wrap(err, "getting quiz content")
	}
	return ctx.JSON(http.StatusOK, content)
}

func (api *quizApi) retrievePublicContent(ctx echo.Context) error {
	content, err := api.svc.GetContent(ctx.Request().Context(), ctx.Param("quizId"))
	if err != nil {
		return errors.Wrap(err, "getting quiz content")
	}
	if !content.Quiz.IsActive {
		return quiz.ErrNotFound
	}
	return ctx.JSON(http.StatusOK, newPublicContent(content))
}

// Public (student) views: no answer keys.

type (
	PublicOption struct {
		ID      string `json:"id"`
		Content string `json:"content"`
	}

	PublicQuestion struct {
		ID            string          `json:"id"`
		GroupID       null.String     `json:"groupId"`
		Content       string          `json:"content"`
		QuestionType  string          `json:"questionType"`
		QuestionOrder int             `json:"questionOrder"`
		ScoreWeight   decimal.Decimal `json:"scoreWeight"`
		Assets        []quiz.Asset    `json:"assets"`
		Options       []PublicOption  `json:"options"`
	}

	PublicGroup struct {
		ID          string           `json:"id"`
		Instruction string           `json:"instruction"`
		GroupType   string           `json:"groupType"`
		GroupOrder  int              `json:"groupOrder"`
		Assets      []quiz.Asset     `json:"assets"`
		Questions   []PublicQuestion `json:"questions"`
	}

	PublicContent struct {
		Quiz      quiz.Quiz        `json:"quiz"`
		Groups    []PublicGroup    `json:"groups"`
		Questions []PublicQuestion `json:"questions"`
	}
)

func newPublicQuestions(qcs []quiz.QuestionContent) []PublicQuestion {
	pqs := make([]PublicQuestion, 0, len(qcs))
	for _, qc := range qcs {
		opts := make([]PublicOption, 0, len(qc.Options))
		for _, o := range qc.Options {
			opts = append(opts, PublicOption{ID: o.ID, Content: o.Content})
		}
		pqs = append(pqs, PublicQuestion{
			ID:            qc.ID,
			GroupID:       qc.GroupID,
			Content:       qc.Content,
			QuestionType:  qc.QuestionType,
			QuestionOrder: qc.QuestionOrder,
			ScoreWeight:   qc.ScoreWeight,
			Assets:        qc.Assets,
			Options:       opts,
		})
	}
	return pqs
}

func newPublicContent(c quiz.Content) PublicContent {
	pc := PublicContent{
		Quiz:      c.Quiz,
		Groups:    make([]PublicGroup, 0, len(c.Groups)),
		Questions: newPublicQuestions(c.Questions),
	}
	for _, g := range c.Groups {
		pc.Groups = append(pc.Groups, PublicGroup{
			ID:          g.ID,
			Instruction: g.Instruction,
			GroupType:   g.GroupType,
			GroupOrder:  g.GroupOrder,
			Assets:      g.Assets,
			Questions:   newPublicQuestions(g.Questions),
		})
	}
	return pc
}
