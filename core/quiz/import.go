package quiz

import (
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/lingo/core"
)

// ContentImport is the complete desired content of a quiz.
// Questions holds the questions attached directly to the quiz (no group).
type ContentImport struct {
	Version   *int          `json:"version,omitempty"` // expected quiz version; skipped when nil
	Groups    []NewGroup    `json:"groups" validate:"dive"`
	Questions []NewQuestion `json:"questions,omitempty" validate:"dive"`
}

type NewGroup struct {
	Instruction string        `json:"instruction"`
	GroupType   string        `json:"groupType" validate:"required,group_type"`
	GroupOrder  int           `json:"groupOrder"`
	Assets      []NewAsset    `json:"assets" validate:"dive"`
	Questions   []NewQuestion `json:"questions" validate:"dive"`
}

type NewQuestion struct {
	Content       string           `json:"content" validate:"notblank"`
	QuestionType  string           `json:"questionType" validate:"required,question_type"`
	QuestionOrder int              `json:"questionOrder"`
	ScoreWeight   *decimal.Decimal `json:"scoreWeight,omitempty" validate:"omitempty,gte=0"` // defaults to 1.0
	MetaJSON      string           `json:"metaJson,omitempty" validate:"omitempty,json_text"`
	Assets        []NewAsset       `json:"assets" validate:"dive"`
	Options       []NewOption      `json:"options" validate:"dive"`
}

type NewOption struct {
	Content   string `json:"content" validate:"notblank"`
	IsCorrect bool   `json:"isCorrect"`
}

// NewAsset needs one of URL or ContentText (inline text blocks).
type NewAsset struct {
	AssetType   string `json:"assetType" validate:"required,asset_type"`
	URL         string `json:"url,omitempty" validate:"omitempty,url"`
	ContentText string `json:"contentText,omitempty"`
	Caption     string `json:"caption,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

func (na *NewAsset) clean() {
	na.AssetType = core.CleanString(na.AssetType, true /* lower */)
	na.URL = core.CleanString(na.URL)
	na.Caption = core.CleanString(na.Caption)
	na.MimeType = core.CleanString(na.MimeType, true /* lower */)
}

func (nq *NewQuestion) clean() {
	nq.Content = core.CleanString(nq.Content)
	nq.QuestionType = core.CleanString(nq.QuestionType, true /* lower */)
	nq.MetaJSON = core.CleanString(nq.MetaJSON)
	for i := range nq.Assets {
		nq.Assets[i].clean()
	}
	for i := range nq.Options {
		nq.Options[i].Content = core.CleanString(nq.Options[i].Content)
	}
}

func (ng *NewGroup) clean() {
	ng.Instruction = core.CleanString(ng.Instruction)
	ng.GroupType = core.CleanString(ng.GroupType, true /* lower */)
	for i := range ng.Assets {
		ng.Assets[i].clean()
	}
	for i := range ng.Questions {
		ng.Questions[i].clean()
	}
}

// Validate cleans and validates the whole tree. It does no I/O.
func (ci *ContentImport) Validate(validate *validator.Validate) error {
	for i := range ci.Groups {
		ci.Groups[i].clean()
	}
	for i := range ci.Questions {
		ci.Questions[i].clean()
	}
	return validate.Struct(ci)
}

// tree is the flattened set of rows to insert, parents before children.
type tree struct {
	groups    []QuestionGroup
	questions []Question
	options   []Option
	assets    []Asset
}

func (t tree) result() ReplacementResult {
	return ReplacementResult{
		Groups:    len(t.groups),
		Questions: len(t.questions),
		Options:   len(t.options),
		Assets:    len(t.assets),
	}
}

// build assigns ids to every row of the import. Positions follow the input sequence.
func (ci ContentImport) build(quizID string, newID func() string) tree {
	var t tree

	for gi, ng := range ci.Groups {
		grp := QuestionGroup{
			ID:          newID(),
			QuizID:      quizID,
			Instruction: ng.Instruction,
			GroupType:   ng.GroupType,
			GroupOrder:  ng.GroupOrder,
			Position:    gi,
		}
		t.groups = append(t.groups, grp)
		t.addAssets(GroupOwner{GroupID: grp.ID}, ng.Assets, newID)
		for _, nq := range ng.Questions {
			t.addQuestion(quizID, null.StringFrom(grp.ID), nq, newID)
		}
	}
	for _, nq := range ci.Questions {
		t.addQuestion(quizID, null.String{}, nq, newID)
	}
	return t
}

func (t *tree) addQuestion(quizID string, groupID null.String, nq NewQuestion, newID func() string) {
	weight := DefaultScoreWeight
	if nq.ScoreWeight != nil {
		weight = *nq.ScoreWeight
	}
	qst := Question{
		ID:            newID(),
		QuizID:        quizID,
		GroupID:       groupID,
		Content:       nq.Content,
		QuestionType:  nq.QuestionType,
		QuestionOrder: nq.QuestionOrder,
		ScoreWeight:   weight,
		MetaJSON:      null.NewString(nq.MetaJSON, nq.MetaJSON != ""),
		Position:      len(t.questions),
	}
	t.questions = append(t.questions, qst)
	t.addAssets(QuestionOwner{QuestionID: qst.ID}, nq.Assets, newID)
	for oi, no := range nq.Options {
		t.options = append(t.options, Option{
			ID:         newID(),
			QuestionID: qst.ID,
			Content:    no.Content,
			IsCorrect:  no.IsCorrect,
			Position:   oi,
		})
	}
}

func (t *tree) addAssets(owner AssetOwner, assets []NewAsset, newID func() string) {
	for ai, na := range assets {
		t.assets = append(t.assets, Asset{
			ID:          newID(),
			Owner:       owner,
			AssetType:   na.AssetType,
			URL:         null.NewString(na.URL, na.URL != ""),
			ContentText: null.NewString(na.ContentText, na.ContentText != ""),
			Caption:     null.NewString(na.Caption, na.Caption != ""),
			MimeType:    null.NewString(na.MimeType, na.MimeType != ""),
			Position:    ai,
		})
	}
}
