package quiz

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

// Quiz types
const (
	TypeListening = "listening"
	TypeReading   = "reading"
	TypeWriting   = "writing"
	TypeSpeaking  = "speaking"
)

// Group types
const (
	GroupListening  = "listening"
	GroupReading    = "reading"
	GroupWriting    = "writing"
	GroupSpeaking   = "speaking"
	GroupGrammar    = "grammar"
	GroupVocabulary = "vocabulary"
	GroupGeneral    = "general"
)

// Question types
const (
	QuestionMultipleChoice = "multiple_choice"
	QuestionMultipleSelect = "multiple_select"
	QuestionTrueFalse      = "true_false"
	QuestionFillBlank      = "fill_blank"
	QuestionShortAnswer    = "short_answer"
	QuestionEssay          = "essay"
	QuestionMatching       = "matching"
	QuestionOrdering       = "ordering"
	QuestionSpeaking       = "speaking"
)

// Asset types
const (
	AssetAudio    = "audio"
	AssetImage    = "image"
	AssetText     = "text"
	AssetVideo    = "video"
	AssetDocument = "document"
)

var (
	QuizTypes     = []string{TypeListening, TypeReading, TypeWriting, TypeSpeaking}
	GroupTypes    = []string{GroupListening, GroupReading, GroupWriting, GroupSpeaking, GroupGrammar, GroupVocabulary, GroupGeneral}
	QuestionTypes = []string{
		QuestionMultipleChoice, QuestionMultipleSelect, QuestionTrueFalse, QuestionFillBlank,
		QuestionShortAnswer, QuestionEssay, QuestionMatching, QuestionOrdering, QuestionSpeaking,
	}
	AssetTypes = []string{AssetAudio, AssetImage, AssetText, AssetVideo, AssetDocument}

	// ChoiceTypes are answered by picking options, so they need at least one correct option.
	ChoiceTypes = []string{QuestionMultipleChoice, QuestionMultipleSelect, QuestionTrueFalse}

	DefaultScoreWeight = decimal.NewFromInt(1)
)

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func IsChoiceType(questionType string) bool {
	return contains(ChoiceTypes, questionType)
}

// Course is owned by exactly one teacher.
type Course struct {
	ID        string    `json:"id"`
	TeacherID string    `json:"teacherId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"` // UTC
}

type Quiz struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"courseId"`
	TeacherID   string    `json:"-"` // owner of the course
	Title       string    `json:"title"`
	Description string    `json:"description"`
	QuizType    string    `json:"quizType"`
	IsActive    bool      `json:"isActive"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"createdAt"` // UTC
	UpdatedAt   time.Time `json:"updatedAt"` // UTC
}

type QuestionGroup struct {
	ID          string `json:"id"`
	QuizID      string `json:"quizId"`
	Instruction string `json:"instruction"`
	GroupType   string `json:"groupType"`
	GroupOrder  int    `json:"groupOrder"`
	Position    int    `json:"-"` // insertion sequence; breaks GroupOrder ties
}

type Question struct {
	ID            string          `json:"id"`
	QuizID        string          `json:"quizId"`
	GroupID       null.String     `json:"groupId"`
	Content       string          `json:"content"`
	QuestionType  string          `json:"questionType"`
	QuestionOrder int             `json:"questionOrder"`
	ScoreWeight   decimal.Decimal `json:"scoreWeight"`
	MetaJSON      null.String     `json:"metaJson"`
	Position      int             `json:"-"` // insertion sequence; breaks QuestionOrder ties
}

type Option struct {
	ID         string `json:"id"`
	QuestionID string `json:"questionId"`
	Content    string `json:"content"`
	IsCorrect  bool   `json:"isCorrect"`
	Position   int    `json:"-"`
}

type Asset struct {
	ID          string      `json:"id"`
	Owner       AssetOwner  `json:"-"`
	AssetType   string      `json:"assetType"`
	URL         null.String `json:"url"`
	ContentText null.String `json:"contentText"`
	Caption     null.String `json:"caption"`
	MimeType    null.String `json:"mimeType"`
	Position    int         `json:"-"`
}

// ReplacementResult counts the rows created by a content replacement.
type ReplacementResult struct {
	Groups    int `json:"groups"`
	Questions int `json:"questions"`
	Options   int `json:"options"`
	Assets    int `json:"assets"`
	Version   int `json:"version"` // quiz version after the replacement
}

// DeleteResult counts the rows removed by a content replacement.
type DeleteResult struct {
	Groups    int64
	Questions int64
	Options   int64
	Assets    int64
}
