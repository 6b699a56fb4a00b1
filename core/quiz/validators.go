package quiz

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	groupTypeTag     = "group_type"
	questionTypeTag  = "question_type"
	assetTypeTag     = "asset_type"
	urlOrContentTag  = "url_or_content"
	correctOptionTag = "correct_option"
	scoreWeightTag   = "score_weight"

	// questions.score_weight is NUMERIC(8,2)
	maxScoreWeight    = decimal.RequireFromString("999999.99")
	scoreWeightPlaces = int32(2)
)

// InitValidators registers the quiz content validators. core.InitValidators must run first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(groupTypeTag, oneOfValidation(GroupTypes))
	_ = validate.RegisterValidation(questionTypeTag, oneOfValidation(QuestionTypes))
	_ = validate.RegisterValidation(assetTypeTag, oneOfValidation(AssetTypes))

	validate.RegisterStructValidation(newAssetStructValidation, NewAsset{})
	validate.RegisterStructValidation(newQuestionStructValidation, NewQuestion{})

	registerCustomValidationsTranslations(
		validate, translator,
		groupTypeTag, questionTypeTag, assetTypeTag, urlOrContentTag, correctOptionTag, scoreWeightTag,
	)
}

// registerCustomValidationsTranslations registers error messages for custom validations.
// the english translations are already registered, so a noop register func is passed.
func registerCustomValidationsTranslations(validate *validator.Validate, translator ut.Translator, tags ...string) {
	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range tags {
		_ = validate.RegisterTranslation(tag, translator, registerFn, translateCustomValidationErrs)
	}
}

func translateCustomValidationErrs(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case groupTypeTag:
		return "must be one of: " + strings.Join(GroupTypes, ", ")
	case questionTypeTag:
		return "must be one of: " + strings.Join(QuestionTypes, ", ")
	case assetTypeTag:
		return "must be one of: " + strings.Join(AssetTypes, ", ")
	case urlOrContentTag:
		return "one of url or contentText is required"
	case correctOptionTag:
		return "at least one option must be correct"
	case scoreWeightTag:
		return "must be at most " + maxScoreWeight.String() + " with at most 2 decimal places"
	default:
		return ""
	}
}

// Custom Validators

func oneOfValidation(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		if str, ok := fl.Field().Interface().(string); ok {
			return contains(allowed, str)
		}
		return false
	}
}

// newAssetStructValidation does NewAsset's struct level validation
func newAssetStructValidation(sl validator.StructLevel) {
	if na, ok := sl.Current().Interface().(NewAsset); ok {
		if strings.TrimSpace(na.URL) == "" && strings.TrimSpace(na.ContentText) == "" {
			sl.ReportError(na.URL, "url", "URL", urlOrContentTag, "")
			sl.ReportError(na.ContentText, "contentText", "ContentText", urlOrContentTag, "")
		}
	}
}

// newQuestionStructValidation does NewQuestion's struct level validation
func newQuestionStructValidation(sl validator.StructLevel) {
	if nq, ok := sl.Current().Interface().(NewQuestion); ok {
		if w := nq.ScoreWeight; w != nil && (w.GreaterThan(maxScoreWeight) || !w.Equal(w.Round(scoreWeightPlaces))) {
			sl.ReportError(nq.ScoreWeight, "scoreWeight", "ScoreWeight", scoreWeightTag, "")
		}

		if !IsChoiceType(nq.QuestionType) {
			return
		}
		for _, o := range nq.Options {
			if o.IsCorrect {
				return
			}
		}
		sl.ReportError(nq.Options, "options", "Options", correctOptionTag, "")
	}
}
