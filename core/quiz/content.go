package quiz

// Content is the full question hierarchy of a quiz, ordered for display.
type Content struct {
	Quiz      Quiz              `json:"quiz"`
	Groups    []GroupContent    `json:"groups"`
	Questions []QuestionContent `json:"questions"` // ungrouped
}

type GroupContent struct {
	QuestionGroup
	Assets    []Asset           `json:"assets"`
	Questions []QuestionContent `json:"questions"`
}

type QuestionContent struct {
	Question
	Assets  []Asset  `json:"assets"`
	Options []Option `json:"options"`
}

// AssembleContent nests flat rows into a Content tree.
// Rows are expected in display order; children keep the relative order they arrive in.
func AssembleContent(qz Quiz, groups []QuestionGroup, questions []Question, options []Option, assets []Asset) Content {
	groupAssets := make(map[string][]Asset)
	questionAssets := make(map[string][]Asset)
	for _, a := range assets {
		switch o := a.Owner.(type) {
		case GroupOwner:
			groupAssets[o.GroupID] = append(groupAssets[o.GroupID], a)
		case QuestionOwner:
			questionAssets[o.QuestionID] = append(questionAssets[o.QuestionID], a)
		}
	}

	questionOptions := make(map[string][]Option)
	for _, o := range options {
		questionOptions[o.QuestionID] = append(questionOptions[o.QuestionID], o)
	}

	groupQuestions := make(map[string][]QuestionContent)
	ungrouped := make([]QuestionContent, 0)
	for _, q := range questions {
		qc := QuestionContent{
			Question: q,
			Assets:   nonNilAssets(questionAssets[q.ID]),
			Options:  nonNilOptions(questionOptions[q.ID]),
		}
		if q.GroupID.Valid {
			groupQuestions[q.GroupID.String] = append(groupQuestions[q.GroupID.String], qc)
		} else {
			ungrouped = append(ungrouped, qc)
		}
	}

	content := Content{
		Quiz:      qz,
		Groups:    make([]GroupContent, 0, len(groups)),
		Questions: ungrouped,
	}
	for _, g := range groups {
		qcs := groupQuestions[g.ID]
		if qcs == nil {
			qcs = []QuestionContent{}
		}
		content.Groups = append(content.Groups, GroupContent{
			QuestionGroup: g,
			Assets:        nonNilAssets(groupAssets[g.ID]),
			Questions:     qcs,
		})
	}
	return content
}

func nonNilAssets(a []Asset) []Asset {
	if a == nil {
		return []Asset{}
	}
	return a
}

func nonNilOptions(o []Option) []Option {
	if o == nil {
		return []Option{}
	}
	return o
}

// Counts returns the number of rows in the tree.
func (c Content) Counts() ReplacementResult {
	res := ReplacementResult{Groups: len(c.Groups), Version: c.Quiz.Version}
	countQuestion := func(qc QuestionContent) {
		res.Questions++
		res.Options += len(qc.Options)
		res.Assets += len(qc.Assets)
	}
	for _, g := range c.Groups {
		res.Assets += len(g.Assets)
		for _, qc := range g.Questions {
			countQuestion(qc)
		}
	}
	for _, qc := range c.Questions {
		countQuestion(qc)
	}
	return res
}

// ToImport converts the tree back into a ContentImport, expecting the current quiz version.
func (c Content) ToImport() ContentImport {
	version := c.Quiz.Version
	ci := ContentImport{
		Version: &version,
		Groups:  make([]NewGroup, 0, len(c.Groups)),
	}
	for _, g := range c.Groups {
		ng := NewGroup{
			Instruction: g.Instruction,
			GroupType:   g.GroupType,
			GroupOrder:  g.GroupOrder,
			Assets:      toNewAssets(g.Assets),
			Questions:   make([]NewQuestion, 0, len(g.Questions)),
		}
		for _, qc := range g.Questions {
			ng.Questions = append(ng.Questions, toNewQuestion(qc))
		}
		ci.Groups = append(ci.Groups, ng)
	}
	for _, qc := range c.Questions {
		ci.Questions = append(ci.Questions, toNewQuestion(qc))
	}
	return ci
}

func toNewQuestion(qc QuestionContent) NewQuestion {
	weight := qc.ScoreWeight
	nq := NewQuestion{
		Content:       qc.Content,
		QuestionType:  qc.QuestionType,
		QuestionOrder: qc.QuestionOrder,
		ScoreWeight:   &weight,
		MetaJSON:      qc.MetaJSON.String,
		Assets:        toNewAssets(qc.Assets),
		Options:       make([]NewOption, 0, len(qc.Options)),
	}
	for _, o := range qc.Options {
		nq.Options = append(nq.Options, NewOption{Content: o.Content, IsCorrect: o.IsCorrect})
	}
	return nq
}

func toNewAssets(assets []Asset) []NewAsset {
	nas := make([]NewAsset, 0, len(assets))
	for _, a := range assets {
		nas = append(nas, NewAsset{
			AssetType:   a.AssetType,
			URL:         a.URL.String,
			ContentText: a.ContentText.String,
			Caption:     a.Caption.String,
			MimeType:    a.MimeType.String,
		})
	}
	return nas
}
