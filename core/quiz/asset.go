package quiz

import (
	"fmt"
)

// OwnerType is the storage discriminator of an AssetOwner.
type OwnerType int

const (
	OwnerTypeGroup    OwnerType = 1
	OwnerTypeQuestion OwnerType = 2
)

// AssetOwner is either a GroupOwner or a QuestionOwner.
type AssetOwner interface {
	OwnerType() OwnerType
	OwnerID() string
	isAssetOwner()
}

// GroupOwner attaches an asset to a QuestionGroup (shared material).
type GroupOwner struct {
	GroupID string
}

func (o GroupOwner) OwnerType() OwnerType { return OwnerTypeGroup }
func (o GroupOwner) OwnerID() string      { return o.GroupID }
func (GroupOwner) isAssetOwner()          {}

// QuestionOwner attaches an asset to a single Question.
type QuestionOwner struct {
	QuestionID string
}

func (o QuestionOwner) OwnerType() OwnerType { return OwnerTypeQuestion }
func (o QuestionOwner) OwnerID() string      { return o.QuestionID }
func (QuestionOwner) isAssetOwner()          {}

// NewAssetOwner maps a stored (ownerType, ownerID) pair back to an AssetOwner.
func NewAssetOwner(t OwnerType, id string) (AssetOwner, error) {
	switch t {
	case OwnerTypeGroup:
		return GroupOwner{GroupID: id}, nil
	case OwnerTypeQuestion:
		return QuestionOwner{QuestionID: id}, nil
	default:
		return nil, fmt.Errorf("unknown asset owner type %d", t)
	}
}
