package domain

import (
	"encoding/json"
	"time"
)

type AnnotationType string

const (
	AnnotationHighlight AnnotationType = "highlight"
	AnnotationNote      AnnotationType = "note"
	AnnotationBookmark  AnnotationType = "bookmark"
)

func (t AnnotationType) Valid() bool {
	switch t {
	case AnnotationHighlight, AnnotationNote, AnnotationBookmark:
		return true
	}
	return false
}

type Annotation struct {
	ID         int64           `json:"id"`
	OwnerID    string          `json:"ownerId"`
	PaperID    int64           `json:"paperId"`
	Type       AnnotationType  `json:"type"`
	PageNumber *int            `json:"pageNumber"`
	Position   json.RawMessage `json:"position"`
	Content    string          `json:"content"`
	Color      string          `json:"color"`

	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt"`
	ClientTag string     `json:"clientTag"`
}

func (a *Annotation) IsDeleted() bool {
	return a.DeletedAt != nil
}

// AnnotationChange has patch semantics on update: an absent PaperID
// leaves the annotation attached to its current paper.
type AnnotationChange struct {
	ID      IDRef      `json:"id"`
	LocalID IDRef      `json:"localId"`
	Version Opt[int64] `json:"version"`

	PaperID    Opt[IDRef]           `json:"paperId"`
	Type       Opt[AnnotationType]  `json:"type"`
	PageNumber Opt[int]             `json:"pageNumber"`
	Position   Opt[json.RawMessage] `json:"position"`
	Content    Opt[string]          `json:"content"`
	Color      Opt[string]          `json:"color"`
}

func (c *AnnotationChange) Ref() IDRef {
	if !c.ID.IsZero() {
		return c.ID
	}
	return c.LocalID
}
