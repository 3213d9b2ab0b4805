package domain

import "time"

type PaperStatus string

const (
	PaperStatusToRead   PaperStatus = "to_read"
	PaperStatusReading  PaperStatus = "reading"
	PaperStatusFinished PaperStatus = "finished"
	PaperStatusArchived PaperStatus = "archived"
)

func (s PaperStatus) Valid() bool {
	switch s {
	case PaperStatusToRead, PaperStatusReading, PaperStatusFinished, PaperStatusArchived:
		return true
	}
	return false
}

type Paper struct {
	ID              int64       `json:"id"`
	OwnerID         string      `json:"ownerId"`
	Title           string      `json:"title"`
	Authors         []string    `json:"authors"`
	Year            *int        `json:"year"`
	Journal         string      `json:"journal"`
	DOI             *string     `json:"doi"`
	Abstract        string      `json:"abstract"`
	Tags            []string    `json:"tags"`
	Status          PaperStatus `json:"status"`
	RelatedPaperIDs []int64     `json:"relatedPaperIds"`
	Notes           string      `json:"notes"`
	PDFKey          *string     `json:"pdfKey"`
	PDFSize         *int64      `json:"pdfSize"`

	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt"`
	ClientTag string     `json:"clientTag"`
}

func (p *Paper) IsDeleted() bool {
	return p.DeletedAt != nil
}

// PaperChange is one paper entry of a sync batch or a direct API write.
// For creates, LocalID (or ID) is the client's handle for the new record;
// for updates ID names the record to patch. Only fields that were sent
// are applied on update.
type PaperChange struct {
	ID      IDRef      `json:"id"`
	LocalID IDRef      `json:"localId"`
	Version Opt[int64] `json:"version"`

	Title           Opt[string]      `json:"title"`
	Authors         Opt[[]string]    `json:"authors"`
	Year            Opt[int]         `json:"year"`
	Journal         Opt[string]      `json:"journal"`
	DOI             Opt[string]      `json:"doi"`
	Abstract        Opt[string]      `json:"abstract"`
	Tags            Opt[[]string]    `json:"tags"`
	Status          Opt[PaperStatus] `json:"status"`
	RelatedPaperIDs Opt[[]IDRef]     `json:"relatedPaperIds"`
	Notes           Opt[string]      `json:"notes"`
	PDFKey          Opt[string]      `json:"pdfKey"`
	PDFSize         Opt[int64]       `json:"pdfSize"`
}

// Ref returns the token a conflict entry should be reported under.
func (c *PaperChange) Ref() IDRef {
	if !c.ID.IsZero() {
		return c.ID
	}
	return c.LocalID
}
