package domain

import "time"

// CollectionFilters are evaluated by clients against paper attributes;
// the server stores them as an opaque structure.
type CollectionFilters struct {
	Status     *PaperStatus `json:"status,omitempty"`
	Tags       []string     `json:"tags,omitempty"`
	SearchTerm string       `json:"searchTerm,omitempty"`
}

type Collection struct {
	ID      int64             `json:"id"`
	OwnerID string            `json:"ownerId"`
	Name    string            `json:"name"`
	Icon    string            `json:"icon"`
	Color   string            `json:"color"`
	Filters CollectionFilters `json:"filters"`

	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt"`
	ClientTag string     `json:"clientTag"`
}

func (c *Collection) IsDeleted() bool {
	return c.DeletedAt != nil
}

type CollectionChange struct {
	ID      IDRef      `json:"id"`
	LocalID IDRef      `json:"localId"`
	Version Opt[int64] `json:"version"`

	Name    Opt[string]            `json:"name"`
	Icon    Opt[string]            `json:"icon"`
	Color   Opt[string]            `json:"color"`
	Filters Opt[CollectionFilters] `json:"filters"`
}

func (c *CollectionChange) Ref() IDRef {
	if !c.ID.IsZero() {
		return c.ID
	}
	return c.LocalID
}
