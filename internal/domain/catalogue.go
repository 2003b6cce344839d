package domain

import (
	"gorm.io/datatypes"
)

// Catalogue is a taxonomy entry (a named participant or series). ID is a
// stable string; Aliases is the ordered list of display names, first one
// canonical.
type Catalogue struct {
	ID       string                      `gorm:"primaryKey;size:64" json:"id"`
	Aliases  datatypes.JSONSlice[string] `json:"aliases"`
	Position int                         `gorm:"not null;default:0;index" json:"position"`
}

func (Catalogue) TableName() string { return "catalogues" }
