package gamification

// Query params for ledger listing.
type ListLedgerQuery struct {
	Limit  int  `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=200"`
	Offset int  `query:"offset" json:"offset,omitempty" validate:"min=0"`
	UserID *int `query:"user_id" json:"user_id,omitempty" validate:"omitempty,min=1"`
}
