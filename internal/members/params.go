package members

type CreateParams struct {
	ID            string `json:"id"`
	PrimaryUserID string `json:"primaryUserId"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Phone         string `json:"phone"`
}

type DeleteParams struct {
	ID        string
	DeletedBy string
	Hard      bool
}

// UpdateUserParams is a PATCH: nil fields are left alone.
type UpdateUserParams struct {
	UserID   string  `json:"-"`
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
	Timezone *string `json:"timezone"`
}
