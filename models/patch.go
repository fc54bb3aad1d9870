package models

// EBookPatch carries the fields an update sets; nil fields are left unchanged.
type EBookPatch struct {
	Title       *string
	Description *string
	Price       *float64
	Image       *string
	Categorie   *string
}

// Empty reports whether the patch sets nothing.
func (p EBookPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Price == nil && p.Image == nil && p.Categorie == nil
}

// UserPatch carries profile fields an update sets.
type UserPatch struct {
	FullName    *string
	PhoneNumber *string
	AuthMethod  *string
	IsAdmin     *bool
}
