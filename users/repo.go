package users

// Repo stores local accounts keyed by id and (case-insensitive) email
type Repo interface {
	Upsert(account *Account) error
	Delete(email string) error
	GetByEmail(email string) (*Account, error)
	GetByID(ID string) (*Account, error)
	SetBlocked(email string, blocked bool) error
}
