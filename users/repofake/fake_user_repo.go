package fakeuserrepo

import (
	"strings"
	"sync"

	"github.com/envention-steve/union-ui-sub002/users"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var _ users.Repo = (*FakeUserRepo)(nil)

var ErrNotFound = errors.New("not found")

type FakeUserRepo struct {
	accounts map[string]*users.Account
	emailIds map[string]string // normalised email to account id
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		accounts: make(map[string]*users.Account),
		emailIds: make(map[string]string),
	}
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (ur *FakeUserRepo) Upsert(account *users.Account) error {
	if account == nil {
		return errors.New("account is required")
	}
	if normaliseEmail(account.User.Email) == "" {
		return errors.New("account email is required")
	}

	ur.lock.Lock()
	defer ur.lock.Unlock()

	if account.User.ID == "" {
		account.User.ID = uuid.New().String()
	}
	stored := *account
	ur.accounts[stored.User.ID] = &stored
	ur.emailIds[normaliseEmail(stored.User.Email)] = stored.User.ID
	return nil
}

func (ur *FakeUserRepo) Delete(email string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	key := normaliseEmail(email)
	accountID, ok := ur.emailIds[key]
	if !ok {
		return ErrNotFound
	}
	delete(ur.emailIds, key)
	delete(ur.accounts, accountID)
	return nil
}

func (ur *FakeUserRepo) GetByEmail(email string) (*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	accountID, ok := ur.emailIds[normaliseEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	account := *ur.accounts[accountID]
	return &account, nil
}

func (ur *FakeUserRepo) GetByID(ID string) (*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	stored, ok := ur.accounts[ID]
	if !ok {
		return nil, ErrNotFound
	}
	account := *stored
	return &account, nil
}

func (ur *FakeUserRepo) SetBlocked(email string, blocked bool) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	accountID, ok := ur.emailIds[normaliseEmail(email)]
	if !ok {
		return ErrNotFound
	}
	ur.accounts[accountID].Blocked = blocked
	return nil
}
