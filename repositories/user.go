//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"pingr/domain/chat"
	apperrors "pingr/errors"
)

type IUserRepository interface {
	CreateUser(email, fullName, hashedPassword string) (chat.User, error)
	GetUserByEmail(email string) (User, error)
	GetUserByID(id string) (User, error)
	ListOthers(viewerID string) ([]chat.User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// User is the repository-level representation of an account. It is the only
// place where the password hash is visible.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	CreatedAt    time.Time
}

// Two key families:
//
//	user:{email} -> account record (JSON)
//	uid:{id}     -> email
//
// Email is the natural uniqueness boundary, the uid family resolves the
// opaque identity carried by tokens and messages back to it.
func (u UserRepository) CreateUser(email, fullName, hashedPassword string) (chat.User, error) {
	record := User{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     fullName,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return chat.User{}, err
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		key := []byte("user:" + email)
		if _, err := txn.Get(key); err == nil {
			return apperrors.ErrUserAlreadyExists
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set([]byte("uid:"+record.ID), []byte(email))
	})
	if err != nil {
		return chat.User{}, err
	}
	return toPublicUser(record), nil
}

func (u UserRepository) GetUserByEmail(email string) (User, error) {
	var record User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("user:" + email))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err == badger.ErrKeyNotFound {
		return User{}, apperrors.ErrUserNotFound
	}
	return record, err
}

func (u UserRepository) GetUserByID(id string) (User, error) {
	var email string
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("uid:" + id))
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		email = string(value)
		return nil
	})
	if err == badger.ErrKeyNotFound {
		return User{}, apperrors.ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u.GetUserByEmail(email)
}

// ListOthers returns every account except the viewer's, in storage order.
// This feeds the sidebar next to the unseen-counter mapping.
func (u UserRepository) ListOthers(viewerID string) ([]chat.User, error) {
	var users []chat.User
	prefix := []byte("user:")

	err := u.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var record User
				if err := json.Unmarshal(val, &record); err != nil {
					return err
				}
				if record.ID != viewerID {
					users = append(users, toPublicUser(record))
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return users, err
}

func toPublicUser(record User) chat.User {
	return chat.User{
		ID:        record.ID,
		Email:     record.Email,
		FullName:  record.FullName,
		CreatedAt: record.CreatedAt,
	}
}
