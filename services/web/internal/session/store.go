package session

import (
	"fmt"
	"time"

	"github.com/boltdb/bolt"
)

var (
	bucketName = []byte("session")
	tokenKey   = []byte("access_token")
)

// Store keeps the bearer token in a BoltDB file.
type Store struct {
	db *bolt.DB
}

var _ CredentialStore = (*Store)(nil)

// OpenStore opens or creates the store at path. The file is locked for the
// lifetime of the Store.
func OpenStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open session store %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create session bucket: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Save(token string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(tokenKey, []byte(token))
	})
}

// Load returns the saved token and whether one was present.
func (s *Store) Load() (string, bool, error) {
	var token string
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketName).Get(tokenKey); v != nil {
			token = string(v)
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("read session store: %w", err)
	}
	return token, token != "", nil
}

func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete(tokenKey)
	})
}

// Close releases the file lock.
func (s *Store) Close() error {
	return s.db.Close()
}
