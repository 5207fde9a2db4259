package domainstore

import (
	"encoding/json"

	"github.com/cuemby/storagecore/pkg/domain"
	bolt "go.etcd.io/bbolt"
)

type lockStore struct {
	db *bolt.DB
}

func (s *lockStore) SaveLock(lock domain.Lock) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(lock)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketLocks).Put([]byte(lock.Key.Path), data)
	})
}

func (s *lockStore) RemoveLock(key domain.LockKey) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLocks).Delete([]byte(key.Path))
	})
}

func (s *lockStore) FetchLocks() ([]domain.Lock, error) {
	var locks []domain.Lock
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLocks).ForEach(func(k, v []byte) error {
			var lock domain.Lock
			if err := json.Unmarshal(v, &lock); err != nil {
				return err
			}
			locks = append(locks, lock)
			return nil
		})
	})
	return locks, err
}
