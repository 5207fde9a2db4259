package domainstore

import (
	bolt "go.etcd.io/bbolt"
)

type schedulerStore struct {
	db *bolt.DB
}

func (s *schedulerStore) SaveFrameworkID(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketScheduler).Put(frameworkIDKey, []byte(id))
	})
}

func (s *schedulerStore) FetchFrameworkID() (string, bool, error) {
	var id string
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketScheduler).Get(frameworkIDKey)
		if data == nil {
			return nil
		}
		id = string(data)
		ok = true
		return nil
	})
	return id, ok, err
}
