package domainstore

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/storagecore/pkg/domain"
	bolt "go.etcd.io/bbolt"
)

type jobStore struct {
	db *bolt.DB
}

func jobKeyBytes(key domain.JobKey) []byte {
	return []byte(fmt.Sprintf("%s/%s/%s", key.Role, key.Environment, key.Name))
}

func (s *jobStore) SaveAcceptedJob(cfg *domain.JobConfiguration) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketJobs).Put(jobKeyBytes(cfg.Key), data)
	})
}

func (s *jobStore) RemoveJob(key domain.JobKey) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobs).Delete(jobKeyBytes(key))
	})
}

func (s *jobStore) FetchJobs() ([]*domain.JobConfiguration, error) {
	var jobs []*domain.JobConfiguration
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobs).ForEach(func(k, v []byte) error {
			var cfg domain.JobConfiguration
			if err := json.Unmarshal(v, &cfg); err != nil {
				return err
			}
			jobs = append(jobs, &cfg)
			return nil
		})
	})
	return jobs, err
}
