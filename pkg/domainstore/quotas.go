package domainstore

import (
	"encoding/json"

	"github.com/cuemby/storagecore/pkg/domain"
	bolt "go.etcd.io/bbolt"
)

type quotaStore struct {
	db *bolt.DB
}

func (s *quotaStore) SaveQuota(role string, agg domain.ResourceAggregate) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(agg)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketQuotas).Put([]byte(role), data)
	})
}

func (s *quotaStore) RemoveQuota(role string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQuotas).Delete([]byte(role))
	})
}

func (s *quotaStore) FetchQuotas() (map[string]domain.ResourceAggregate, error) {
	quotas := make(map[string]domain.ResourceAggregate)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQuotas).ForEach(func(k, v []byte) error {
			var agg domain.ResourceAggregate
			if err := json.Unmarshal(v, &agg); err != nil {
				return err
			}
			quotas[string(k)] = agg
			return nil
		})
	})
	return quotas, err
}
