package domainstore

import (
	"encoding/json"
	"reflect"

	"github.com/cuemby/storagecore/pkg/domain"
	bolt "go.etcd.io/bbolt"
)

type hostAttributeStore struct {
	db *bolt.DB
}

// SaveHostAttributes reports false, without writing anything, if attrs is
// identical to the record already stored for this host.
func (s *hostAttributeStore) SaveHostAttributes(attrs domain.HostAttributes) (bool, error) {
	changed := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketHostAttributes)
		existing := b.Get([]byte(attrs.Host))
		if existing != nil {
			var prev domain.HostAttributes
			if err := json.Unmarshal(existing, &prev); err != nil {
				return err
			}
			if reflect.DeepEqual(prev, attrs) {
				return nil
			}
		}
		changed = true
		data, err := json.Marshal(attrs)
		if err != nil {
			return err
		}
		return b.Put([]byte(attrs.Host), data)
	})
	return changed, err
}

func (s *hostAttributeStore) FetchHostAttributes() ([]domain.HostAttributes, error) {
	var attrs []domain.HostAttributes
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHostAttributes).ForEach(func(k, v []byte) error {
			var a domain.HostAttributes
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			attrs = append(attrs, a)
			return nil
		})
	})
	return attrs, err
}
