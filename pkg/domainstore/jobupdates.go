package domainstore

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cuemby/storagecore/pkg/domain"
	bolt "go.etcd.io/bbolt"
)

type jobUpdateStore struct {
	db *bolt.DB
}

// jobUpdateRecord is the on-disk representation of one update's full
// history: its definition plus every event recorded against it.
type jobUpdateRecord struct {
	Update         *domain.JobUpdate
	LockToken      string
	Events         []domain.JobUpdateEvent
	InstanceEvents []domain.JobInstanceUpdateEvent
}

func updateKeyBytes(key domain.JobUpdateKey) []byte {
	return []byte(fmt.Sprintf("%s/%s/%s/%s", key.Job.Role, key.Job.Environment, key.Job.Name, key.ID))
}

func (s *jobUpdateStore) SaveJobUpdate(update *domain.JobUpdate, lockToken string) error {
	key := update.Summary.Key
	if key == nil {
		return fmt.Errorf("job update has no key")
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobUpdates)
		rec := &jobUpdateRecord{Update: update, LockToken: lockToken}
		if existing := b.Get(updateKeyBytes(*key)); existing != nil {
			if err := json.Unmarshal(existing, rec); err != nil {
				return err
			}
			rec.Update = update
			rec.LockToken = lockToken
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := b.Put(updateKeyBytes(*key), data); err != nil {
			return err
		}
		return tx.Bucket(bucketUpdateKeysByID).Put([]byte(key.ID), updateKeyBytes(*key))
	})
}

func (s *jobUpdateStore) SaveJobUpdateEvent(event domain.JobUpdateEvent, key domain.JobUpdateKey) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobUpdates)
		k := updateKeyBytes(key)
		var rec jobUpdateRecord
		if existing := b.Get(k); existing != nil {
			if err := json.Unmarshal(existing, &rec); err != nil {
				return err
			}
		}
		rec.Events = append(rec.Events, event)
		data, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		if err := b.Put(k, data); err != nil {
			return err
		}
		return tx.Bucket(bucketUpdateKeysByID).Put([]byte(key.ID), k)
	})
}

func (s *jobUpdateStore) SaveJobInstanceUpdateEvent(event domain.JobInstanceUpdateEvent, key domain.JobUpdateKey) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobUpdates)
		k := updateKeyBytes(key)
		var rec jobUpdateRecord
		if existing := b.Get(k); existing != nil {
			if err := json.Unmarshal(existing, &rec); err != nil {
				return err
			}
		}
		rec.InstanceEvents = append(rec.InstanceEvents, event)
		data, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		if err := b.Put(k, data); err != nil {
			return err
		}
		return tx.Bucket(bucketUpdateKeysByID).Put([]byte(key.ID), k)
	})
}

// PruneHistory deletes the oldest updates of each job beyond perJobRetain,
// considering only updates whose most recent event is older than
// thresholdMs. It returns the number of updates removed.
func (s *jobUpdateStore) PruneHistory(perJobRetain int, thresholdMs int64) (int, error) {
	pruned := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobUpdates)

		byJob := make(map[domain.JobKey][]string)
		lastEventMs := make(map[string]int64)

		if err := b.ForEach(func(k, v []byte) error {
			var rec jobUpdateRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.Update == nil || rec.Update.Summary.Key == nil {
				return nil
			}
			jobKey := rec.Update.Summary.Key.Job
			byJob[jobKey] = append(byJob[jobKey], string(k))

			var newest int64
			for _, e := range rec.Events {
				if e.TimestampMs > newest {
					newest = e.TimestampMs
				}
			}
			lastEventMs[string(k)] = newest
			return nil
		}); err != nil {
			return err
		}

		for _, keys := range byJob {
			sort.Slice(keys, func(i, j int) bool {
				return lastEventMs[keys[i]] < lastEventMs[keys[j]]
			})
			if len(keys) <= perJobRetain {
				continue
			}
			excess := keys[:len(keys)-perJobRetain]
			for _, k := range excess {
				if lastEventMs[k] >= thresholdMs {
					continue
				}
				if err := b.Delete([]byte(k)); err != nil {
					return err
				}
				pruned++
			}
		}
		return nil
	})
	return pruned, err
}

// FetchJobUpdateDetails returns every stored update with its full event
// history and lock token, for snapshotting.
func (s *jobUpdateStore) FetchJobUpdateDetails() ([]*domain.JobUpdateDetails, error) {
	var details []*domain.JobUpdateDetails
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobUpdates).ForEach(func(k, v []byte) error {
			var rec jobUpdateRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.Update == nil {
				return nil
			}
			details = append(details, &domain.JobUpdateDetails{
				Update:         rec.Update,
				LockToken:      rec.LockToken,
				Events:         rec.Events,
				InstanceEvents: rec.InstanceEvents,
			})
			return nil
		})
	})
	return details, err
}

func (s *jobUpdateStore) FetchUpdateKey(legacyUpdateID string) (*domain.JobUpdateKey, bool, error) {
	var key *domain.JobUpdateKey
	err := s.db.View(func(tx *bolt.Tx) error {
		k := tx.Bucket(bucketUpdateKeysByID).Get([]byte(legacyUpdateID))
		if k == nil {
			return nil
		}
		data := tx.Bucket(bucketJobUpdates).Get(k)
		if data == nil {
			return nil
		}
		var rec jobUpdateRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		if rec.Update != nil {
			key = rec.Update.Summary.Key
		}
		return nil
	})
	return key, key != nil, err
}
