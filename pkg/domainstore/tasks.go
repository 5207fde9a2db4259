package domainstore

import (
	"encoding/json"
	"reflect"

	"github.com/cuemby/storagecore/pkg/domain"
	bolt "go.etcd.io/bbolt"
)

type taskStore struct {
	db *bolt.DB
}

func (s *taskStore) SaveTasks(tasks []*domain.ScheduledTask) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		for _, task := range tasks {
			data, err := json.Marshal(task)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(task.TaskID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// UnsafeModifyInPlace rewrites a task's config without touching its status.
// It reports false, without writing anything, if the new config is
// identical to what's already stored — the engine relies on this to keep
// no-op rewrites out of the transaction log.
func (s *taskStore) UnsafeModifyInPlace(taskID string, cfg *domain.TaskConfig) (bool, error) {
	changed := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		data := b.Get([]byte(taskID))
		if data == nil {
			return nil
		}
		var task domain.ScheduledTask
		if err := json.Unmarshal(data, &task); err != nil {
			return err
		}
		if reflect.DeepEqual(task.Config, *cfg) {
			return nil
		}
		task.Config = *cfg
		changed = true
		newData, err := json.Marshal(&task)
		if err != nil {
			return err
		}
		return b.Put([]byte(taskID), newData)
	})
	return changed, err
}

func (s *taskStore) DeleteTasks(ids []string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		for _, id := range ids {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *taskStore) FetchTasks() ([]*domain.ScheduledTask, error) {
	var tasks []*domain.ScheduledTask
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTasks).ForEach(func(k, v []byte) error {
			var task domain.ScheduledTask
			if err := json.Unmarshal(v, &task); err != nil {
				return err
			}
			tasks = append(tasks, &task)
			return nil
		})
	})
	return tasks, err
}
