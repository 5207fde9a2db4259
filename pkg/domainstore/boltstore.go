// Package domainstore provides a BoltDB-backed implementation of the seven
// domain.Stores interfaces the storage engine forwards mutations to.
//
// One bucket per entity kind, JSON-encoded values, db.Update/db.View
// transactions: scheduler metadata, jobs, tasks, quotas, host attributes,
// locks, and job updates each get their own bucket.
package domainstore

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/cuemby/storagecore/pkg/domain"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketScheduler      = []byte("scheduler")
	bucketJobs           = []byte("jobs")
	bucketTasks          = []byte("tasks")
	bucketQuotas         = []byte("quotas")
	bucketHostAttributes = []byte("host_attributes")
	bucketLocks          = []byte("locks")
	bucketJobUpdates     = []byte("job_updates")
	bucketUpdateKeysByID = []byte("job_update_legacy_ids")

	frameworkIDKey = []byte("framework_id")

	allBuckets = [][]byte{
		bucketScheduler, bucketJobs, bucketTasks, bucketQuotas,
		bucketHostAttributes, bucketLocks, bucketJobUpdates, bucketUpdateKeysByID,
	}
)

// BoltStore implements domain.Stores and domain.SnapshotProvider on top of a
// single bbolt database file.
type BoltStore struct {
	db *bolt.DB

	scheduler      *schedulerStore
	jobs           *jobStore
	tasks          *taskStore
	quotas         *quotaStore
	hostAttributes *hostAttributeStore
	locks          *lockStore
	jobUpdates     *jobUpdateStore
}

// Open creates or opens a BoltDB-backed domain store under dataDir.
func Open(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "domain.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open domain database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &BoltStore{db: db}
	s.scheduler = &schedulerStore{db: db}
	s.jobs = &jobStore{db: db}
	s.tasks = &taskStore{db: db}
	s.quotas = &quotaStore{db: db}
	s.hostAttributes = &hostAttributeStore{db: db}
	s.locks = &lockStore{db: db}
	s.jobUpdates = &jobUpdateStore{db: db}
	return s, nil
}

func (s *BoltStore) Scheduler() domain.SchedulerStore          { return s.scheduler }
func (s *BoltStore) Jobs() domain.JobStore                     { return s.jobs }
func (s *BoltStore) Tasks() domain.TaskStore                   { return s.tasks }
func (s *BoltStore) Quotas() domain.QuotaStore                 { return s.quotas }
func (s *BoltStore) HostAttributes() domain.HostAttributeStore { return s.hostAttributes }
func (s *BoltStore) Locks() domain.LockStore                   { return s.locks }
func (s *BoltStore) JobUpdates() domain.JobUpdateStore         { return s.jobUpdates }

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// CreateSnapshot materializes every store into a single domain.Snapshot.
func (s *BoltStore) CreateSnapshot() (*domain.Snapshot, error) {
	frameworkID, _, err := s.scheduler.FetchFrameworkID()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch scheduler metadata: %w", err)
	}

	jobs, err := s.jobs.FetchJobs()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch jobs: %w", err)
	}

	tasks, err := s.tasks.FetchTasks()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tasks: %w", err)
	}

	quotas, err := s.quotas.FetchQuotas()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quotas: %w", err)
	}

	hostAttrs, err := s.hostAttributes.FetchHostAttributes()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch host attributes: %w", err)
	}

	locks, err := s.locks.FetchLocks()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch locks: %w", err)
	}

	jobUpdates, err := s.jobUpdates.FetchJobUpdateDetails()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch job updates: %w", err)
	}

	return &domain.Snapshot{
		Timestamp:         time.Now(),
		SchedulerMetadata: domain.SchedulerMetadata{FrameworkID: frameworkID},
		Jobs:              jobs,
		Tasks:             tasks,
		Quotas:            quotas,
		HostAttributes:    hostAttrs,
		Locks:             locks,
		JobUpdates:        jobUpdates,
	}, nil
}

// clearAll empties every bucket so entries absent from an incoming
// snapshot do not survive it.
func (s *BoltStore) clearAll() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplySnapshot replaces the contents of every store with snap; entries
// present before the call but absent from snap do not survive it. Called
// exactly once per Snapshot record encountered during replay.
func (s *BoltStore) ApplySnapshot(snap *domain.Snapshot) error {
	if err := s.clearAll(); err != nil {
		return fmt.Errorf("failed to clear stores before restore: %w", err)
	}

	if snap.SchedulerMetadata.FrameworkID != "" {
		if err := s.scheduler.SaveFrameworkID(snap.SchedulerMetadata.FrameworkID); err != nil {
			return fmt.Errorf("failed to restore scheduler metadata: %w", err)
		}
	}

	for _, job := range snap.Jobs {
		if err := s.jobs.SaveAcceptedJob(job); err != nil {
			return fmt.Errorf("failed to restore job: %w", err)
		}
	}

	if err := s.tasks.SaveTasks(snap.Tasks); err != nil {
		return fmt.Errorf("failed to restore tasks: %w", err)
	}

	for role, agg := range snap.Quotas {
		if err := s.quotas.SaveQuota(role, agg); err != nil {
			return fmt.Errorf("failed to restore quota: %w", err)
		}
	}

	for _, attrs := range snap.HostAttributes {
		if _, err := s.hostAttributes.SaveHostAttributes(attrs); err != nil {
			return fmt.Errorf("failed to restore host attributes: %w", err)
		}
	}

	for _, lock := range snap.Locks {
		if err := s.locks.SaveLock(lock); err != nil {
			return fmt.Errorf("failed to restore lock: %w", err)
		}
	}

	for _, d := range snap.JobUpdates {
		if d.Update == nil {
			continue
		}
		if err := s.jobUpdates.SaveJobUpdate(d.Update, d.LockToken); err != nil {
			return fmt.Errorf("failed to restore job update: %w", err)
		}
		key := *d.Update.Summary.Key
		for _, e := range d.Events {
			if err := s.jobUpdates.SaveJobUpdateEvent(e, key); err != nil {
				return fmt.Errorf("failed to restore job update event: %w", err)
			}
		}
		for _, e := range d.InstanceEvents {
			if err := s.jobUpdates.SaveJobInstanceUpdateEvent(e, key); err != nil {
				return fmt.Errorf("failed to restore job instance update event: %w", err)
			}
		}
	}

	return nil
}
