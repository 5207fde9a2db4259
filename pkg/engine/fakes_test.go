package engine

import (
	"reflect"
	"time"

	"github.com/cuemby/storagecore/pkg/domain"
	"github.com/cuemby/storagecore/pkg/txlog"
)

// memSchedulerStore, memJobStore, ... are minimal in-memory domain.Stores
// implementations, grounded on the bucket-per-entity shape pkg/domainstore
// implements over bbolt, used here so coalescer/dispatch/engine behavior can
// be tested without a real database.

type memSchedulerStore struct {
	frameworkID string
	set         bool
}

func (s *memSchedulerStore) SaveFrameworkID(id string) error {
	s.frameworkID = id
	s.set = true
	return nil
}

func (s *memSchedulerStore) FetchFrameworkID() (string, bool, error) {
	return s.frameworkID, s.set, nil
}

type memJobStore struct {
	jobs map[domain.JobKey]*domain.JobConfiguration
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[domain.JobKey]*domain.JobConfiguration)}
}

func (s *memJobStore) SaveAcceptedJob(cfg *domain.JobConfiguration) error {
	s.jobs[cfg.Key] = cfg
	return nil
}

func (s *memJobStore) RemoveJob(key domain.JobKey) error {
	delete(s.jobs, key)
	return nil
}

func (s *memJobStore) FetchJobs() ([]*domain.JobConfiguration, error) {
	out := make([]*domain.JobConfiguration, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	return out, nil
}

type memTaskStore struct {
	tasks map[string]*domain.ScheduledTask
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[string]*domain.ScheduledTask)}
}

func (s *memTaskStore) SaveTasks(tasks []*domain.ScheduledTask) error {
	for _, t := range tasks {
		s.tasks[t.TaskID] = t
	}
	return nil
}

// UnsafeModifyInPlace reports changed=false when the new config is
// identical to the stored one, mirroring the no-op-filtering contract the
// coalescer depends on.
func (s *memTaskStore) UnsafeModifyInPlace(taskID string, cfg *domain.TaskConfig) (bool, error) {
	task, ok := s.tasks[taskID]
	if !ok {
		return false, nil
	}
	if reflect.DeepEqual(task.Config, *cfg) {
		return false, nil
	}
	task.Config = *cfg
	return true, nil
}

func (s *memTaskStore) DeleteTasks(ids []string) error {
	for _, id := range ids {
		delete(s.tasks, id)
	}
	return nil
}

func (s *memTaskStore) FetchTasks() ([]*domain.ScheduledTask, error) {
	out := make([]*domain.ScheduledTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	return out, nil
}

type memQuotaStore struct {
	quotas map[string]domain.ResourceAggregate
}

func newMemQuotaStore() *memQuotaStore {
	return &memQuotaStore{quotas: make(map[string]domain.ResourceAggregate)}
}

func (s *memQuotaStore) SaveQuota(role string, agg domain.ResourceAggregate) error {
	s.quotas[role] = agg
	return nil
}

func (s *memQuotaStore) RemoveQuota(role string) error {
	delete(s.quotas, role)
	return nil
}

func (s *memQuotaStore) FetchQuotas() (map[string]domain.ResourceAggregate, error) {
	return s.quotas, nil
}

type memHostAttributeStore struct {
	attrs map[string]domain.HostAttributes
}

func newMemHostAttributeStore() *memHostAttributeStore {
	return &memHostAttributeStore{attrs: make(map[string]domain.HostAttributes)}
}

// SaveHostAttributes reports changed=false when attrs is identical to what's
// already stored for that host.
func (s *memHostAttributeStore) SaveHostAttributes(attrs domain.HostAttributes) (bool, error) {
	existing, ok := s.attrs[attrs.Host]
	if ok && attributesEqual(existing, attrs) {
		return false, nil
	}
	s.attrs[attrs.Host] = attrs
	return true, nil
}

func attributesEqual(a, b domain.HostAttributes) bool {
	if a.Host != b.Host || a.Mode != b.Mode || len(a.Attributes) != len(b.Attributes) {
		return false
	}
	if (a.SlaveID == nil) != (b.SlaveID == nil) {
		return false
	}
	if a.SlaveID != nil && *a.SlaveID != *b.SlaveID {
		return false
	}
	for i := range a.Attributes {
		if a.Attributes[i].Name != b.Attributes[i].Name || !reflect.DeepEqual(a.Attributes[i].Values, b.Attributes[i].Values) {
			return false
		}
	}
	return true
}

func (s *memHostAttributeStore) FetchHostAttributes() ([]domain.HostAttributes, error) {
	out := make([]domain.HostAttributes, 0, len(s.attrs))
	for _, a := range s.attrs {
		out = append(out, a)
	}
	return out, nil
}

type memLockStore struct {
	locks map[domain.LockKey]domain.Lock
}

func newMemLockStore() *memLockStore {
	return &memLockStore{locks: make(map[domain.LockKey]domain.Lock)}
}

func (s *memLockStore) SaveLock(lock domain.Lock) error {
	s.locks[lock.Key] = lock
	return nil
}

func (s *memLockStore) RemoveLock(key domain.LockKey) error {
	delete(s.locks, key)
	return nil
}

func (s *memLockStore) FetchLocks() ([]domain.Lock, error) {
	out := make([]domain.Lock, 0, len(s.locks))
	for _, l := range s.locks {
		out = append(out, l)
	}
	return out, nil
}

type memJobUpdateStore struct {
	details map[domain.JobUpdateKey]*domain.JobUpdateDetails
	legacy  map[string]domain.JobUpdateKey
}

func newMemJobUpdateStore() *memJobUpdateStore {
	return &memJobUpdateStore{
		details: make(map[domain.JobUpdateKey]*domain.JobUpdateDetails),
		legacy:  make(map[string]domain.JobUpdateKey),
	}
}

func (s *memJobUpdateStore) detail(key domain.JobUpdateKey) *domain.JobUpdateDetails {
	d, ok := s.details[key]
	if !ok {
		d = &domain.JobUpdateDetails{}
		s.details[key] = d
	}
	return d
}

func (s *memJobUpdateStore) SaveJobUpdate(update *domain.JobUpdate, lockToken string) error {
	if update.Summary.Key == nil {
		return nil
	}
	d := s.detail(*update.Summary.Key)
	d.Update = update
	d.LockToken = lockToken
	s.legacy[update.Summary.Key.ID] = *update.Summary.Key
	return nil
}

func (s *memJobUpdateStore) SaveJobUpdateEvent(event domain.JobUpdateEvent, key domain.JobUpdateKey) error {
	d := s.detail(key)
	d.Events = append(d.Events, event)
	s.legacy[key.ID] = key
	return nil
}

func (s *memJobUpdateStore) SaveJobInstanceUpdateEvent(event domain.JobInstanceUpdateEvent, key domain.JobUpdateKey) error {
	d := s.detail(key)
	d.InstanceEvents = append(d.InstanceEvents, event)
	s.legacy[key.ID] = key
	return nil
}

func (s *memJobUpdateStore) PruneHistory(perJobRetain int, thresholdMs int64) (int, error) {
	return 0, nil
}

func (s *memJobUpdateStore) FetchUpdateKey(legacyUpdateID string) (*domain.JobUpdateKey, bool, error) {
	key, ok := s.legacy[legacyUpdateID]
	if !ok {
		return nil, false, nil
	}
	return &key, true, nil
}

func (s *memJobUpdateStore) FetchJobUpdateDetails() ([]*domain.JobUpdateDetails, error) {
	out := make([]*domain.JobUpdateDetails, 0, len(s.details))
	for _, d := range s.details {
		out = append(out, d)
	}
	return out, nil
}

// memStores bundles the seven fakes above into a domain.Stores, and doubles
// as a domain.SnapshotProvider by folding each store's contents in and out
// of a domain.Snapshot.
type memStores struct {
	scheduler      *memSchedulerStore
	jobs           *memJobStore
	tasks          *memTaskStore
	quotas         *memQuotaStore
	hostAttributes *memHostAttributeStore
	locks          *memLockStore
	jobUpdates     *memJobUpdateStore
}

func newMemStores() *memStores {
	return &memStores{
		scheduler:      &memSchedulerStore{},
		jobs:           newMemJobStore(),
		tasks:          newMemTaskStore(),
		quotas:         newMemQuotaStore(),
		hostAttributes: newMemHostAttributeStore(),
		locks:          newMemLockStore(),
		jobUpdates:     newMemJobUpdateStore(),
	}
}

func (s *memStores) Scheduler() domain.SchedulerStore          { return s.scheduler }
func (s *memStores) Jobs() domain.JobStore                     { return s.jobs }
func (s *memStores) Tasks() domain.TaskStore                   { return s.tasks }
func (s *memStores) Quotas() domain.QuotaStore                 { return s.quotas }
func (s *memStores) HostAttributes() domain.HostAttributeStore { return s.hostAttributes }
func (s *memStores) Locks() domain.LockStore                   { return s.locks }
func (s *memStores) JobUpdates() domain.JobUpdateStore         { return s.jobUpdates }
func (s *memStores) Close() error                              { return nil }

func (s *memStores) CreateSnapshot() (*domain.Snapshot, error) {
	tasks, _ := s.tasks.FetchTasks()
	locks, _ := s.locks.FetchLocks()
	hostAttrs, _ := s.hostAttributes.FetchHostAttributes()
	quotas, _ := s.quotas.FetchQuotas()
	jobs, _ := s.jobs.FetchJobs()
	jobUpdates, _ := s.jobUpdates.FetchJobUpdateDetails()
	fwID, _, _ := s.scheduler.FetchFrameworkID()

	return &domain.Snapshot{
		SchemaVersion:     txlog.CurrentSchemaVersion,
		SchedulerMetadata: domain.SchedulerMetadata{FrameworkID: fwID},
		Jobs:              jobs,
		Tasks:             tasks,
		Quotas:            quotas,
		HostAttributes:    hostAttrs,
		Locks:             locks,
		JobUpdates:        jobUpdates,
	}, nil
}

// ApplySnapshot resets every store and reloads it from snap, matching the
// overwrite contract replay relies on.
func (s *memStores) ApplySnapshot(snap *domain.Snapshot) error {
	s.scheduler.frameworkID, s.scheduler.set = "", false
	s.jobs.jobs = make(map[domain.JobKey]*domain.JobConfiguration)
	s.tasks.tasks = make(map[string]*domain.ScheduledTask)
	s.quotas.quotas = make(map[string]domain.ResourceAggregate)
	s.hostAttributes.attrs = make(map[string]domain.HostAttributes)
	s.locks.locks = make(map[domain.LockKey]domain.Lock)
	s.jobUpdates.details = make(map[domain.JobUpdateKey]*domain.JobUpdateDetails)
	s.jobUpdates.legacy = make(map[string]domain.JobUpdateKey)

	if snap.SchedulerMetadata.FrameworkID != "" {
		_ = s.scheduler.SaveFrameworkID(snap.SchedulerMetadata.FrameworkID)
	}
	for _, j := range snap.Jobs {
		_ = s.jobs.SaveAcceptedJob(j)
	}
	if len(snap.Tasks) > 0 {
		_ = s.tasks.SaveTasks(snap.Tasks)
	}
	for role, agg := range snap.Quotas {
		_ = s.quotas.SaveQuota(role, agg)
	}
	for _, a := range snap.HostAttributes {
		_, _ = s.hostAttributes.SaveHostAttributes(a)
	}
	for _, l := range snap.Locks {
		_ = s.locks.SaveLock(l)
	}
	for _, d := range snap.JobUpdates {
		if d.Update == nil || d.Update.Summary.Key == nil {
			continue
		}
		_ = s.jobUpdates.SaveJobUpdate(d.Update, d.LockToken)
		for _, e := range d.Events {
			_ = s.jobUpdates.SaveJobUpdateEvent(e, *d.Update.Summary.Key)
		}
		for _, e := range d.InstanceEvents {
			_ = s.jobUpdates.SaveJobInstanceUpdateEvent(e, *d.Update.Summary.Key)
		}
	}
	return nil
}

// memLogStream is an in-memory txlog.Stream, for driving an Engine in tests
// without a real raft-boltdb-backed log.
type memLogStream struct {
	entries map[txlog.Position][]byte
	first   txlog.Position
	last    txlog.Position
	count   int
}

func newMemLogStream() *memLogStream {
	return &memLogStream{entries: make(map[txlog.Position][]byte)}
}

func (m *memLogStream) FirstPosition() (txlog.Position, bool, error) {
	if m.count == 0 {
		return 0, false, nil
	}
	return m.first, true, nil
}

func (m *memLogStream) LastPosition() (txlog.Position, bool, error) {
	if m.count == 0 {
		return 0, false, nil
	}
	return m.last, true, nil
}

func (m *memLogStream) ReadEntry(pos txlog.Position) ([]byte, error) {
	return m.entries[pos], nil
}

func (m *memLogStream) Append(data []byte) (txlog.Position, error) {
	if m.count == 0 {
		m.first = 1
		m.last = 1
	} else {
		m.last++
	}
	m.entries[m.last] = data
	m.count++
	return m.last, nil
}

func (m *memLogStream) TruncateBefore(pos txlog.Position) error {
	for p := m.first; p < pos; p++ {
		delete(m.entries, p)
	}
	if pos > m.last {
		m.first = m.last
	} else {
		m.first = pos
	}
	m.count = int(m.last-m.first) + 1
	if len(m.entries) == 0 {
		m.count = 0
	}
	return nil
}

func newMemLogManager() *txlog.LogManager {
	stream := newMemLogStream()
	return txlog.NewLogManagerWithStream(
		func() (txlog.Stream, error) { return stream, nil },
		func(s txlog.Stream) *txlog.StreamManager {
			return txlog.NewStreamManager(s, txlog.StreamPolicy{MaxEntrySize: 1 << 20})
		},
	)
}

// fakeEventSink records every posted event for assertion.
type fakeEventSink struct {
	events []Event
}

func (f *fakeEventSink) Post(e Event) {
	f.events = append(f.events, e)
}

// fakeScheduler records the interval/runnable it was asked to schedule but
// never fires it; tests that need a snapshot tick call the runnable directly.
type fakeScheduler struct {
	interval time.Duration
	runnable func()
	stopped  bool
}

func (f *fakeScheduler) DoEvery(interval time.Duration, runnable func()) {
	f.interval = interval
	f.runnable = runnable
}

func (f *fakeScheduler) Stop() {
	f.stopped = true
}
