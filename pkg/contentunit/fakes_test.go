package contentunit_test

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/tendant/content-unit/pkg/contentunit"
)

var (
	errBoom        = errors.New("boom")
	errDeleteBoom  = errors.New("delete boom")
	errNetworkDown = errors.New("network down")
)

// callLog records the calls made against both collaborators in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(call string) int {
	n := 0
	for _, c := range l.all() {
		if c == call {
			n++
		}
	}
	return n
}

type fakeStore struct {
	log       *callLog
	ids       []string
	next      int
	putErr    error
	deleteErr map[string]error
	objects   map[string][]byte
}

func newFakeStore(log *callLog, ids ...string) *fakeStore {
	return &fakeStore{log: log, ids: ids, deleteErr: map[string]error{}, objects: map[string][]byte{}}
}

func (s *fakeStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	if s.putErr != nil {
		s.log.add("put()")
		return "", s.putErr
	}
	id := s.ids[s.next]
	s.next++
	s.log.add("put(%s)", id)
	s.objects[id] = data
	return id, nil
}

func (s *fakeStore) Delete(ctx context.Context, assetID string) error {
	s.log.add("delete(%s)", assetID)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.deleteErr[assetID]; err != nil {
		return err
	}
	delete(s.objects, assetID)
	return nil
}

func (s *fakeStore) PreviewURL(ctx context.Context, assetID string) (string, error) {
	s.log.add("preview(%s)", assetID)
	if _, ok := s.objects[assetID]; !ok {
		return "", contentunit.ErrNotFound
	}
	return "https://assets.example.com/" + assetID, nil
}

func (s *fakeStore) Stat(ctx context.Context, assetID string) (*contentunit.Asset, error) {
	data, ok := s.objects[assetID]
	if !ok {
		return nil, contentunit.ErrNotFound
	}
	return &contentunit.Asset{ID: assetID, Size: int64(len(data))}, nil
}

type fakeRepo struct {
	log       *callLog
	units     map[string]*contentunit.Unit
	createErr error
	updateErr error
	deleteErr error
	onCreate  func()
	onUpdate  func()
	onDelete  func()
}

func newFakeRepo(log *callLog) *fakeRepo {
	return &fakeRepo{log: log, units: map[string]*contentunit.Unit{}}
}

func (r *fakeRepo) seed(u *contentunit.Unit) {
	c := *u
	r.units[u.ID] = &c
}

func (r *fakeRepo) Create(ctx context.Context, unit *contentunit.Unit) (*contentunit.Unit, error) {
	r.log.add("create(%s,%s)", unit.ID, unit.AssetRef)
	if r.onCreate != nil {
		r.onCreate()
	}
	if r.createErr != nil {
		return nil, r.createErr
	}
	if _, ok := r.units[unit.ID]; ok {
		return nil, contentunit.ErrConflict
	}
	c := *unit
	r.units[unit.ID] = &c
	out := c
	return &out, nil
}

func (r *fakeRepo) Update(ctx context.Context, id string, patch contentunit.UnitPatch) (*contentunit.Unit, error) {
	ref := ""
	if patch.AssetRef != nil {
		ref = *patch.AssetRef
	}
	r.log.add("update(%s,%s)", id, ref)
	if r.onUpdate != nil {
		r.onUpdate()
	}
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	u, ok := r.units[id]
	if !ok {
		return nil, contentunit.ErrNotFound
	}
	patch.Apply(u)
	out := *u
	return &out, nil
}

func (r *fakeRepo) Delete(ctx context.Context, id string) error {
	r.log.add("remove(%s)", id)
	if r.onDelete != nil {
		r.onDelete()
	}
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.units[id]; !ok {
		return contentunit.ErrNotFound
	}
	delete(r.units, id)
	return nil
}

func (r *fakeRepo) Get(ctx context.Context, id string) (*contentunit.Unit, error) {
	u, ok := r.units[id]
	if !ok {
		return nil, contentunit.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (r *fakeRepo) List(ctx context.Context, filter contentunit.ListFilter) iter.Seq2[*contentunit.Unit, error] {
	return func(yield func(*contentunit.Unit, error) bool) {
		for _, u := range r.units {
			if !filter.Matches(u) {
				continue
			}
			out := *u
			if !yield(&out, nil) {
				return
			}
		}
	}
}

type countingRecorder struct {
	mu            sync.Mutex
	workflows     map[string]int
	compensations map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{workflows: map[string]int{}, compensations: map[string]int{}}
}

func (r *countingRecorder) Workflow(op, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflows[op+"/"+outcome]++
}

func (r *countingRecorder) Compensation(op, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compensations[op+"/"+result]++
}
