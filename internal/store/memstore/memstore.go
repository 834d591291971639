// Package memstore provides an in-memory, transactional implementation of
// the store interface. It backs unit tests and local development; the
// transaction model is snapshot-and-restore, so a failed transaction leaves
// the state byte-identical to the pre-transaction state.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"entity-graph/backend/internal/model"
	"entity-graph/backend/internal/store"
)

type linkKey struct {
	a, b uuid.UUID
}

// orderedLinkKey normalizes the pair so the symmetric link is stored once.
func orderedLinkKey(a, b uuid.UUID) linkKey {
	if a.String() > b.String() {
		a, b = b, a
	}
	return linkKey{a: a, b: b}
}

type dismissKey struct {
	userID   string
	entityID uuid.UUID
	targetID uuid.UUID
}

type state struct {
	entities      map[uuid.UUID]model.Entity
	orphans       map[uuid.UUID]model.OrphanData
	items         map[uuid.UUID]model.DataItem
	itemLinks     map[linkKey]bool
	relationships map[uuid.UUID]model.Relationship
	audit         []model.LinkingAction
	dismissals    map[dismissKey]model.Dismissal
}

func newState() *state {
	return &state{
		entities:      make(map[uuid.UUID]model.Entity),
		orphans:       make(map[uuid.UUID]model.OrphanData),
		items:         make(map[uuid.UUID]model.DataItem),
		itemLinks:     make(map[linkKey]bool),
		relationships: make(map[uuid.UUID]model.Relationship),
		dismissals:    make(map[dismissKey]model.Dismissal),
	}
}

func (st *state) clone() *state {
	out := newState()
	for id, e := range st.entities {
		e.Profile = e.Profile.Clone()
		out.entities[id] = e
	}
	for id, o := range st.orphans {
		out.orphans[id] = o
	}
	for id, item := range st.items {
		out.items[id] = item
	}
	for k := range st.itemLinks {
		out.itemLinks[k] = true
	}
	for id, rel := range st.relationships {
		out.relationships[id] = rel
	}
	out.audit = append(out.audit, st.audit...)
	for k, d := range st.dismissals {
		out.dismissals[k] = d
	}
	return out
}

// Store is the in-memory store. The zero value is not usable; create with
// New.
type Store struct {
	mu    sync.Mutex
	state *state
	inTx  bool

	// FailOn, when set, is consulted before each mutating operation with the
	// operation name. A returned error aborts the operation; used by tests to
	// simulate mid-transaction store failures.
	FailOn func(op string) error
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{state: newState()}
}

var _ store.Store = (*Store)(nil)

func (s *Store) lock() {
	if !s.inTx {
		s.mu.Lock()
	}
}

func (s *Store) unlock() {
	if !s.inTx {
		s.mu.Unlock()
	}
}

func (s *Store) failCheck(op string) error {
	if s.FailOn != nil {
		if err := s.FailOn(op); err != nil {
			return fmt.Errorf("%w: %s: %v", store.ErrTxFailed, op, err)
		}
	}
	return nil
}

// RunInTx executes fn against a transactional view. On error the full
// pre-transaction state is restored.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.inTx {
		// Nested transactions join the outer one.
		return fn(ctx, s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	tx := &Store{state: s.state, inTx: true, FailOn: s.FailOn}
	if err := fn(ctx, tx); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// Entities

func (s *Store) CreateEntity(ctx context.Context, e *model.Entity) error {
	s.lock()
	defer s.unlock()
	if err := s.failCheck("create_entity"); err != nil {
		return err
	}
	cp := *e
	cp.Profile = e.Profile.Clone()
	s.state.entities[e.ID] = cp
	return nil
}

func (s *Store) GetEntity(ctx context.Context, id uuid.UUID) (*model.Entity, error) {
	s.lock()
	defer s.unlock()
	e, ok := s.state.entities[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	e.Profile = e.Profile.Clone()
	return &e, nil
}

func (s *Store) UpdateEntityProfile(ctx context.Context, id uuid.UUID, p model.Profile) error {
	s.lock()
	defer s.unlock()
	if err := s.failCheck("update_entity_profile"); err != nil {
		return err
	}
	e, ok := s.state.entities[id]
	if !ok {
		return store.ErrNotFound
	}
	e.Profile = p.Clone()
	e.UpdatedAt = time.Now().UTC()
	s.state.entities[id] = e
	return nil
}

func (s *Store) TombstoneEntity(ctx context.Context, id, mergedInto uuid.UUID, reason string, at time.Time) error {
	s.lock()
	defer s.unlock()
	if err := s.failCheck("tombstone_entity"); err != nil {
		return err
	}
	e, ok := s.state.entities[id]
	if !ok {
		return store.ErrNotFound
	}
	e.MergedInto = &mergedInto
	e.MergedAt = &at
	e.MergeReason = &reason
	e.UpdatedAt = at
	s.state.entities[id] = e
	return nil
}

// Orphans

func (s *Store) CreateOrphan(ctx context.Context, o *model.OrphanData) error {
	s.lock()
	defer s.unlock()
	if err := s.failCheck("create_orphan"); err != nil {
		return err
	}
	s.state.orphans[o.ID] = *o
	return nil
}

func (s *Store) GetOrphan(ctx context.Context, id uuid.UUID) (*model.OrphanData, error) {
	s.lock()
	defer s.unlock()
	o, ok := s.state.orphans[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &o, nil
}

func (s *Store) ResolveOrphan(ctx context.Context, id, entityID uuid.UUID, reason string, at time.Time) error {
	s.lock()
	defer s.unlock()
	if err := s.failCheck("resolve_orphan"); err != nil {
		return err
	}
	o, ok := s.state.orphans[id]
	if !ok {
		return store.ErrNotFound
	}
	o.Resolved = true
	o.ResolvedEntityID = &entityID
	o.ResolutionReason = &reason
	o.ResolvedAt = &at
	s.state.orphans[id] = o
	return nil
}

// Data items

func (s *Store) CreateDataItem(ctx context.Context, item *model.DataItem) error {
	s.lock()
	defer s.unlock()
	if err := s.failCheck("create_data_item"); err != nil {
		return err
	}
	s.state.items[item.ID] = *item
	return nil
}

func (s *Store) GetDataItem(ctx context.Context, id uuid.UUID) (*model.DataItem, error) {
	s.lock()
	defer s.unlock()
	item, ok := s.state.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) GetDataItems(ctx context.Context, owner model.Owner) ([]model.DataItem, error) {
	s.lock()
	defer s.unlock()
	var out []model.DataItem
	for _, item := range s.state.items {
		if item.Owner == owner {
			out = append(out, item)
		}
	}
	sortItems(out)
	return out, nil
}

func (s *Store) MoveDataItem(ctx context.Context, id uuid.UUID, newOwner model.Owner) error {
	s.lock()
	defer s.unlock()
	if err := s.failCheck("move_data_item"); err != nil {
		return err
	}
	item, ok := s.state.items[id]
	if !ok {
		return store.ErrNotFound
	}
	item.Owner = newOwner
	s.state.items[id] = item
	return nil
}

func (s *Store) QueryByTypeAndNormalizedValue(ctx context.Context, t model.SemanticType, value string) ([]model.DataItem, error) {
	s.lock()
	defer s.unlock()
	var out []model.DataItem
	for _, item := range s.state.items {
		if item.Type == t && item.NormalizedValue == value {
			out = append(out, item)
		}
	}
	sortItems(out)
	return out, nil
}

func (s *Store) QueryByType(ctx context.Context, t model.SemanticType) ([]model.DataItem, error) {
	s.lock()
	defer s.unlock()
	var out []model.DataItem
	for _, item := range s.state.items {
		if item.Type == t {
			out = append(out, item)
		}
	}
	sortItems(out)
	return out, nil
}

func (s *Store) QueryByHash(ctx context.Context, hash string) ([]model.DataItem, error) {
	s.lock()
	defer s.unlock()
	if hash == "" {
		return nil, nil
	}
	var out []model.DataItem
	for _, item := range s.state.items {
		if item.ContentHash == hash {
			out = append(out, item)
		}
	}
	sortItems(out)
	return out, nil
}

// Item links

func (s *Store) LinkItems(ctx context.Context, a, b uuid.UUID) error {
	s.lock()
	defer s.unlock()
	if err := s.failCheck("link_items"); err != nil {
		return err
	}
	if _, ok := s.state.items[a]; !ok {
		return store.ErrNotFound
	}
	if _, ok := s.state.items[b]; !ok {
		return store.ErrNotFound
	}
	s.state.itemLinks[orderedLinkKey(a, b)] = true
	return nil
}

func (s *Store) UnlinkItems(ctx context.Context, a, b uuid.UUID) error {
	s.lock()
	defer s.unlock()
	if err := s.failCheck("unlink_items"); err != nil {
		return err
	}
	delete(s.state.itemLinks, orderedLinkKey(a, b))
	return nil
}

func (s *Store) ItemsLinked(ctx context.Context, a, b uuid.UUID) (bool, error) {
	s.lock()
	defer s.unlock()
	return s.state.itemLinks[orderedLinkKey(a, b)], nil
}

// Relationships

func (s *Store) CreateRelationship(ctx context.Context, rel *model.Relationship) error {
	s.lock()
	defer s.unlock()
	if err := s.failCheck("create_relationship"); err != nil {
		return err
	}
	s.state.relationships[rel.ID] = *rel
	return nil
}

func (s *Store) GetRelationships(ctx context.Context, entityID uuid.UUID) ([]model.Relationship, error) {
	s.lock()
	defer s.unlock()
	var out []model.Relationship
	for _, rel := range s.state.relationships {
		if rel.FromID == entityID || rel.ToID == entityID {
			out = append(out, rel)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) MoveRelationships(ctx context.Context, from, to uuid.UUID) (int, error) {
	s.lock()
	defer s.unlock()
	if err := s.failCheck("move_relationships"); err != nil {
		return 0, err
	}
	moved := 0
	for id, rel := range s.state.relationships {
		// Edges between the pair would become self-loops; drop them.
		if (rel.FromID == from && rel.ToID == to) || (rel.FromID == to && rel.ToID == from) {
			delete(s.state.relationships, id)
			continue
		}
		changed := false
		if rel.FromID == from {
			rel.FromID = to
			changed = true
		}
		if rel.ToID == from {
			rel.ToID = to
			changed = true
		}
		if changed {
			s.state.relationships[id] = rel
			moved++
		}
	}
	return moved, nil
}

// Audit trail

func (s *Store) AppendAuditRecord(ctx context.Context, action *model.LinkingAction) error {
	s.lock()
	defer s.unlock()
	if err := s.failCheck("append_audit"); err != nil {
		return err
	}
	s.state.audit = append(s.state.audit, *action)
	return nil
}

func (s *Store) ListAuditRecords(ctx context.Context, filter store.AuditFilter) ([]model.LinkingAction, error) {
	s.lock()
	defer s.unlock()
	var out []model.LinkingAction
	for i := len(s.state.audit) - 1; i >= 0; i-- {
		a := s.state.audit[i]
		if filter.ActionType != nil && a.Type != *filter.ActionType {
			continue
		}
		if filter.EntityID != nil && !actionReferences(a, *filter.EntityID) {
			continue
		}
		out = append(out, a)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func actionReferences(a model.LinkingAction, id uuid.UUID) bool {
	switch d := a.Details.(type) {
	case model.LinkDataItemsDetails:
		return d.ItemA == id || d.ItemB == id
	case model.MergeEntitiesDetails:
		return d.PrimaryID == id || d.MergedID == id
	case model.CreateRelationshipDetails:
		return d.FromID == id || d.ToID == id
	case model.LinkOrphanDetails:
		return d.OrphanID == id || d.EntityID == id
	case model.DismissSuggestionDetails:
		return d.EntityID == id || d.TargetID == id
	}
	return false
}

// Dismissals

func (s *Store) AddDismissal(ctx context.Context, d model.Dismissal) error {
	s.lock()
	defer s.unlock()
	if err := s.failCheck("add_dismissal"); err != nil {
		return err
	}
	s.state.dismissals[dismissKey{d.UserID, d.EntityID, d.TargetID}] = d
	return nil
}

func (s *Store) ListDismissals(ctx context.Context, userID string, entityID uuid.UUID) ([]model.Dismissal, error) {
	s.lock()
	defer s.unlock()
	var out []model.Dismissal
	for k, d := range s.state.dismissals {
		if k.userID == userID && k.entityID == entityID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) RemoveDismissal(ctx context.Context, userID string, entityID, targetID uuid.UUID) error {
	s.lock()
	defer s.unlock()
	if err := s.failCheck("remove_dismissal"); err != nil {
		return err
	}
	key := dismissKey{userID, entityID, targetID}
	if _, ok := s.state.dismissals[key]; !ok {
		return store.ErrNotFound
	}
	delete(s.state.dismissals, key)
	return nil
}

// sortItems orders by creation time descending, then id, for deterministic
// query results.
func sortItems(items []model.DataItem) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID.String() < items[j].ID.String()
	})
}
