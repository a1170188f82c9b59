package claim

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"claimdesk/internal/claims/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
)

type table struct {
	claims    map[id.ClaimID]*models.Claim
	notes     map[id.NoteID]*models.Note
	documents map[id.DocumentID]*models.Document
	nextClaim id.ClaimID
	nextNote  id.NoteID
	nextDoc   id.DocumentID
}

func newTable() *table {
	return &table{
		claims:    map[id.ClaimID]*models.Claim{},
		notes:     map[id.NoteID]*models.Note{},
		documents: map[id.DocumentID]*models.Document{},
	}
}

// InMemory keeps one claim table per partition. Uniqueness of claim numbers
// is checked and written under a single lock.
type InMemory struct {
	mu         sync.RWMutex
	partitions map[string]*table
}

func NewInMemory() *InMemory {
	return &InMemory{partitions: map[string]*table{}}
}

func (s *InMemory) CreatePartition(_ context.Context, schema string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.partitions[schema]; !ok {
		s.partitions[schema] = newTable()
	}
	return nil
}

func (s *InMemory) DropPartition(_ context.Context, schema string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.partitions, schema)
	return nil
}

func (s *InMemory) tableFor(p id.Partition) (*table, error) {
	t, ok := s.partitions[p.Schema]
	if !ok {
		return nil, fmt.Errorf("partition %s: %w", p.Schema, sentinel.ErrNotFound)
	}
	return t, nil
}

func copyClaim(c *models.Claim) *models.Claim {
	cp := *c
	if c.ClaimAmount != nil {
		v := *c.ClaimAmount
		cp.ClaimAmount = &v
	}
	if c.ApprovedAmount != nil {
		v := *c.ApprovedAmount
		cp.ApprovedAmount = &v
	}
	if c.AssignedTo != nil {
		v := *c.AssignedTo
		cp.AssignedTo = &v
	}
	return &cp
}

// Create inserts c and sets its ID.
func (s *InMemory) Create(_ context.Context, p id.Partition, c *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.tableFor(p)
	if err != nil {
		return err
	}
	for _, existing := range t.claims {
		if existing.Number == c.Number {
			return ErrNumberTaken
		}
	}
	t.nextClaim++
	c.ID = t.nextClaim
	t.claims[c.ID] = copyClaim(c)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, p id.Partition, claimID id.ClaimID) (*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.partitions[p.Schema].lookup(claimID); ok {
		return copyClaim(c), nil
	}
	return nil, errClaimNotFound
}

func (t *table) lookup(claimID id.ClaimID) (*models.Claim, bool) {
	if t == nil {
		return nil, false
	}
	c, ok := t.claims[claimID]
	return c, ok
}

// Update overwrites the editable fields of c. The status is not written;
// c.Status must still match the stored one.
func (s *InMemory) Update(_ context.Context, p id.Partition, c *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.partitions[p.Schema].lookup(c.ID)
	if !ok {
		return errClaimNotFound
	}
	if existing.Status != c.Status {
		return errStatusChanged
	}
	updated := copyClaim(c)
	s.partitions[p.Schema].claims[c.ID] = updated
	return nil
}

// UpdateStatus moves the claim from one status to another only if it is
// still in from.
func (s *InMemory) UpdateStatus(_ context.Context, p id.Partition, claimID id.ClaimID, from, to models.Status, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.partitions[p.Schema].lookup(claimID)
	if !ok {
		return errClaimNotFound
	}
	if c.Status != from {
		return errStatusChanged
	}
	c.Status = to
	c.UpdatedAt = now
	return nil
}

// Delete removes the claim with its notes and documents.
func (s *InMemory) Delete(_ context.Context, p id.Partition, claimID id.ClaimID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.partitions[p.Schema]
	if _, ok := t.lookup(claimID); !ok {
		return errClaimNotFound
	}
	delete(t.claims, claimID)
	for nid, n := range t.notes {
		if n.ClaimID == claimID {
			delete(t.notes, nid)
		}
	}
	for did, d := range t.documents {
		if d.ClaimID == claimID {
			delete(t.documents, did)
		}
	}
	return nil
}

func (s *InMemory) ListByPolicy(_ context.Context, p id.Partition, policyID id.PolicyID) ([]*models.Claim, error) {
	return s.list(p, func(c *models.Claim) bool { return c.PolicyID == policyID }), nil
}

func (s *InMemory) ListByAssignee(_ context.Context, p id.Partition, userID id.UserID) ([]*models.Claim, error) {
	return s.list(p, func(c *models.Claim) bool { return c.AssignedTo != nil && *c.AssignedTo == userID }), nil
}

func (s *InMemory) list(p id.Partition, keep func(*models.Claim) bool) []*models.Claim {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Claim
	if t := s.partitions[p.Schema]; t != nil {
		for _, c := range t.claims {
			if keep(c) {
				out = append(out, copyClaim(c))
			}
		}
	}
	slices.SortFunc(out, func(a, b *models.Claim) int { return int(a.ID - b.ID) })
	return out
}

// ReleaseAssignee clears the assignee of every claim assigned to userID.
func (s *InMemory) ReleaseAssignee(_ context.Context, p id.Partition, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.partitions[p.Schema]; t != nil {
		for _, c := range t.claims {
			if c.AssignedTo != nil && *c.AssignedTo == userID {
				c.AssignedTo = nil
			}
		}
	}
	return nil
}

func (s *InMemory) AddNote(_ context.Context, p id.Partition, n *models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.partitions[p.Schema]
	if _, ok := t.lookup(n.ClaimID); !ok {
		return errClaimNotFound
	}
	t.nextNote++
	n.ID = t.nextNote
	cp := *n
	t.notes[n.ID] = &cp
	return nil
}

func (s *InMemory) FindNote(_ context.Context, p id.Partition, noteID id.NoteID) (*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t := s.partitions[p.Schema]; t != nil {
		if n, ok := t.notes[noteID]; ok {
			cp := *n
			return &cp, nil
		}
	}
	return nil, errNoteNotFound
}

func (s *InMemory) UpdateNote(_ context.Context, p id.Partition, n *models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.partitions[p.Schema]
	if t == nil || t.notes[n.ID] == nil {
		return errNoteNotFound
	}
	cp := *n
	t.notes[n.ID] = &cp
	return nil
}

func (s *InMemory) DeleteNote(_ context.Context, p id.Partition, noteID id.NoteID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.partitions[p.Schema]
	if t == nil || t.notes[noteID] == nil {
		return errNoteNotFound
	}
	delete(t.notes, noteID)
	return nil
}

func (s *InMemory) ListNotes(_ context.Context, p id.Partition, claimID id.ClaimID) ([]*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Note
	if t := s.partitions[p.Schema]; t != nil {
		for _, n := range t.notes {
			if n.ClaimID == claimID {
				cp := *n
				out = append(out, &cp)
			}
		}
	}
	slices.SortFunc(out, func(a, b *models.Note) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *InMemory) AddDocument(_ context.Context, p id.Partition, d *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.partitions[p.Schema]
	if _, ok := t.lookup(d.ClaimID); !ok {
		return errClaimNotFound
	}
	t.nextDoc++
	d.ID = t.nextDoc
	cp := *d
	t.documents[d.ID] = &cp
	return nil
}

func (s *InMemory) FindDocument(_ context.Context, p id.Partition, docID id.DocumentID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t := s.partitions[p.Schema]; t != nil {
		if d, ok := t.documents[docID]; ok {
			cp := *d
			return &cp, nil
		}
	}
	return nil, errDocumentNotFound
}

func (s *InMemory) DeleteDocument(_ context.Context, p id.Partition, docID id.DocumentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.partitions[p.Schema]
	if t == nil || t.documents[docID] == nil {
		return errDocumentNotFound
	}
	delete(t.documents, docID)
	return nil
}

func (s *InMemory) ListDocuments(_ context.Context, p id.Partition, claimID id.ClaimID) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Document
	if t := s.partitions[p.Schema]; t != nil {
		for _, d := range t.documents {
			if d.ClaimID == claimID {
				cp := *d
				out = append(out, &cp)
			}
		}
	}
	slices.SortFunc(out, func(a, b *models.Document) int { return int(a.ID - b.ID) })
	return out, nil
}
