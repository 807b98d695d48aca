// Package conversation keeps the in-memory per-contact message sequences of a
// chat session.
package conversation

import (
	"sync"

	"wechat/internal/models"
)

// Listener is notified after every append with the contact the message was
// filed under.
type Listener func(contactID string, msg models.Message)

// Store maps a contact ID to the ordered sequence of messages exchanged with
// that contact. Sequences only grow by appending; they are never reordered by
// timestamp and never deduplicated.
type Store struct {
	mu        sync.RWMutex
	byContact map[string][]models.Message
	order     []string
	listeners []Listener
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		byContact: make(map[string][]models.Message),
	}
}

// AppendLocal files a message the local user sent to contactID.
func (s *Store) AppendLocal(contactID string, msg models.Message) {
	s.append(contactID, msg)
}

// AppendRemote files a message received from senderID.
func (s *Store) AppendRemote(senderID string, msg models.Message) {
	s.append(senderID, msg)
}

func (s *Store) append(contactID string, msg models.Message) {
	s.mu.Lock()
	if _, ok := s.byContact[contactID]; !ok {
		s.order = append(s.order, contactID)
	}
	s.byContact[contactID] = append(s.byContact[contactID], msg)
	listeners := s.listeners
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(contactID, msg)
	}
}

// MessagesFor returns a copy of the sequence for contactID, or an empty slice
// when nothing has been exchanged yet.
func (s *Store) MessagesFor(contactID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.byContact[contactID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Contacts returns the contacts that have a sequence, in first-seen order.
func (s *Store) Contacts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the total number of messages across all contacts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, msgs := range s.byContact {
		n += len(msgs)
	}
	return n
}

// Hydrate replaces the store content with persisted history. Each message is
// filed under the other participant from localUserID's point of view; history
// order is kept within each contact.
func (s *Store) Hydrate(localUserID string, history []models.Message) {
	byContact := make(map[string][]models.Message)
	var order []string
	for _, msg := range history {
		contactID := msg.ContactFor(localUserID)
		if _, ok := byContact[contactID]; !ok {
			order = append(order, contactID)
		}
		byContact[contactID] = append(byContact[contactID], msg)
	}

	s.mu.Lock()
	s.byContact = byContact
	s.order = order
	s.mu.Unlock()
}

// Subscribe registers fn to be called after each append.
func (s *Store) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}
