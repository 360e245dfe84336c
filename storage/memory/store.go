// Package memory holds the in-memory room registry shared by all sessions.
package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/parlemonde/clap/model"
)

// Store maps room names to their currently connected peers. A room exists
// iff it has at least one peer: rooms are created lazily on first join and
// deleted atomically with the last leave.
//
// One mutex guards the whole structure. Critical sections only touch the
// maps; callers receive queue handles and perform any sending after the
// lock is released.
type Store struct {
	mx    *sync.Mutex
	rooms map[string]map[uuid.UUID]*model.Queue
}

func NewStore() *Store {
	return &Store{
		mx:    &sync.Mutex{},
		rooms: make(map[string]map[uuid.UUID]*model.Queue),
	}
}

// Join inserts the peer into the named room, creating the room if absent.
func (s *Store) Join(roomName string, peerID uuid.UUID, queue *model.Queue) {
	s.mx.Lock()
	defer s.mx.Unlock()

	room, ok := s.rooms[roomName]
	if !ok {
		room = make(map[uuid.UUID]*model.Queue)
		s.rooms[roomName] = room
	}
	room[peerID] = queue
}

// Candidates returns the outbound queues of every peer currently in the
// room except the excluded one, snapshotted at a single consistent instant.
func (s *Store) Candidates(roomName string, exclude uuid.UUID) []*model.Queue {
	s.mx.Lock()
	defer s.mx.Unlock()

	room, ok := s.rooms[roomName]
	if !ok {
		return nil
	}
	queues := make([]*model.Queue, 0, len(room))
	for peerID, queue := range room {
		if peerID != exclude {
			queues = append(queues, queue)
		}
	}
	return queues
}

// Leave removes the peer from the room and deletes the room if it becomes
// empty. Leaving a room or peer that is already gone is a no-op, so
// duplicate cleanup calls are safe.
func (s *Store) Leave(roomName string, peerID uuid.UUID) {
	s.mx.Lock()
	defer s.mx.Unlock()

	room, ok := s.rooms[roomName]
	if !ok {
		return
	}
	delete(room, peerID)
	if len(room) == 0 {
		delete(s.rooms, roomName)
	}
}

// RoomCount reports how many rooms currently exist.
func (s *Store) RoomCount() int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return len(s.rooms)
}

// PeerCount reports how many peers are in the named room, zero if absent.
func (s *Store) PeerCount(roomName string) int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return len(s.rooms[roomName])
}
