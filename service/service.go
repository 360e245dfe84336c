// Package service implements the relay operations sessions perform against
// the room registry.
package service

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parlemonde/clap/model"
)

type (
	// Registry is the shared room/peer mapping. All operations are atomic
	// with respect to each other.
	Registry interface {
		Join(roomName string, peerID uuid.UUID, queue *model.Queue)
		Candidates(roomName string, exclude uuid.UUID) []*model.Queue
		Leave(roomName string, peerID uuid.UUID)
	}

	Service struct {
		registry Registry
		logger   zerolog.Logger
	}

	Config struct {
		Registry Registry
		Logger   *zerolog.Logger
	}
)

func NewService(cfg Config) *Service {
	return &Service{
		registry: cfg.Registry,
		logger:   cfg.Logger.With().Str("component", "relay").Logger(),
	}
}

// Join registers the peer's outbound queue under the room name.
func (svc *Service) Join(roomName string, peerID uuid.UUID, queue *model.Queue) {
	svc.registry.Join(roomName, peerID, queue)
	svc.logger.Debug().
		Str("peerID", peerID.String()).
		Str("roomName", roomName).
		Msg("peer joined room")
}

// Broadcast enqueues text on every peer in the room except the sender.
// Enqueueing never blocks, so the registry lock is long released by the
// time any transport write happens.
func (svc *Service) Broadcast(roomName string, sender uuid.UUID, text string) {
	queues := svc.registry.Candidates(roomName, sender)
	for _, queue := range queues {
		queue.Push(model.Message{Kind: model.KindText, Text: text})
	}
	svc.logger.Trace().
		Str("peerID", sender.String()).
		Str("roomName", roomName).
		Int("recipients", len(queues)).
		Msg("message relayed")
}

// Leave removes the peer from the room. Safe to call for peers that
// already left.
func (svc *Service) Leave(roomName string, peerID uuid.UUID) {
	svc.registry.Leave(roomName, peerID)
	svc.logger.Debug().
		Str("peerID", peerID.String()).
		Str("roomName", roomName).
		Msg("peer left room")
}
