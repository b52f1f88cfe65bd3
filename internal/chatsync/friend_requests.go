package chatsync

import (
	"context"
	"errors"

	"chat-sync-service/internal/faults"
	"chat-sync-service/internal/models"
	"chat-sync-service/internal/repositories"
)

// SendFriendRequest creates a pending request. Duplicate requests between
// the same pair are not prevented; this is an accepted limitation.
func (s *Service) SendFriendRequest(ctx context.Context, senderID, receiverID string) (models.FriendRequest, error) {
	if senderID == "" {
		return models.FriendRequest{}, faults.New(faults.NotAuthenticated, "no authenticated sender")
	}
	if senderID == receiverID {
		return models.FriendRequest{}, faults.New(faults.ValidationFailure, "cannot befriend yourself")
	}
	if receiverID == "" {
		return models.FriendRequest{}, faults.New(faults.ValidationFailure, "receiver id is empty")
	}

	req, err := s.requests.CreateRequest(ctx, senderID, receiverID)
	if err != nil {
		return models.FriendRequest{}, faults.Wrap(faults.RemoteFailure, "create friend request", err)
	}
	return req, nil
}

// AcceptFriendRequest moves a pending request to accepted and creates the
// shared chat room. The two writes are not atomic: a crash in between
// leaves an accepted request without a room, which heals via the lazy
// find-or-create path on first send.
func (s *Service) AcceptFriendRequest(ctx context.Context, requestID string) error {
	req, err := s.loadPending(ctx, requestID)
	if err != nil {
		return err
	}

	if err := s.requests.UpdateStatus(ctx, requestID, models.FriendRequestAccepted); err != nil {
		return faults.Wrap(faults.RemoteFailure, "accept friend request", err)
	}

	if _, err := s.rooms.FindOrCreateRoom(ctx, req.SenderID, req.ReceiverID); err != nil {
		return faults.Wrap(faults.RemoteFailure, "create chat room for accepted request", err)
	}
	s.notifyParticipants(ctx, req.SenderID, req.ReceiverID)
	return nil
}

// DeclineFriendRequest moves a pending request to declined. Terminal, no
// room is created.
func (s *Service) DeclineFriendRequest(ctx context.Context, requestID string) error {
	if _, err := s.loadPending(ctx, requestID); err != nil {
		return err
	}
	return faults.Wrap(faults.RemoteFailure, "decline friend request",
		s.requests.UpdateStatus(ctx, requestID, models.FriendRequestDeclined))
}

// ListPendingRequests returns pending requests addressed to the user.
func (s *Service) ListPendingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	reqs, err := s.requests.ListPendingForUser(ctx, userID)
	return reqs, faults.Wrap(faults.RemoteFailure, "list friend requests", err)
}

func (s *Service) loadPending(ctx context.Context, requestID string) (models.FriendRequest, error) {
	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repositories.ErrRequestNotFound) {
			return models.FriendRequest{}, faults.Wrap(faults.NotFound, "friend request not found", err)
		}
		return models.FriendRequest{}, faults.Wrap(faults.RemoteFailure, "load friend request", err)
	}
	if req.Status != models.FriendRequestPending {
		return models.FriendRequest{}, faults.New(faults.ValidationFailure, "friend request is not pending")
	}
	return req, nil
}
