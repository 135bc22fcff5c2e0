// Package recovery runs the recovery request workflow: a viewer who lost
// access asks for it again, the admin approves or denies, and an approved
// request is redeemed for exactly one device.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"csv-share-access/internal/links"
	"csv-share-access/internal/storage"
	"csv-share-access/internal/utils"
)

var (
	ErrNotFound    = errors.New("recovery request not found")
	ErrNotApproved = errors.New("recovery request is not approved")
)

type Store interface {
	CreateRecoveryRequest(ctx context.Context, req storage.RecoveryRequest) error
	GetRecoveryRequest(ctx context.Context, id string) (*storage.RecoveryRequest, error)
	ListRecoveryRequests(ctx context.Context, statuses ...storage.RequestStatus) ([]storage.RecoveryRequest, error)
	ResolveRecoveryRequest(ctx context.Context, id string, from, to storage.RequestStatus, at time.Time) (bool, error)
}

// Activator issues device tokens. *links.Controller implements it.
type Activator interface {
	ActivateDevice(ctx context.Context, a links.Activation) (string, error)
}

type Approval struct {
	Approved bool
	Status   Status
	LinkID   string
	Consumed bool
}

type Service struct {
	store     Store
	activator Activator

	now    func() time.Time
	logger *slog.Logger
}

func NewService(store Store, activator Activator) *Service {
	return &Service{
		store:     store,
		activator: activator,
		now:       time.Now,
		logger:    slog.With("component", "recovery"),
	}
}

// Submit records a new pending request. Link state is not checked and
// repeated submissions each get their own row.
func (s *Service) Submit(ctx context.Context, linkID, fingerprint, message string) (*storage.RecoveryRequest, error) {
	req := storage.RecoveryRequest{
		ID:              utils.NewID(),
		LinkID:          linkID,
		FingerprintHash: fingerprint,
		Message:         message,
		Status:          StatusPending,
		CreatedAt:       s.now(),
	}
	if err := s.store.CreateRecoveryRequest(ctx, req); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, links.ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to create recovery request: %w", err)
	}
	s.logger.Info("Recovery requested", "request_id", req.ID, "link_id", linkID)
	return &req, nil
}

func (s *Service) Approve(ctx context.Context, id string) (*storage.RecoveryRequest, error) {
	return s.resolve(ctx, id, StatusApproved)
}

func (s *Service) Deny(ctx context.Context, id string) (*storage.RecoveryRequest, error) {
	return s.resolve(ctx, id, StatusDenied)
}

func (s *Service) resolve(ctx context.Context, id string, to Status) (*storage.RecoveryRequest, error) {
	if err := Transition(StatusPending, to); err != nil {
		return nil, err
	}
	ok, err := s.store.ResolveRecoveryRequest(ctx, id, StatusPending, to, s.now())
	if err != nil {
		return nil, err
	}

	req, err := s.store.GetRecoveryRequest(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := Transition(req.Status, to); err != nil {
			return nil, err
		}
		return nil, ErrInvalidTransition
	}
	s.logger.Info("Recovery request resolved", "request_id", id, "status", to)
	return req, nil
}

// CheckApproved reports the approval state of a request, or nil when the
// request does not exist.
func (s *Service) CheckApproved(ctx context.Context, id string) (*Approval, error) {
	req, err := s.store.GetRecoveryRequest(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Approval{
		Approved: req.Status == StatusApproved,
		Status:   req.Status,
		LinkID:   req.LinkID,
		Consumed: req.ConsumedAt != nil,
	}, nil
}

// Redeem turns an approved request into a device token for linkID. A request
// is redeemable once.
func (s *Service) Redeem(ctx context.Context, id, linkID, fingerprint string) (string, error) {
	approval, err := s.CheckApproved(ctx, id)
	if err != nil {
		return "", err
	}
	if approval == nil || !approval.Approved || approval.LinkID != linkID {
		return "", ErrNotApproved
	}
	if approval.Consumed {
		return "", links.ErrRequestAlreadyUsed
	}
	return s.activator.ActivateDevice(ctx, links.Activation{
		LinkID:            linkID,
		Fingerprint:       fingerprint,
		ApprovedRequestID: id,
	})
}

// List returns pending and approved requests, newest first.
func (s *Service) List(ctx context.Context) ([]storage.RecoveryRequest, error) {
	return s.store.ListRecoveryRequests(ctx, StatusPending, StatusApproved)
}

func (s *Service) ListApproved(ctx context.Context) ([]storage.RecoveryRequest, error) {
	return s.store.ListRecoveryRequests(ctx, StatusApproved)
}
