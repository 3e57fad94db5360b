package escrow

import "context"

// Store persists service requests, their escrows, and provider responses.
type Store interface {
	UpsertRequest(ctx context.Context, request ServiceRequest) error
	GetRequest(ctx context.Context, requestID string) (*ServiceRequest, error)
	ListRequests(ctx context.Context) ([]ServiceRequest, error)

	UpsertEscrow(ctx context.Context, escrow Escrow) error
	GetEscrow(ctx context.Context, escrowID string) (*Escrow, error)

	AppendResponse(ctx context.Context, response ServiceResponse) error
	ListResponses(ctx context.Context, requestID string) ([]ServiceResponse, error)
}
