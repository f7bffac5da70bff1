package grpc

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

type GrpcServer struct {
	core *usecase.CoreUseCase
}

func NewGrpcServer(core *usecase.CoreUseCase) *GrpcServer {
	return &GrpcServer{
		core: core,
	}
}

func (s *GrpcServer) ApplyTransaction(ctx context.Context, req *ApplyTransactionRequest) (*ApplyTransactionResponse, error) {
	// 1. request id 可省略
	requestID := uuid.Nil
	if req.RequestID != "" {
		u, err := uuid.Parse(req.RequestID)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "invalid request_id: "+err.Error())
		}
		requestID = u
	}

	// 2. 先檢查交易類型，再檢查金額
	kind, err := domain.ParseTransactionKind(req.Kind)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	// 3. 執行交易
	balance, err := s.core.ApplyTransaction(ctx, domain.TransactionRequest{
		RequestID: requestID,
		TaxID:     req.TaxID,
		Amount:    amount,
		Kind:      kind,
	})
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &ApplyTransactionResponse{Balance: balance.String()}, nil
}

func (s *GrpcServer) GetBalance(ctx context.Context, req *TaxIDRequest) (*BalanceResponse, error) {
	balance, err := s.core.GetBalance(ctx, req.TaxID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &BalanceResponse{
		TaxID:   domain.NormalizeTaxID(req.TaxID),
		Balance: balance.String(),
	}, nil
}

func (s *GrpcServer) ListMovements(ctx context.Context, req *TaxIDRequest) (*ListMovementsResponse, error) {
	movements, err := s.core.ListMovements(ctx, req.TaxID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	resp := &ListMovementsResponse{Movements: make([]MovementMessage, 0, len(movements))}
	for _, mv := range movements {
		resp.Movements = append(resp.Movements, movementToMessage(mv))
	}
	return resp, nil
}

func (s *GrpcServer) CreatePerson(ctx context.Context, req *PersonMessage) (*PersonMessage, error) {
	person, err := req.toDomain()
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	created, err := s.core.CreatePerson(ctx, person)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return personToMessage(created), nil
}

func (s *GrpcServer) GetPerson(ctx context.Context, req *TaxIDRequest) (*PersonMessage, error) {
	person, err := s.core.GetPerson(ctx, req.TaxID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return personToMessage(person), nil
}

func (s *GrpcServer) UpdatePerson(ctx context.Context, req *UpdatePersonRequest) (*PersonMessage, error) {
	patch, err := req.patch()
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	person, err := s.core.UpdatePerson(ctx, req.TaxID, patch)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return personToMessage(person), nil
}

func (s *GrpcServer) OpenAccount(ctx context.Context, req *TaxIDRequest) (*AccountMessage, error) {
	account, err := s.core.OpenAccount(ctx, req.TaxID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return accountToMessage(account), nil
}

func (s *GrpcServer) CloseAccount(ctx context.Context, req *TaxIDRequest) (*Empty, error) {
	if err := s.core.CloseAccount(ctx, req.TaxID); err != nil {
		return nil, toStatus(ctx, err)
	}
	return &Empty{}, nil
}

var _ LedgerServiceServer = (*GrpcServer)(nil)
