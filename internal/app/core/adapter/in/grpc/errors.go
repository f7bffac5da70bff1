package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// ErrorKindTrailer 錯誤分類放在 trailer，client 據此還原 domain 的 sentinel error
const ErrorKindTrailer = "x-ledger-error-kind"

func codeFor(kind domain.ErrorKind) codes.Code {
	switch kind {
	case domain.KindAccountNotFound, domain.KindPersonNotFound:
		return codes.NotFound
	case domain.KindInsufficientFunds, domain.KindAccountClosed:
		return codes.FailedPrecondition
	case domain.KindInvalidAmount, domain.KindInvalidTransactionKind, domain.KindInvalidPerson:
		return codes.InvalidArgument
	case domain.KindAccountAlreadyExists, domain.KindPersonAlreadyExists, domain.KindDuplicateRequest:
		return codes.AlreadyExists
	case domain.KindPersistence:
		return codes.Unavailable
	}
	return codes.Internal
}

// toStatus 將 usecase 的錯誤轉成 gRPC status，並設定錯誤分類 trailer
func toStatus(ctx context.Context, err error) error {
	kind := domain.KindOf(err)
	if kind == domain.KindUnknown {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return status.FromContextError(err).Err()
		}
		return status.Error(codes.Internal, err.Error())
	}
	// SetTrailer 只在 server handler 的 context 內有效，失敗時仍回傳 status code
	_ = grpc.SetTrailer(ctx, metadata.Pairs(ErrorKindTrailer, kind.String()))
	return status.Error(codeFor(kind), err.Error())
}

// RemoteError 由 server 回傳並帶有錯誤分類的錯誤
//
// errors.Is(err, domain.ErrInsufficientFunds) 與 status.Code(err) 都可使用
type RemoteError struct {
	Kind   domain.ErrorKind
	status *status.Status
}

func (e *RemoteError) Error() string {
	return e.status.Message()
}

func (e *RemoteError) Unwrap() error {
	return domain.ErrorFor(e.Kind)
}

// GRPCStatus 讓 status.FromError 能取回原始 status
func (e *RemoteError) GRPCStatus() *status.Status {
	return e.status
}

// fromStatus 依 trailer 還原錯誤分類；沒有分類時回傳原本的 status error
func fromStatus(err error, trailer metadata.MD) error {
	values := trailer.Get(ErrorKindTrailer)
	if len(values) == 0 {
		return err
	}
	kind := domain.ParseErrorKind(values[0])
	if domain.ErrorFor(kind) == nil {
		return err
	}
	return &RemoteError{Kind: kind, status: status.Convert(err)}
}
