package grpc

import (
	"context"

	"google.golang.org/grpc"

	// 註冊 JSON codec
	_ "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
)

// ServiceName 對外的 gRPC service 名稱
const ServiceName = "ledger.v1.LedgerService"

// LedgerServiceServer 帳本服務的 server 介面
type LedgerServiceServer interface {
	ApplyTransaction(context.Context, *ApplyTransactionRequest) (*ApplyTransactionResponse, error)
	GetBalance(context.Context, *TaxIDRequest) (*BalanceResponse, error)
	ListMovements(context.Context, *TaxIDRequest) (*ListMovementsResponse, error)
	CreatePerson(context.Context, *PersonMessage) (*PersonMessage, error)
	GetPerson(context.Context, *TaxIDRequest) (*PersonMessage, error)
	UpdatePerson(context.Context, *UpdatePersonRequest) (*PersonMessage, error)
	OpenAccount(context.Context, *TaxIDRequest) (*AccountMessage, error)
	CloseAccount(context.Context, *TaxIDRequest) (*Empty, error)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unaryHandler 將型別化的方法轉成 grpc.MethodHandler，解碼交給連線上的 codec
func unaryHandler[Req, Resp any](method string, call func(LedgerServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(method),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// LedgerServiceDesc 手寫的 service descriptor，訊息以 JSON codec 編碼
var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ApplyTransaction", Handler: unaryHandler("ApplyTransaction", LedgerServiceServer.ApplyTransaction)},
		{MethodName: "GetBalance", Handler: unaryHandler("GetBalance", LedgerServiceServer.GetBalance)},
		{MethodName: "ListMovements", Handler: unaryHandler("ListMovements", LedgerServiceServer.ListMovements)},
		{MethodName: "CreatePerson", Handler: unaryHandler("CreatePerson", LedgerServiceServer.CreatePerson)},
		{MethodName: "GetPerson", Handler: unaryHandler("GetPerson", LedgerServiceServer.GetPerson)},
		{MethodName: "UpdatePerson", Handler: unaryHandler("UpdatePerson", LedgerServiceServer.UpdatePerson)},
		{MethodName: "OpenAccount", Handler: unaryHandler("OpenAccount", LedgerServiceServer.OpenAccount)},
		{MethodName: "CloseAccount", Handler: unaryHandler("CloseAccount", LedgerServiceServer.CloseAccount)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/ledger.json",
}

// RegisterLedgerServiceServer 註冊服務到 gRPC server
func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}
