package grpc_test

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	ledgergrpc "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	grpcpool "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
)

const taxID = "11122233344"

func newTestClient(t *testing.T) *ledgergrpc.Client {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	store, err := memory.NewMutexLedger(nil)
	require.NoError(t, err)
	core := usecase.NewCoreUseCase(store, logger)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpcpool.ServerOptions(grpc.UnaryInterceptor(ledgergrpc.LoggingInterceptor(logger)))...)
	ledgergrpc.RegisterLedgerServiceServer(srv, ledgergrpc.NewGrpcServer(core))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	pool := grpcpool.NewPool(grpcpool.WithDialOptions(
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	))
	t.Cleanup(func() { _ = pool.Close() })

	conn, err := pool.GetConnection("passthrough:///bufnet")
	require.NoError(t, err)
	return ledgergrpc.NewClient(conn)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func openFunded(t *testing.T, c *ledgergrpc.Client) {
	t.Helper()
	ctx := context.Background()
	born, err := domain.ParseBirthDate("02-01-1990")
	require.NoError(t, err)
	_, err = c.CreatePerson(ctx, domain.Person{TaxID: "111.222.333-44", Name: "Ana", BirthDate: born})
	require.NoError(t, err)
	_, err = c.OpenAccount(ctx, taxID)
	require.NoError(t, err)
}

func TestGrpc_DepositWithdrawRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	openFunded(t, c)

	balance, err := c.ApplyTransaction(ctx, domain.TransactionRequest{TaxID: "111.222.333-44", Amount: dec("100.00"), Kind: domain.TransactionKindDeposit})
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("100")))

	balance, err = c.ApplyTransaction(ctx, domain.TransactionRequest{TaxID: taxID, Amount: dec("30.00"), Kind: domain.TransactionKindWithdrawal})
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("70")))

	_, err = c.ApplyTransaction(ctx, domain.TransactionRequest{TaxID: taxID, Amount: dec("70.01"), Kind: domain.TransactionKindWithdrawal})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	got, err := c.GetBalance(ctx, taxID)
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("70")))

	movements, err := c.ListMovements(ctx, taxID)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, domain.TransactionKindDeposit, movements[0].Kind)
	assert.True(t, movements[1].BalanceAfter.Equal(dec("70")))
}

func TestGrpc_ErrorKindsSurviveTransport(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	_, err := c.GetBalance(ctx, "000")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.Equal(t, codes.NotFound, status.Code(err))

	var remote *ledgergrpc.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, domain.KindAccountNotFound, remote.Kind)

	_, err = c.ApplyTransaction(ctx, domain.TransactionRequest{TaxID: taxID, Amount: dec("1"), Kind: "transfer"})
	require.ErrorIs(t, err, domain.ErrInvalidTransactionKind)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.ApplyTransaction(ctx, domain.TransactionRequest{TaxID: taxID, Amount: dec("-1"), Kind: domain.TransactionKindDeposit})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = c.CreatePerson(ctx, domain.Person{TaxID: taxID})
	require.ErrorIs(t, err, domain.ErrInvalidPerson)
}

func TestGrpc_InvalidRequestIDHasNoKind(t *testing.T) {
	conn := newRawConn(t)
	out := new(ledgergrpc.ApplyTransactionResponse)
	err := conn.Invoke(context.Background(), "/"+ledgergrpc.ServiceName+"/ApplyTransaction",
		&ledgergrpc.ApplyTransactionRequest{RequestID: "not-a-uuid", TaxID: taxID, Kind: "deposit", Amount: "1"}, out,
		grpc.CallContentSubtype(grpcpool.CodecName))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, domain.KindUnknown, domain.KindOf(err))
}

func TestGrpc_RequestIDReplay(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	openFunded(t, c)

	req := domain.TransactionRequest{RequestID: uuid.New(), TaxID: taxID, Amount: dec("5"), Kind: domain.TransactionKindDeposit}
	first, err := c.ApplyTransaction(ctx, req)
	require.NoError(t, err)
	again, err := c.ApplyTransaction(ctx, req)
	require.NoError(t, err)
	assert.True(t, first.Equal(again))

	req.Amount = dec("6")
	_, err = c.ApplyTransaction(ctx, req)
	require.ErrorIs(t, err, domain.ErrDuplicateRequest)
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	movements, err := c.ListMovements(ctx, taxID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, req.RequestID, movements[0].RequestID)
}

func TestGrpc_PersonAndAccountLifecycle(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	openFunded(t, c)

	email := "ana@example.com"
	born, err := domain.ParseBirthDate("03-04-1985")
	require.NoError(t, err)
	updated, err := c.UpdatePerson(ctx, taxID, domain.PersonPatch{Email: &email, BirthDate: &born})
	require.NoError(t, err)
	assert.Equal(t, email, updated.Email)
	assert.Equal(t, "Ana", updated.Name)
	assert.True(t, updated.BirthDate.Equal(born))

	got, err := c.GetPerson(ctx, "111 222 333 44")
	require.NoError(t, err)
	assert.Equal(t, email, got.Email)

	_, err = c.OpenAccount(ctx, taxID)
	require.ErrorIs(t, err, domain.ErrAccountAlreadyExists)

	require.NoError(t, c.CloseAccount(ctx, taxID))
	_, err = c.ApplyTransaction(ctx, domain.TransactionRequest{TaxID: taxID, Amount: dec("1"), Kind: domain.TransactionKindDeposit})
	require.ErrorIs(t, err, domain.ErrAccountClosed)

	movements, err := c.ListMovements(ctx, taxID)
	require.NoError(t, err)
	assert.NotNil(t, movements)
	assert.Empty(t, movements)
}

// newRawConn 不經過 Client，直接呼叫服務
func newRawConn(t *testing.T) *grpc.ClientConn {
	t.Helper()
	store, err := memory.NewMutexLedger(nil)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	ledgergrpc.RegisterLedgerServiceServer(srv, ledgergrpc.NewGrpcServer(usecase.NewCoreUseCase(store, nil)))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	pool := grpcpool.NewPool(grpcpool.WithDialOptions(
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	))
	t.Cleanup(func() { _ = pool.Close() })
	conn, err := pool.GetConnection("passthrough:///bufnet")
	require.NoError(t, err)
	return conn
}
