package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	grpc_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	grpcpool "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
)

// 對同一個帳戶併發提款，確認成功筆數剛好是 floor(初始餘額 / 單筆金額)
type options struct {
	server      string
	taxID       string
	funding     string
	amount      string
	requests    int
	concurrency int
	timeout     time.Duration
}

func main() {
	var opts options
	root := &cobra.Command{
		Use:          "test_rpc_client",
		Short:        "Concurrent withdrawal load check against a running ledger server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	f := root.Flags()
	f.StringVar(&opts.server, "server", "localhost:50051", "ledger gRPC server address")
	f.StringVar(&opts.taxID, "tax-id", "", "account used for the run (default: random)")
	f.StringVar(&opts.funding, "funding", "1000.00", "initial deposit")
	f.StringVar(&opts.amount, "amount", "7.00", "amount of each withdrawal")
	f.IntVar(&opts.requests, "requests", 1000, "number of withdrawals")
	f.IntVar(&opts.concurrency, "concurrency", 100, "in-flight requests")
	f.DurationVar(&opts.timeout, "timeout", 120*time.Second, "overall deadline")

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	funding, err := domain.ParseAmount(opts.funding)
	if err != nil {
		return fmt.Errorf("--funding: %w", err)
	}
	amount, err := domain.ParseAmount(opts.amount)
	if err != nil {
		return fmt.Errorf("--amount: %w", err)
	}
	if opts.taxID == "" {
		// 隨機 11 位數，避免與既有帳戶衝突
		opts.taxID = fmt.Sprintf("9%010d", uuid.New().ID())
	}

	pool := grpcpool.NewPool()
	defer pool.Close()
	conn, err := pool.GetConnection(opts.server)
	if err != nil {
		return err
	}
	client := grpc_adapter.NewClient(conn)

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	if err := prepare(ctx, client, opts.taxID, funding); err != nil {
		return err
	}
	start, err := client.GetBalance(ctx, opts.taxID)
	if err != nil {
		return err
	}

	var (
		wg           sync.WaitGroup
		succeeded    atomic.Int64
		insufficient atomic.Int64
		failed       atomic.Int64
	)
	sem := make(chan struct{}, opts.concurrency)
	startTime := time.Now()

	for i := 0; i < opts.requests; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := client.ApplyTransaction(ctx, domain.TransactionRequest{
				RequestID: uuid.New(),
				TaxID:     opts.taxID,
				Amount:    amount,
				Kind:      domain.TransactionKindWithdrawal,
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrInsufficientFunds):
				insufficient.Add(1)
			default:
				failed.Add(1)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(startTime)

	final, err := client.GetBalance(ctx, opts.taxID)
	if err != nil {
		return err
	}
	movements, err := client.ListMovements(ctx, opts.taxID)
	if err != nil {
		return err
	}

	fmt.Printf("Completed %d requests in %v\n", opts.requests, elapsed)
	fmt.Printf("TPS: %.2f\n", float64(opts.requests)/elapsed.Seconds())
	fmt.Printf("succeeded=%d insufficient=%d failed=%d\n", succeeded.Load(), insufficient.Load(), failed.Load())

	return verify(start, final, amount, succeeded.Load(), failed.Load(), movements, opts.requests)
}

// prepare 建立客戶與帳戶 (已存在時沿用) 並存入初始金額
func prepare(ctx context.Context, client *grpc_adapter.Client, taxID string, funding decimal.Decimal) error {
	born, _ := domain.ParseBirthDate("01-01-1990")
	_, err := client.CreatePerson(ctx, domain.Person{TaxID: taxID, Name: "load test", BirthDate: born})
	if err != nil && !errors.Is(err, domain.ErrPersonAlreadyExists) {
		return err
	}
	if _, err := client.OpenAccount(ctx, taxID); err != nil && !errors.Is(err, domain.ErrAccountAlreadyExists) {
		return err
	}
	_, err = client.ApplyTransaction(ctx, domain.TransactionRequest{
		RequestID: uuid.New(),
		TaxID:     taxID,
		Amount:    funding,
		Kind:      domain.TransactionKindDeposit,
	})
	return err
}

func verify(start, final, amount decimal.Decimal, succeeded, failed int64, movements []domain.Movement, requests int) error {
	ok := color.New(color.FgGreen, color.Bold)
	bad := color.New(color.FgRed, color.Bold)

	if failed > 0 {
		bad.Printf("FAIL: %d requests failed with unexpected errors\n", failed)
		return fmt.Errorf("%d unexpected failures", failed)
	}

	expected := start.Div(amount).Floor().IntPart()
	if expected > int64(requests) {
		expected = int64(requests)
	}
	if succeeded != expected {
		bad.Printf("FAIL: %d withdrawals succeeded, expected %d\n", succeeded, expected)
		return errors.New("double spend check failed")
	}

	want := start.Sub(amount.Mul(decimal.NewFromInt(succeeded)))
	if !final.Equal(want) || final.IsNegative() {
		bad.Printf("FAIL: final balance %s, expected %s\n", final, want)
		return errors.New("balance mismatch")
	}
	if sum := domain.SumMovements(movements); !sum.Equal(final) {
		bad.Printf("FAIL: movements sum to %s, balance is %s\n", sum, final)
		return errors.New("movement invariant violated")
	}

	ok.Printf("OK: %d withdrawals of %s from %s, final balance %s\n", succeeded, amount, start, final)
	return nil
}
