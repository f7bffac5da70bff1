package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	grpc_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	grpcpool "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
)

// Ledger 前端需要的帳本操作，grpc client 與 usecase.CoreUseCase 皆符合
type Ledger interface {
	ApplyTransaction(ctx context.Context, req domain.TransactionRequest) (decimal.Decimal, error)
	GetBalance(ctx context.Context, taxID string) (decimal.Decimal, error)
	ListMovements(ctx context.Context, taxID string) ([]domain.Movement, error)
	CreatePerson(ctx context.Context, person domain.Person) (*domain.Person, error)
	GetPerson(ctx context.Context, taxID string) (*domain.Person, error)
	UpdatePerson(ctx context.Context, taxID string, patch domain.PersonPatch) (*domain.Person, error)
	OpenAccount(ctx context.Context, taxID string) (*domain.Account, error)
	CloseAccount(ctx context.Context, taxID string) error
}

type app struct {
	server  string
	timeout time.Duration
	pool    *grpcpool.Pool
	ledger  Ledger
	out     *printer
}

// newRootCmd ledger 為 nil 時連線到 --server 指定的服務
func newRootCmd(ledger Ledger) *cobra.Command {
	a := &app{ledger: ledger}
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Command line front-end for the bank ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.out = newPrinter(cmd.OutOrStdout())
			if a.ledger != nil {
				return nil
			}
			a.pool = grpcpool.NewPool()
			conn, err := a.pool.GetConnection(a.server)
			if err != nil {
				return err
			}
			a.ledger = grpc_adapter.NewClient(conn)
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.pool == nil {
				return nil
			}
			return a.pool.Close()
		},
		// 沒有子命令時進入互動選單
		RunE: func(cmd *cobra.Command, _ []string) error {
			interactive := term.IsTerminal(int(os.Stdin.Fd()))
			return runMenu(cmd.Context(), a.ledger, cmd.InOrStdin(), a.out, interactive)
		},
	}
	root.PersistentFlags().StringVarP(&a.server, "server", "s", "localhost:50051", "ledger gRPC server address")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 10*time.Second, "per request timeout")

	root.AddCommand(
		newPersonCmd(a),
		newAccountCmd(a),
		newTransactionCmd(a, "deposit", domain.TransactionKindDeposit),
		newTransactionCmd(a, "withdraw", domain.TransactionKindWithdrawal),
		newBalanceCmd(a),
		newMovementsCmd(a),
	)
	return root
}

func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.timeout)
}

func newPersonCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "person", Short: "Manage customer records"}

	var (
		p         domain.Person
		birthDate string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a customer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			born, err := domain.ParseBirthDate(birthDate)
			if err != nil {
				return err
			}
			p.BirthDate = born
			ctx, cancel := a.context(cmd)
			defer cancel()
			created, err := a.ledger.CreatePerson(ctx, p)
			if err != nil {
				return err
			}
			a.out.success("person %s created", created.TaxID)
			return nil
		},
	}
	create.Flags().StringVar(&p.TaxID, "tax-id", "", "tax id (punctuation is ignored)")
	create.Flags().StringVar(&p.Name, "name", "", "full name")
	create.Flags().StringVar(&p.IDNumber, "id-number", "", "identity document number")
	create.Flags().StringVar(&birthDate, "birth-date", "", "birth date DD-MM-YYYY")
	create.Flags().StringVar(&p.Email, "email", "", "email address")
	create.Flags().StringVar(&p.Phone, "phone", "", "phone number")
	_ = create.MarkFlagRequired("tax-id")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("birth-date")

	get := &cobra.Command{
		Use:   "get <tax-id>",
		Short: "Show a customer record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			person, err := a.ledger.GetPerson(ctx, args[0])
			if err != nil {
				return err
			}
			a.out.person(person)
			return nil
		},
	}

	var u struct{ name, idNumber, birthDate, email, phone string }
	update := &cobra.Command{
		Use:   "update <tax-id>",
		Short: "Update only the given fields of a customer record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// 只有明確指定的 flag 才更新，空字串也是合法的新值
			var patch domain.PersonPatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.Name = &u.name
			}
			if flags.Changed("id-number") {
				patch.IDNumber = &u.idNumber
			}
			if flags.Changed("email") {
				patch.Email = &u.email
			}
			if flags.Changed("phone") {
				patch.Phone = &u.phone
			}
			if flags.Changed("birth-date") {
				born, err := domain.ParseBirthDate(u.birthDate)
				if err != nil {
					return err
				}
				patch.BirthDate = &born
			}
			ctx, cancel := a.context(cmd)
			defer cancel()
			person, err := a.ledger.UpdatePerson(ctx, args[0], patch)
			if err != nil {
				return err
			}
			a.out.person(person)
			return nil
		},
	}
	update.Flags().StringVar(&u.name, "name", "", "new name")
	update.Flags().StringVar(&u.idNumber, "id-number", "", "new identity document number")
	update.Flags().StringVar(&u.birthDate, "birth-date", "", "new birth date DD-MM-YYYY")
	update.Flags().StringVar(&u.email, "email", "", "new email")
	update.Flags().StringVar(&u.phone, "phone", "", "new phone")

	cmd.AddCommand(create, get, update)
	return cmd
}

func newAccountCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "account", Short: "Open or close accounts"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "open <tax-id>",
			Short: "Open an account for an existing customer",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := a.context(cmd)
				defer cancel()
				account, err := a.ledger.OpenAccount(ctx, args[0])
				if err != nil {
					return err
				}
				a.out.success("account %d opened for %s", account.ID, account.TaxID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "close <tax-id>",
			Short: "Close an account, history is kept",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := a.context(cmd)
				defer cancel()
				if err := a.ledger.CloseAccount(ctx, args[0]); err != nil {
					return err
				}
				a.out.success("account %s closed", domain.NormalizeTaxID(args[0]))
				return nil
			},
		},
	)
	return cmd
}

func newTransactionCmd(a *app, use string, kind domain.TransactionKind) *cobra.Command {
	var requestID string
	cmd := &cobra.Command{
		Use:   use + " <tax-id> <amount>",
		Short: "Post a " + kind.String() + " and print the new balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := domain.ParseAmount(args[1])
			if err != nil {
				return err
			}
			req := domain.TransactionRequest{TaxID: args[0], Amount: amount, Kind: kind}
			if requestID != "" {
				if req.RequestID, err = uuid.Parse(requestID); err != nil {
					return err
				}
			}
			ctx, cancel := a.context(cmd)
			defer cancel()
			balance, err := a.ledger.ApplyTransaction(ctx, req)
			if err != nil {
				return err
			}
			a.out.success("balance: %s", balance.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&requestID, "request-id", "", "UUID that makes retries idempotent")
	return cmd
}

func newBalanceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <tax-id>",
		Short: "Show the current balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			balance, err := a.ledger.GetBalance(ctx, args[0])
			if err != nil {
				return err
			}
			a.out.success("balance: %s", balance.String())
			return nil
		},
	}
}

func newMovementsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "movements <tax-id>",
		Short: "List account movements in insertion order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			movements, err := a.ledger.ListMovements(ctx, args[0])
			if err != nil {
				return err
			}
			a.out.movements(movements)
			return nil
		},
	}
}

var _ Ledger = (*grpc_adapter.Client)(nil)
