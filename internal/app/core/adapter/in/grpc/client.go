package grpc

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// Client 帳本服務的 client，回傳值與 usecase.CoreUseCase 相同的 domain 型別
//
// 錯誤可用 errors.Is 比對 domain 的 sentinel error
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient conn 需使用 JSON codec (pkg/grpc.Pool 預設已設定)
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	var trailer metadata.MD
	if err := c.conn.Invoke(ctx, fullMethod(method), in, out, grpc.Trailer(&trailer)); err != nil {
		return fromStatus(err, trailer)
	}
	return nil
}

// ApplyTransaction 存款或提款，回傳交易後餘額
func (c *Client) ApplyTransaction(ctx context.Context, req domain.TransactionRequest) (decimal.Decimal, error) {
	in := &ApplyTransactionRequest{
		TaxID:  req.TaxID,
		Kind:   req.Kind.String(),
		Amount: req.Amount.String(),
	}
	if req.RequestID != uuid.Nil {
		in.RequestID = req.RequestID.String()
	}
	out := new(ApplyTransactionResponse)
	if err := c.invoke(ctx, "ApplyTransaction", in, out); err != nil {
		return decimal.Zero, err
	}
	return parseDecimal(out.Balance)
}

func (c *Client) GetBalance(ctx context.Context, taxID string) (decimal.Decimal, error) {
	out := new(BalanceResponse)
	if err := c.invoke(ctx, "GetBalance", &TaxIDRequest{TaxID: taxID}, out); err != nil {
		return decimal.Zero, err
	}
	return parseDecimal(out.Balance)
}

func (c *Client) ListMovements(ctx context.Context, taxID string) ([]domain.Movement, error) {
	out := new(ListMovementsResponse)
	if err := c.invoke(ctx, "ListMovements", &TaxIDRequest{TaxID: taxID}, out); err != nil {
		return nil, err
	}
	movements := make([]domain.Movement, 0, len(out.Movements))
	for _, msg := range out.Movements {
		mv, err := msg.toDomain()
		if err != nil {
			return nil, fmt.Errorf("decode movement %d: %w", msg.ID, err)
		}
		movements = append(movements, mv)
	}
	return movements, nil
}

func (c *Client) CreatePerson(ctx context.Context, person domain.Person) (*domain.Person, error) {
	out := new(PersonMessage)
	if err := c.invoke(ctx, "CreatePerson", personToMessage(&person), out); err != nil {
		return nil, err
	}
	return decodePerson(out)
}

func (c *Client) GetPerson(ctx context.Context, taxID string) (*domain.Person, error) {
	out := new(PersonMessage)
	if err := c.invoke(ctx, "GetPerson", &TaxIDRequest{TaxID: taxID}, out); err != nil {
		return nil, err
	}
	return decodePerson(out)
}

func (c *Client) UpdatePerson(ctx context.Context, taxID string, patch domain.PersonPatch) (*domain.Person, error) {
	in := &UpdatePersonRequest{
		TaxID:    taxID,
		Name:     patch.Name,
		IDNumber: patch.IDNumber,
		Email:    patch.Email,
		Phone:    patch.Phone,
	}
	if patch.BirthDate != nil {
		born := patch.BirthDate.Format(domain.BirthDateLayout)
		in.BirthDate = &born
	}
	out := new(PersonMessage)
	if err := c.invoke(ctx, "UpdatePerson", in, out); err != nil {
		return nil, err
	}
	return decodePerson(out)
}

func (c *Client) OpenAccount(ctx context.Context, taxID string) (*domain.Account, error) {
	out := new(AccountMessage)
	if err := c.invoke(ctx, "OpenAccount", &TaxIDRequest{TaxID: taxID}, out); err != nil {
		return nil, err
	}
	return out.toDomain()
}

func (c *Client) CloseAccount(ctx context.Context, taxID string) error {
	return c.invoke(ctx, "CloseAccount", &TaxIDRequest{TaxID: taxID}, new(Empty))
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode amount %q: %w", s, err)
	}
	return d, nil
}

func decodePerson(msg *PersonMessage) (*domain.Person, error) {
	p, err := msg.toDomain()
	if err != nil {
		return nil, err
	}
	return &p, nil
}
