package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

var menuItems = []string{
	"1. Create person",
	"2. Open account",
	"3. Show person",
	"4. Update person",
	"5. Deposit / withdraw",
	"6. Show balance",
	"7. List movements",
	"8. Close account",
	"9. Exit",
}

// menu 互動式文字選單，每個選項的錯誤只印出，不會中斷選單
type menu struct {
	ledger      Ledger
	in          *bufio.Scanner
	out         *printer
	interactive bool
}

// runMenu 讀取 in 直到選擇離開或輸入結束
//
// interactive 為 false 時 (例如以管線輸入) 不印出選單與提示
func runMenu(ctx context.Context, ledger Ledger, in io.Reader, out *printer, interactive bool) error {
	m := &menu{ledger: ledger, in: bufio.NewScanner(in), out: out, interactive: interactive}
	for {
		if m.interactive {
			out.title("\n== BANK LEDGER ==")
			for _, item := range menuItems {
				fmt.Fprintln(out.out, item)
			}
		}
		choice, ok := m.ask("Choose an option: ")
		if !ok {
			return m.in.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		switch choice {
		case "1":
			err = m.createPerson(ctx)
		case "2":
			err = m.openAccount(ctx)
		case "3":
			err = m.showPerson(ctx)
		case "4":
			err = m.updatePerson(ctx)
		case "5":
			err = m.transaction(ctx)
		case "6":
			err = m.balance(ctx)
		case "7":
			err = m.movements(ctx)
		case "8":
			err = m.closeAccount(ctx)
		case "9":
			fmt.Fprintln(out.out, "bye")
			return nil
		default:
			fmt.Fprintln(out.out, "invalid option, try again")
			continue
		}
		if errors.Is(err, io.EOF) {
			return m.in.Err()
		}
		if err != nil {
			out.failure(err)
		}
	}
}

func (m *menu) ask(prompt string) (string, bool) {
	if m.interactive {
		fmt.Fprint(m.out.out, prompt)
	}
	if !m.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(m.in.Text()), true
}

// field 讀取一行，輸入結束時回傳 io.EOF
func (m *menu) field(prompt string) (string, error) {
	v, ok := m.ask(prompt)
	if !ok {
		return "", io.EOF
	}
	return v, nil
}

// optional 空白輸入代表不變更
func (m *menu) optional(prompt string) (*string, error) {
	v, err := m.field(prompt + " (leave empty to keep): ")
	if err != nil || v == "" {
		return nil, err
	}
	return &v, nil
}

func (m *menu) createPerson(ctx context.Context) error {
	var p domain.Person
	var birth string
	prompts := []struct {
		label string
		dst   *string
	}{
		{"Name: ", &p.Name},
		{"ID number: ", &p.IDNumber},
		{"Birth date (DD-MM-YYYY): ", &birth},
		{"Email: ", &p.Email},
		{"Phone: ", &p.Phone},
		{"Tax ID: ", &p.TaxID},
	}
	for _, f := range prompts {
		v, err := m.field(f.label)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	born, err := domain.ParseBirthDate(birth)
	if err != nil {
		return err
	}
	p.BirthDate = born
	created, err := m.ledger.CreatePerson(ctx, p)
	if err != nil {
		return err
	}
	m.out.success("person %s created", created.TaxID)
	return nil
}

func (m *menu) openAccount(ctx context.Context) error {
	taxID, err := m.field("Tax ID: ")
	if err != nil {
		return err
	}
	account, err := m.ledger.OpenAccount(ctx, taxID)
	if err != nil {
		return err
	}
	m.out.success("account %d opened for %s", account.ID, account.TaxID)
	return nil
}

func (m *menu) showPerson(ctx context.Context) error {
	taxID, err := m.field("Tax ID: ")
	if err != nil {
		return err
	}
	person, err := m.ledger.GetPerson(ctx, taxID)
	if err != nil {
		return err
	}
	m.out.person(person)
	return nil
}

func (m *menu) updatePerson(ctx context.Context) error {
	taxID, err := m.field("Tax ID: ")
	if err != nil {
		return err
	}
	var patch domain.PersonPatch
	if patch.Name, err = m.optional("New name"); err != nil {
		return err
	}
	if patch.IDNumber, err = m.optional("New ID number"); err != nil {
		return err
	}
	birth, err := m.optional("New birth date DD-MM-YYYY")
	if err != nil {
		return err
	}
	if birth != nil {
		born, err := domain.ParseBirthDate(*birth)
		if err != nil {
			return err
		}
		patch.BirthDate = &born
	}
	if patch.Email, err = m.optional("New email"); err != nil {
		return err
	}
	if patch.Phone, err = m.optional("New phone"); err != nil {
		return err
	}
	person, err := m.ledger.UpdatePerson(ctx, taxID, patch)
	if err != nil {
		return err
	}
	m.out.success("person %s updated", person.TaxID)
	return nil
}

func (m *menu) transaction(ctx context.Context) error {
	taxID, err := m.field("Tax ID: ")
	if err != nil {
		return err
	}
	rawAmount, err := m.field("Amount: ")
	if err != nil {
		return err
	}
	rawKind, err := m.field("Kind (deposit/withdraw): ")
	if err != nil {
		return err
	}
	kind, err := domain.ParseTransactionKind(rawKind)
	if err != nil {
		return err
	}
	amount, err := domain.ParseAmount(rawAmount)
	if err != nil {
		return err
	}
	balance, err := m.ledger.ApplyTransaction(ctx, domain.TransactionRequest{TaxID: taxID, Amount: amount, Kind: kind})
	if err != nil {
		return err
	}
	m.out.success("balance: %s", balance.String())
	return nil
}

func (m *menu) balance(ctx context.Context) error {
	taxID, err := m.field("Tax ID: ")
	if err != nil {
		return err
	}
	balance, err := m.ledger.GetBalance(ctx, taxID)
	if err != nil {
		return err
	}
	m.out.success("balance: %s", balance.String())
	return nil
}

func (m *menu) movements(ctx context.Context) error {
	taxID, err := m.field("Tax ID: ")
	if err != nil {
		return err
	}
	movements, err := m.ledger.ListMovements(ctx, taxID)
	if err != nil {
		return err
	}
	m.out.movements(movements)
	return nil
}

func (m *menu) closeAccount(ctx context.Context) error {
	taxID, err := m.field("Tax ID: ")
	if err != nil {
		return err
	}
	if err := m.ledger.CloseAccount(ctx, taxID); err != nil {
		return err
	}
	m.out.success("account %s closed", domain.NormalizeTaxID(taxID))
	return nil
}
