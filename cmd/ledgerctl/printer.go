package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// printer 統一終端機輸出格式
type printer struct {
	out  io.Writer
	ok   *color.Color
	fail *color.Color
	head *color.Color
}

func newPrinter(out io.Writer) *printer {
	return &printer{
		out:  out,
		ok:   color.New(color.FgGreen),
		fail: color.New(color.FgRed, color.Bold),
		head: color.New(color.FgCyan, color.Bold),
	}
}

func (p *printer) success(format string, args ...any) {
	p.ok.Fprintf(p.out, format+"\n", args...)
}

// failure 錯誤訊息附上分類，方便腳本判斷
func (p *printer) failure(err error) {
	p.fail.Fprintf(p.out, "error [%s]: %v\n", domain.KindOf(err), err)
}

func (p *printer) title(s string) {
	p.head.Fprintln(p.out, s)
}

func (p *printer) person(person *domain.Person) {
	fmt.Fprintf(p.out, "Tax ID:     %s\n", person.TaxID)
	fmt.Fprintf(p.out, "Name:       %s\n", person.Name)
	fmt.Fprintf(p.out, "ID number:  %s\n", person.IDNumber)
	fmt.Fprintf(p.out, "Birth date: %s\n", person.BirthDate.Format(domain.BirthDateLayout))
	fmt.Fprintf(p.out, "Email:      %s\n", person.Email)
	fmt.Fprintf(p.out, "Phone:      %s\n", person.Phone)
}

func (p *printer) movements(movements []domain.Movement) {
	if len(movements) == 0 {
		fmt.Fprintln(p.out, "no movements")
		return
	}
	for _, mv := range movements {
		fmt.Fprintf(p.out, "%-10s %14s  balance %14s  %s\n",
			mv.Kind, mv.Amount.String(), mv.BalanceAfter.String(),
			mv.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
}
