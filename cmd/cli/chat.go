package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/moliya/internal/domain"
	"github.com/dvloznov/moliya/internal/pipeline"
)

// session is the pipeline surface the chat loop drives.
type session interface {
	State() pipeline.State
	Pending() (domain.PendingAction, bool)
	Submit(ctx context.Context, text string) (domain.AIResponse, error)
	Clarify(field domain.ClarificationField, value string) (domain.PendingAction, error)
	Confirm(ctx context.Context) (pipeline.Committed, error)
	Cancel() bool
}

func runChat(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	fs.Parse(args)

	if err := e.app.Start(ctx); err != nil {
		return err
	}

	people := func() []string {
		var names []string
		for _, p := range e.app.Store.People() {
			names = append(names, p.Name)
		}
		return names
	}
	repl := &chatLoop{
		session: e.app.Pipeline,
		people:  people,
		advice:  func() string { return e.app.Advice.Current().Text },
		in:      bufio.NewScanner(e.in),
		out:     e.out,
	}
	return repl.run(ctx)
}

// chatLoop reads one utterance per line and walks each proposed action
// through clarification and a y/n confirmation.
type chatLoop struct {
	session session
	people  func() []string
	advice  func() string
	in      *bufio.Scanner
	out     io.Writer
}

var errQuit = errors.New("quit")

func (c *chatLoop) run(ctx context.Context) error {
	fmt.Fprintln(c.out, "Moliya yordamchisi. Chiqish uchun: /chiqish, maslahat uchun: /maslahat")
	for {
		line, err := c.prompt("> ")
		if err != nil {
			return c.finish(err)
		}
		switch strings.ToLower(line) {
		case "":
			continue
		case "/chiqish", "/exit", "/quit":
			return nil
		case "/maslahat", "/advice":
			fmt.Fprintln(c.out, c.advice())
			continue
		}

		resp, err := c.session.Submit(ctx, line)
		if err != nil {
			fmt.Fprintf(c.out, "Xatolik: %v\n", err)
			continue
		}
		fmt.Fprintln(c.out, resp.Message)

		if err := c.settle(ctx); err != nil {
			return c.finish(err)
		}
	}
}

// finish turns end of input into a clean exit, dropping any pending action.
func (c *chatLoop) finish(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, errQuit) {
		c.session.Cancel()
		return nil
	}
	return err
}

// settle drives the pending action, if any, back to idle.
func (c *chatLoop) settle(ctx context.Context) error {
	for {
		switch c.session.State() {
		case pipeline.StateIdle:
			return nil
		case pipeline.StateAwaitingClarification:
			if err := c.clarify(); err != nil {
				return err
			}
		case pipeline.StateAwaitingConfirmation:
			if err := c.confirm(ctx); err != nil {
				return err
			}
		}
	}
}

func (c *chatLoop) clarify() error {
	action, _ := c.session.Pending()

	var question string
	switch action.NeedsClarification {
	case domain.ClarifyPaymentMethod:
		question = "To'lov usuli? [1] Karta [2] Naqd: "
	case domain.ClarifyPersonName:
		question = "Kim bilan? "
		if names := c.people(); len(names) > 0 {
			question = fmt.Sprintf("Kim bilan? (%s): ", strings.Join(names, ", "))
		}
	default:
		c.session.Cancel()
		return nil
	}

	answer, err := c.prompt(question)
	if err != nil {
		return err
	}
	if isCancel(answer) {
		c.session.Cancel()
		fmt.Fprintln(c.out, "Bekor qilindi.")
		return nil
	}
	if action.NeedsClarification == domain.ClarifyPaymentMethod {
		switch answer {
		case "1":
			answer = string(domain.PaymentCard)
		case "2":
			answer = string(domain.PaymentCash)
		}
	}

	if _, err := c.session.Clarify(action.NeedsClarification, answer); err != nil {
		fmt.Fprintf(c.out, "Xatolik: %v\n", err)
	}
	return nil
}

func (c *chatLoop) confirm(ctx context.Context) error {
	action, _ := c.session.Pending()
	fmt.Fprintln(c.out, describePending(action))

	answer, err := c.prompt("Tasdiqlaysizmi? [ha/yo'q]: ")
	if err != nil {
		return err
	}

	switch {
	case isYes(answer):
		committed, err := c.session.Confirm(ctx)
		if err != nil {
			fmt.Fprintf(c.out, "Saqlanmadi: %v\n", err)
			if again, err := c.prompt("Qayta urinasizmi? [ha/yo'q]: "); err != nil {
				return err
			} else if !isYes(again) {
				c.session.Cancel()
			}
			return nil
		}
		fmt.Fprintf(c.out, "Saqlandi: %s %s\n", committed.Transaction.Kind, formatAmount(committed.Transaction.Amount))
		if committed.CreatedPerson != nil {
			fmt.Fprintf(c.out, "Yangi shaxs qo'shildi: %s\n", committed.CreatedPerson.Name)
		}
	case isNo(answer), isCancel(answer):
		c.session.Cancel()
		fmt.Fprintln(c.out, "Bekor qilindi.")
	}
	return nil
}

func (c *chatLoop) prompt(question string) (string, error) {
	fmt.Fprint(c.out, question)
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	line := strings.TrimSpace(c.in.Text())
	if strings.EqualFold(line, "/chiqish") || strings.EqualFold(line, "/quit") {
		return "", errQuit
	}
	return line, nil
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "h", "ha", "yes", "ok":
		return true
	}
	return false
}

func isNo(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yo'q", "yoq", "n", "no":
		return true
	}
	return false
}

func isCancel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "/bekor", "/cancel", "bekor":
		return true
	}
	return false
}
