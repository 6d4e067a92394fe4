package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/turtacn/apswitch/pkg/consts"
)

type menuItem struct {
	key   string
	label string
	op    consts.Operation
}

var menuItems = []menuItem{
	{"1", "Prepare dhcp client (slow)", consts.OpPrepare},
	{"2", "Activate access point", consts.OpActivate},
	{"3", "Prepare and activate", consts.OpPrepareAndActivate},
	{"4", "Deactivate and restore client mode", consts.OpDeactivate},
	{"5", "Check daemon status", consts.OpCheck},
	{"6", "Check dependencies", consts.OpCheckDeps},
	{"7", "Install missing dependencies", consts.OpInstallDeps},
}

func printMenu(out io.Writer) {
	fmt.Fprintln(out)
	for _, it := range menuItems {
		fmt.Fprintf(out, "  %s) %s\n", it.key, it.label)
	}
	fmt.Fprintln(out, "  q) Quit")
	fmt.Fprint(out, "> ")
}

func lookupChoice(choice string) (consts.Operation, bool) {
	for _, it := range menuItems {
		if it.key == choice || string(it.op) == choice {
			return it.op, true
		}
	}
	return "", false
}

// runMenu reads choices until quit or EOF and hands each one to dispatch.
// A failed operation is printed and the menu carries on; the error of the
// last operation is returned so the exit code reflects it.
func runMenu(ctx context.Context, o *options, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	var last error
	for {
		printMenu(out)
		if !sc.Scan() {
			fmt.Fprintln(out)
			if err := sc.Err(); err != nil {
				return err
			}
			return last
		}
		choice := strings.TrimSpace(strings.ToLower(sc.Text()))
		switch choice {
		case "":
			continue
		case "q", "quit", "exit", "0":
			return last
		}

		op, ok := lookupChoice(choice)
		if !ok {
			fmt.Fprintf(out, "unknown choice %q\n", choice)
			continue
		}
		last = dispatch(ctx, o, op, out)
		if last != nil {
			fmt.Fprintf(out, "Error: %v\n", last)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Personal.AI order the ending
