package tokenctl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
)

// runREPL reads command lines until EOF or exit. Command errors are
// printed and the loop continues.
func (a *App) runREPL(ctx context.Context) {
	fmt.Fprintln(a.out, "tokenctl (type 'help' for commands)")
	scanner := bufio.NewScanner(a.in)

	for {
		fmt.Fprint(a.out, "tokenctl> ")
		if !scanner.Scan() {
			fmt.Fprintln(a.out)
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "exit", "quit":
			fmt.Fprintln(a.out, "Bye!")
			return
		}

		if err := a.Exec(ctx, parts); err != nil && !errors.Is(err, ErrDenied) {
			fmt.Fprintln(a.out, "error:", err)
		}
	}
}
