package tokenctl

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// readToken prompts on w and reads a token from the terminal without echo.
// The returned slice should be wiped by the caller.
func readToken(w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(w, "Enter token: "); err != nil {
		return nil, err
	}
	tok, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return tok, nil
}
