package tokenctl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

// ErrDenied is returned by the auth command when the token is rejected.
var ErrDenied = errors.New("token rejected")

// errUsage marks a malformed command line.
var errUsage = errors.New("usage")

const usage = `Commands:
  store <uid> [token|-] [ttl] [origin]  store a token for uid; "-" or no token generates one
  auth <uid> [token]                    check a token; prompts without echo when omitted
  invalidate <uid>                      remove the token of uid
  clear                                 remove every token
  length                                number of stored records, expired ones included
  help                                  show this help
  exit | quit                           leave the interactive loop`

// Exec runs a single command line.
func (a *App) Exec(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]

	var err error
	switch cmd {
	case "store":
		err = a.storeToken(ctx, rest)
	case "auth":
		err = a.authenticate(ctx, rest)
	case "invalidate":
		err = a.invalidate(ctx, rest)
	case "clear":
		err = a.clear(ctx, rest)
	case "length":
		err = a.length(ctx, rest)
	case "help":
		fmt.Fprintln(a.out, usage)
	default:
		err = fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	if errors.Is(err, errUsage) {
		fmt.Fprintln(a.out, usage)
	}
	return err
}

func (a *App) storeToken(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 4 {
		return fmt.Errorf("%w: store <uid> [token|-] [ttl] [origin]", errUsage)
	}
	uid := args[0]

	token := ""
	if len(args) > 1 && args[1] != "-" {
		token = args[1]
	}
	generated := token == ""
	if generated {
		var err error
		if token, err = common.MakeRandHexString(generatedTokenBytes); err != nil {
			return fmt.Errorf("generating token: %w", err)
		}
	}

	ttl := a.config.TokenTTL
	if len(args) > 2 {
		d, err := time.ParseDuration(args[2])
		if err != nil {
			return fmt.Errorf("%w: ttl: %v", errUsage, err)
		}
		ttl = d
	}

	origin := ""
	if len(args) > 3 {
		origin = args[3]
	}

	if err := a.store.StoreOrUpdate(ctx, token, uid, ttl, origin); err != nil {
		a.log.Error(ctx, "store failed", "uid", uid, "err", err)
		return err
	}

	a.log.Info(ctx, "token stored", "uid", uid, "ttl", ttl.String(), "generated", generated)
	if generated {
		fmt.Fprintln(a.out, token)
	} else {
		fmt.Fprintln(a.out, "stored")
	}
	return nil
}

func (a *App) authenticate(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: auth <uid> [token]", errUsage)
	}
	uid := args[0]

	var token string
	if len(args) == 2 {
		token = args[1]
	} else {
		raw, err := readToken(a.out)
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		token = strings.TrimSpace(string(raw))
		common.WipeByteArray(raw)
	}

	ok, origin, err := a.store.Authenticate(ctx, token, uid)
	if err != nil {
		a.log.Error(ctx, "authentication failed", "uid", uid, "err", err)
		return err
	}
	if !ok {
		a.log.Warn(ctx, "token rejected", "uid", uid)
		fmt.Fprintln(a.out, "denied")
		return ErrDenied
	}

	a.log.Info(ctx, "token accepted", "uid", uid)
	if origin != "" {
		fmt.Fprintln(a.out, "ok", origin)
	} else {
		fmt.Fprintln(a.out, "ok")
	}
	return nil
}

func (a *App) invalidate(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: invalidate <uid>", errUsage)
	}
	uid := args[0]

	if err := a.store.InvalidateUser(ctx, uid); err != nil {
		a.log.Error(ctx, "invalidate failed", "uid", uid, "err", err)
		return err
	}
	a.log.Info(ctx, "user invalidated", "uid", uid)
	fmt.Fprintln(a.out, "invalidated")
	return nil
}

func (a *App) clear(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: clear", errUsage)
	}
	if err := a.store.Clear(ctx); err != nil {
		a.log.Error(ctx, "clear failed", "err", err)
		return err
	}
	a.log.Info(ctx, "store cleared")
	fmt.Fprintln(a.out, "cleared")
	return nil
}

func (a *App) length(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: length", errUsage)
	}
	n, err := a.store.Length(ctx)
	if err != nil {
		a.log.Error(ctx, "length failed", "err", err)
		return err
	}
	a.log.Debug(ctx, "length", "records", n)
	fmt.Fprintln(a.out, n)
	return nil
}
