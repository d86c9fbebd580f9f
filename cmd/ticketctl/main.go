package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/laggis/Discord-Ticket-bot/internal/auth"
	"github.com/laggis/Discord-Ticket-bot/internal/config"
	"github.com/laggis/Discord-Ticket-bot/internal/domain"
)

const usage = `ticketctl mints operator tokens for the ticket bot admin API.

Usage:
  ticketctl token --subject <user id> [--name <display name>] [--roles a,b] [--ban] [--ttl 60]
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "ticketctl:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] != "token" {
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command")
	}

	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	subject := fs.String("subject", "", "chat-platform user id the operator acts as")
	name := fs.String("name", "", "display name recorded in audit entries")
	roles := fs.StringSlice("roles", nil, "role ids granted to the operator")
	canBan := fs.Bool("ban", false, "grant the moderation capability")
	ttl := fs.Int("ttl", 0, "token lifetime in minutes (defaults to AUTH_ACCESS_TOKEN_TTL_MINUTES)")
	secret := fs.String("secret", "", "signing secret (defaults to AUTH_JWT_SECRET)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	if strings.TrimSpace(*subject) == "" {
		return fmt.Errorf("--subject is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *secret == "" {
		*secret = cfg.Auth.JWTSecret
	}
	if *ttl <= 0 {
		*ttl = cfg.Auth.AccessTokenTTLMinutes
	}

	tm := auth.NewTokenManager(*secret, *ttl)
	token, expiresAt, err := tm.GenerateToken(domain.Actor{
		Identity: domain.Identity{ID: strings.TrimSpace(*subject), DisplayName: *name},
		RoleIDs:  *roles,
		CanBan:   *canBan,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	fmt.Fprintf(stderr, "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
	return nil
}
