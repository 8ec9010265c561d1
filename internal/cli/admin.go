package cli

import (
	"errors"
	"fmt"
	"time"

	"appointment-scheduler/internal/auth"
)

type HashPasswordCmd struct {
	Password string `arg:"" help:"Admin password to hash."`
}

func (c *HashPasswordCmd) Validate() error {
	if len(c.Password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}

func (c *HashPasswordCmd) Run(ctx *Context) error {
	hash, err := auth.HashPassword(c.Password)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.Out, hash)
	return nil
}

type TokenCmd struct {
	TTL time.Duration `help:"Token lifetime; defaults to ADMIN_TOKEN_TTL."`
}

func (c *TokenCmd) Run(ctx *Context) error {
	admin := ctx.Config.Admin
	if !admin.Enabled() {
		return errors.New("ADMIN_SECRET is not set")
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = admin.TokenTTL
	}
	tok, err := auth.MakeAdminToken(admin.Secret, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.Out, tok)
	return nil
}
