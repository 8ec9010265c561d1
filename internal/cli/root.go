package cli

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"appointment-scheduler/internal/booking"
	"appointment-scheduler/internal/config"
	"appointment-scheduler/internal/store"
)

// Context is handed to every command's Run. The store is opened on first
// use so commands like hash-password never touch the database.
type Context struct {
	Ctx      context.Context
	Database string
	Config   *config.Config
	Out      io.Writer
	Log      *zap.Logger
	// Now overrides the validator clock; nil means time.Now.
	Now func() time.Time

	st store.Store
}

func (c *Context) Store() (store.Store, error) {
	if c.st != nil {
		return c.st, nil
	}
	st, err := store.Open(c.Ctx, c.Database, c.Log)
	if err != nil {
		return nil, err
	}
	c.st = st
	return st, nil
}

func (c *Context) Policy() booking.Policy {
	p := booking.DefaultPolicy(c.Config.Booking.Location)
	p.OpenHour, p.CloseHour = c.Config.Booking.OpenHour, c.Config.Booking.CloseHour
	return p
}

func (c *Context) options() []booking.Option {
	opts := []booking.Option{booking.WithLogger(c.Log)}
	if c.Now != nil {
		opts = append(opts, booking.WithClock(c.Now))
	}
	return opts
}

func (c *Context) Close() error {
	if c.st == nil {
		return nil
	}
	return c.st.Close()
}
