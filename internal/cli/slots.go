package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"appointment-scheduler/internal/booking"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type ListCmd struct{}

func (c *ListCmd) Run(ctx *Context) error {
	st, err := ctx.Store()
	if err != nil {
		return err
	}
	all, err := st.List(ctx.Ctx)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Fprintln(ctx.Out, dimStyle.Render("No appointments booked."))
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TIME", "SLOT", "DETAILS").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, a := range all {
		slot := "?"
		if tm, err := booking.ParseTime(a.AppointmentTime, ctx.Config.Booking.Location); err == nil {
			slot = booking.SlotOf(tm).Key()
		}
		t.Row(strconv.FormatInt(a.ID, 10), a.AppointmentTime, slot, a.Details)
	}
	fmt.Fprintln(ctx.Out, t.Render())
	return nil
}

type BookCmd struct {
	At      string `short:"a" help:"Appointment time, e.g. 2025-03-17T14:00." required:""`
	Details string `short:"d" help:"What the appointment is for." required:""`
}

func (c *BookCmd) Run(ctx *Context) error {
	st, err := ctx.Store()
	if err != nil {
		return err
	}
	v := booking.NewValidator(st, ctx.Policy(), ctx.options()...)
	a, err := v.Book(ctx.Ctx, c.At, c.Details)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Booked #%d at %s\n", a.ID, a.AppointmentTime)
	return nil
}

type ClearCmd struct{}

func (c *ClearCmd) Run(ctx *Context) error {
	st, err := ctx.Store()
	if err != nil {
		return err
	}
	n, err := st.DeleteAll(ctx.Ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Removed %d appointment(s)\n", n)
	return nil
}
