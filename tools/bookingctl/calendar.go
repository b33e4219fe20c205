package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/md-rashed-zaman/storefront/libs/bookingclient"
	"github.com/md-rashed-zaman/storefront/libs/slots"
	"github.com/spf13/cobra"
)

func newCalendarCmd(g *globals) *cobra.Command {
	var (
		productID string
		month     string
		date      string
		start     string
		notes     string
		book      bool
	)
	c := &cobra.Command{
		Use:   "calendar",
		Short: "Walk the booking calendar: show a month, pick a date and slot, optionally book it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := g.context(cmd.Context())
			defer cancel()
			out := cmd.OutOrStdout()

			backend := g.backend()
			session, err := g.session(ctx, backend, productID)
			if err != nil {
				return err
			}
			logger := g.logger()
			p := bookingclient.NewPresenter(session,
				bookingclient.NewResolver(backend, logger),
				bookingclient.NewCommitter(backend, logger),
				logger)

			if month != "" {
				target, err := time.ParseInLocation("2006-01", month, session.Location)
				if err != nil {
					return fmt.Errorf("invalid --month %q: expected YYYY-MM", month)
				}
				navigate(p, target)
			}

			if date != "" {
				d, err := slots.ParseDate(date, session.Location)
				if err != nil {
					return err
				}
				if err := p.SelectDate(ctx, d); err != nil {
					return fmt.Errorf("%s cannot be booked: in the past or not an offered weekday", date)
				}
			}
			printMonth(out, p)

			if start != "" {
				if err := p.SelectSlot(start); err != nil {
					return fmt.Errorf("slot %s cannot be selected: %w", start, err)
				}
				p.SetNotes(notes)
			}
			if book {
				if err := p.Confirm(); err != nil {
					return err
				}
				booking, err := p.Submit(ctx)
				if err != nil {
					return err
				}
				printBooking(cmd, booking)
			}
			printView(out, p.View())
			return nil
		},
	}
	c.Flags().StringVar(&productID, "product", "", "product id")
	c.Flags().StringVar(&month, "month", "", "month to show (YYYY-MM); defaults to the current month")
	c.Flags().StringVar(&date, "date", "", "date to select (YYYY-MM-DD)")
	c.Flags().StringVar(&start, "slot", "", "slot start to select (HH:MM)")
	c.Flags().StringVar(&notes, "notes", "", "notes for the creator")
	c.Flags().BoolVar(&book, "book", false, "confirm and submit the selected slot")
	_ = c.MarkFlagRequired("product")
	return c
}

func navigate(p *bookingclient.Presenter, target time.Time) {
	shown := p.View().Month
	diff := (target.Year()-shown.Year())*12 + int(target.Month()-shown.Month())
	for ; diff > 0; diff-- {
		p.NextMonth()
	}
	for ; diff < 0; diff++ {
		p.PrevMonth()
	}
}

// printMonth renders the shown month. Bookable days are plain, the selected day is bracketed
// and every other day is dimmed with dots.
func printMonth(w io.Writer, p *bookingclient.Presenter) {
	days := p.CalendarDays()
	if len(days) == 0 {
		return
	}
	fmt.Fprintf(w, "%s\n", days[0].Date.Format("January 2006"))
	fmt.Fprintln(w, " Mo   Tu   We   Th   Fr   Sa   Su")

	var line strings.Builder
	offset := (int(days[0].Date.Weekday()) + 6) % 7
	line.WriteString(strings.Repeat("     ", offset))
	for _, d := range days {
		cell := fmt.Sprintf(" %2d  ", d.Date.Day())
		switch {
		case d.Selected:
			cell = fmt.Sprintf("[%2d] ", d.Date.Day())
		case !d.Selectable:
			cell = " ..  "
		}
		line.WriteString(cell)
		if d.Date.Weekday() == time.Sunday {
			fmt.Fprintln(w, strings.TrimRight(line.String(), " "))
			line.Reset()
		}
	}
	if line.Len() > 0 {
		fmt.Fprintln(w, strings.TrimRight(line.String(), " "))
	}
}

func printView(w io.Writer, v bookingclient.View) {
	fmt.Fprintf(w, "state: %s\n", v.State)
	if v.Date == "" {
		return
	}
	fmt.Fprintf(w, "date: %s\n", v.Date)
	if v.Slot != "" {
		fmt.Fprintf(w, "slot: %s\n", v.Slot)
	}
	if v.Error != nil {
		fmt.Fprintf(w, "error: %s\n", v.Error.Message)
	}
	printResolution(w, bookingclient.Resolution{Date: v.Date, Slots: v.Slots, Warning: v.Warning})
}
