package main

import (
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/storefront/libs/bookingclient"
	"github.com/spf13/cobra"
)

func newBookCmd(g *globals) *cobra.Command {
	var (
		productID string
		date      string
		start     string
		notes     string
		key       string
	)
	c := &cobra.Command{
		Use:   "book",
		Short: "Reserve a slot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := g.context(cmd.Context())
			defer cancel()

			backend := g.backend()
			session, err := g.session(ctx, backend, productID)
			if err != nil {
				return err
			}
			committer := bookingclient.NewCommitter(backend, g.logger())
			booking, err := committer.Commit(ctx, session, bookingclient.Commit{
				Date:           date,
				StartTime:      start,
				Notes:          notes,
				IdempotencyKey: key,
			})
			if err != nil {
				var ce *bookingclient.CommitError
				if errors.As(err, &ce) {
					hint := ""
					if ce.Retryable() {
						hint = " (retryable)"
					}
					return fmt.Errorf("%s: %s%s", ce.Kind, ce.Message, hint)
				}
				return err
			}
			printBooking(cmd, booking)
			return nil
		},
	}
	c.Flags().StringVar(&productID, "product", "", "product id")
	c.Flags().StringVar(&date, "date", "", "date (YYYY-MM-DD, store timezone)")
	c.Flags().StringVar(&start, "start", "", "slot start time (HH:MM)")
	c.Flags().StringVar(&notes, "notes", "", "notes for the creator")
	c.Flags().StringVar(&key, "idempotency-key", "", "reuse to retry a booking safely; generated when empty")
	_ = c.MarkFlagRequired("product")
	return c
}

func printBooking(cmd *cobra.Command, b bookingclient.Booking) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "reservation %s %s\n", b.ReservationID, b.Status)
	if b.Replayed {
		fmt.Fprintln(out, "(replayed an earlier request)")
	}
	if b.CheckoutURL != "" {
		fmt.Fprintf(out, "complete payment at %s\n", b.CheckoutURL)
	}
}
