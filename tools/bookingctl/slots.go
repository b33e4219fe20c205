package main

import (
	"fmt"
	"io"

	"github.com/md-rashed-zaman/storefront/libs/bookingclient"
	"github.com/spf13/cobra"
)

func newSlotsCmd(g *globals) *cobra.Command {
	var (
		productID string
		date      string
		failOpen  bool
	)
	c := &cobra.Command{
		Use:   "slots",
		Short: "Show the slots of a product on a date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := g.context(cmd.Context())
			defer cancel()

			backend := g.backend()
			session, err := g.session(ctx, backend, productID)
			if err != nil {
				return err
			}
			resolver := bookingclient.NewResolver(backend, g.logger())
			resolver.FailOpen = failOpen
			res := resolver.Resolve(ctx, session, date)
			printResolution(cmd.OutOrStdout(), res)
			return nil
		},
	}
	c.Flags().StringVar(&productID, "product", "", "product id")
	c.Flags().StringVar(&date, "date", "", "date (YYYY-MM-DD, store timezone)")
	c.Flags().BoolVar(&failOpen, "fail-open", true, "show slots as available when availability cannot be loaded")
	_ = c.MarkFlagRequired("product")
	_ = c.MarkFlagRequired("date")
	return c
}

func printResolution(w io.Writer, res bookingclient.Resolution) {
	if res.Warning != "" {
		fmt.Fprintf(w, "! %s\n", res.Warning)
	}
	if len(res.Slots) == 0 {
		fmt.Fprintf(w, "no slots on %s\n", res.Date)
		return
	}
	for _, s := range res.Slots {
		state := "available"
		if !s.Available {
			state = "taken"
		}
		fmt.Fprintf(w, "%s-%s  %s\n", s.Start, s.End, state)
	}
}
