package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/md-rashed-zaman/storefront/libs/bookingclient"
	"github.com/md-rashed-zaman/storefront/libs/config"
	"github.com/spf13/cobra"
)

type globals struct {
	baseURL string
	token   string
	timeout time.Duration
	verbose bool
}

func newRootCmd() *cobra.Command {
	_ = config.LoadDotEnv()
	g := &globals{}

	root := &cobra.Command{
		Use:           "bookingctl",
		Short:         "Browse availability and book slots against a booking-service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.baseURL, "base-url", config.String("BOOKING_BASE_URL", "http://localhost:8083"), "booking-service base url")
	root.PersistentFlags().StringVar(&g.token, "token", config.String("BOOKING_TOKEN", ""), "customer bearer token")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", config.Duration("BOOKING_TIMEOUT", 15*time.Second, time.Second), "overall request budget")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log fallback and retry details to stderr")

	root.AddCommand(newSlotsCmd(g))
	root.AddCommand(newBookCmd(g))
	root.AddCommand(newCalendarCmd(g))
	root.AddCommand(newHealthCmd(g))
	root.AddCommand(newWebhookSimCmd(g))
	return root
}

func (g *globals) logger() *slog.Logger {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (g *globals) backend() *bookingclient.HTTPBackend {
	return bookingclient.NewHTTPBackend(g.baseURL, nil)
}

func (g *globals) context(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, g.timeout)
}

// session loads the product so every command works from its pattern and store timezone.
func (g *globals) session(ctx context.Context, backend bookingclient.Backend, productID string) (*bookingclient.BookingSession, error) {
	p, err := backend.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return bookingclient.SessionForProduct(p, g.token), nil
}
