package main

import (
	"fmt"

	"github.com/md-rashed-zaman/storefront/libs/config"
	"github.com/md-rashed-zaman/storefront/libs/grpcx"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func newHealthCmd(g *globals) *cobra.Command {
	var (
		addr    string
		service string
	)
	c := &cobra.Command{
		Use:   "health",
		Short: "Query the booking-service gRPC health endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := g.context(cmd.Context())
			defer cancel()

			conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: g.timeout})
			if err != nil {
				return fmt.Errorf("dial %s: %w", addr, err)
			}
			defer conn.Close()

			resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.GetStatus().String())
			if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("%s is %s", addr, resp.GetStatus())
			}
			return nil
		},
	}
	c.Flags().StringVar(&addr, "addr", config.String("BOOKING_GRPC_ADDR", "localhost:9093"), "gRPC address")
	c.Flags().StringVar(&service, "service", "storefront.booking.v1.Booking", "health service name; empty for the whole server")
	return c
}
