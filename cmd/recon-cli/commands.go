package main

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/BearBump/ShipRecon/internal/integrations/shopify"
	"github.com/BearBump/ShipRecon/internal/normalizer"
)

func (c *cli) pollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run the delivery status sweep now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withServices(func(s *services) error {
				res, err := s.poller.PollOnce(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func (c *cli) matchInvoiceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match-invoice [invoice-number]",
		Short: "Link unmatched invoice rows to shipments (all invoices when no number is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invoiceNumber := ""
			if len(args) == 1 {
				invoiceNumber = args[0]
			}
			return c.withServices(func(s *services) error {
				res, err := s.invoices.Match(cmd.Context(), invoiceNumber)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func (c *cli) unmatchedCmd() *cobra.Command {
	var invoiceNumber string
	cmd := &cobra.Command{
		Use:   "unmatched",
		Short: "List invoice rows with no matching shipment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withServices(func(s *services) error {
				items, err := s.invoices.Unmatched(cmd.Context(), invoiceNumber)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, it := range items {
					fmt.Fprintf(out, "%-24s %-16s %s\n", it.TrackingNumber, it.InvoiceNumber, billed(it.FinalBilledTotal))
				}
				fmt.Fprintf(out, "%d unmatched\n", len(items))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&invoiceNumber, "invoice", "i", "", "Only rows of this invoice")
	return cmd
}

func (c *cli) trackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "track <tracking-number>",
		Short: "Look up one tracking number with the carrier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			tracker := c.env.newTracker(cfg)
			if tracker == nil {
				return errors.New("ups credentials are not configured")
			}
			res, err := tracker.GetTracking(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func (c *cli) ordersCmd() *cobra.Command {
	var (
		since  time.Duration
		status string
	)
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List recent sales-channel orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			p := shopify.ListParams{Status: status, Limit: 250}
			if since > 0 {
				from := time.Now().Add(-since).UTC()
				p.CreatedAtMin = &from
			}
			out := cmd.OutOrStdout()
			total := 0
			err = c.env.newShopify(cfg).ListOrders(cmd.Context(), p, func(page []shopify.Order) error {
				for _, o := range page {
					fmt.Fprintf(out, "%-14d %-10s %s\n", o.ID, o.Name, o.TotalPrice)
				}
				total += len(page)
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d orders\n", total)
			return nil
		},
	}
	cmd.Flags().DurationVar(&since, "since", 7*24*time.Hour, "Only orders created within this window")
	cmd.Flags().StringVar(&status, "status", "any", "Order status filter")
	return cmd
}

func (c *cli) replayCmd() *cobra.Command {
	var resourceType, resourceURL string
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Reconcile a webhook notification synchronously",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n := normalizer.Notification{ResourceType: resourceType, ResourceURL: resourceURL}
			if !n.Supported() {
				return fmt.Errorf("unsupported resource type %q", resourceType)
			}
			return c.withServices(func(s *services) error {
				res, err := s.engine.ProcessNotification(cmd.Context(), n)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&resourceType, "type", normalizer.TagShipNotify, "Webhook resource type")
	cmd.Flags().StringVar(&resourceURL, "url", "", "Webhook resource URL")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func billed(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.StringFixed(2)
}
