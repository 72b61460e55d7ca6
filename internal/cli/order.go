package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/Additional-Code/fulfillment/internal/adapter/shopify"
	"github.com/Additional-Code/fulfillment/internal/app"
	"github.com/Additional-Code/fulfillment/internal/config"
	"github.com/Additional-Code/fulfillment/internal/entity"
	"github.com/Additional-Code/fulfillment/internal/fulfillment/api"
	"github.com/Additional-Code/fulfillment/internal/fulfillment/token"
	servicefulfillment "github.com/Additional-Code/fulfillment/internal/service/fulfillment"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Fetch an access token with the configured credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			show, _ := cmd.Flags().GetBool("show")
			var tokens *token.Cache
			opts := fx.Options(app.Provider, fx.Populate(&tokens))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				bearer, err := tokens.Token(ctx)
				if err != nil {
					return err
				}
				if show {
					fmt.Fprintln(cmd.OutOrStdout(), bearer)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "token acquired (%d characters)\n", len(bearer))
				return nil
			})
		},
	}
	cmd.Flags().Bool("show", false, "Print the token itself")
	return cmd
}

func newURLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "urls",
		Short: "Print the resolved endpoint set",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# environment: %s\n", cfg.Fulfillment.Environment)
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg.Fulfillment.URLs)
		},
	}
}

func newOrderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Submit and inspect orders",
	}

	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a Shopify order payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			body, err := readPayload(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}

			var (
				svc *servicefulfillment.Service
				cfg config.Config
			)
			opts := fx.Options(app.Core, fx.Populate(&svc, &cfg))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				order, err := shopify.Parse(body, shopifyOptions(cfg))
				if err != nil {
					return err
				}
				submission, err := svc.SubmitOrder(ctx, order)
				if submission != nil {
					if encErr := writeJSON(cmd.OutOrStdout(), submission); encErr != nil {
						return encErr
					}
				}
				return err
			})
		},
	}
	submitCmd.Flags().StringP("file", "f", "-", "Path to the order JSON, - for stdin")

	ackCmd := &cobra.Command{
		Use:   "ack [order-number]",
		Short: "Fetch the acknowledgement for a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			submissionID, _ := cmd.Flags().GetString("submission-id")
			var svc *servicefulfillment.Service
			opts := fx.Options(app.Core, fx.Populate(&svc))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				submission, err := svc.Acknowledge(ctx, args[0], submissionID)
				if submission != nil {
					if encErr := writeJSON(cmd.OutOrStdout(), submission); encErr != nil {
						return encErr
					}
				}
				return err
			})
		},
	}
	ackCmd.Flags().String("submission-id", "", "Submission to acknowledge; defaults to the latest")

	statusCmd := &cobra.Command{
		Use:   "status [order-number]",
		Short: "Query the provider for order status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return queryProvider(cmd, func(ctx context.Context, ops *api.Operations) (json.RawMessage, error) {
				return ops.OrderStatus(ctx, args[0])
			})
		},
	}

	shipmentCmd := &cobra.Command{
		Use:   "shipment [order-number]",
		Short: "Query the provider for shipment details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return queryProvider(cmd, func(ctx context.Context, ops *api.Operations) (json.RawMessage, error) {
				return ops.ShipmentDetails(ctx, args[0])
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded submissions by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")
			var svc *servicefulfillment.Service
			opts := fx.Options(app.Core, fx.Populate(&svc))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				submissions, err := svc.List(ctx, status, limit)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), submissions)
			})
		},
	}
	listCmd.Flags().String("status", entity.StatusSubmitted, "Submission status to list")
	listCmd.Flags().Int("limit", 50, "Maximum number of submissions, 0 for all")

	cmd.AddCommand(submitCmd, ackCmd, statusCmd, shipmentCmd, listCmd)
	return cmd
}

func queryProvider(cmd *cobra.Command, query func(context.Context, *api.Operations) (json.RawMessage, error)) error {
	var ops *api.Operations
	opts := fx.Options(app.Provider, fx.Populate(&ops))
	return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
		body, err := query(ctx, ops)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), body)
	})
}

func shopifyOptions(cfg config.Config) shopify.Options {
	return shopify.Options{
		DefaultCurrency:   cfg.Shopify.DefaultCurrency,
		DefaultFirstName:  cfg.Shopify.DefaultFirstName,
		OrganizationID:    cfg.Fulfillment.OrgID,
		ShippingServiceID: cfg.Fulfillment.ShippingServiceID,
	}
}

func readPayload(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
