package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gartstein/staffing/internal/crm/events"
	"github.com/gartstein/staffing/internal/crm/handlers"
	"github.com/gartstein/staffing/internal/crm/pipeline"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	serverAddr string
	token      string
	notes      string
)

func dial() (*handlers.CRMServiceClient, func(), error) {
	addr := serverAddr
	if addr == "" {
		addr = fmt.Sprintf("localhost:%d", cfg.GRPCPort)
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, err
	}
	return handlers.NewCRMServiceClient(conn), func() { conn.Close() }, nil
}

func call(ctx context.Context, fn func(context.Context, *structpb.Struct, ...grpc.CallOption) (*structpb.Struct, error), fields map[string]any, out any) error {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	}
	resp, err := fn(ctx, in)
	if err != nil {
		return err
	}
	raw, err := protojson.Marshal(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <flow-id>",
		Short: "Show the status history of a process flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeFn, err := dial()
			if err != nil {
				return err
			}
			defer closeFn()

			var resp struct {
				History []pipeline.HistoryEntry `json:"history"`
			}
			if err := call(cmd.Context(), client.GetProcessFlowHistory, map[string]any{"id": args[0]}, &resp); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), resp.History)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderHistory(resp.History))
			return nil
		},
	}
	cmd.Flags().StringVar(&serverAddr, "server", "", "gRPC address of the CRM server (default localhost:<GRPC_PORT>)")
	return cmd
}

func newMoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move <flow-id> <status>",
		Short: "Move a process flow to another pipeline status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := pipeline.Parse(args[1])
			if err != nil {
				return err
			}
			client, closeFn, err := dial()
			if err != nil {
				return err
			}
			defer closeFn()

			var flow struct {
				ID     string          `json:"id"`
				Status pipeline.Status `json:"status"`
			}
			fields := map[string]any{"id": args[0], "status": string(status), "notes": notes}
			if err := call(cmd.Context(), client.UpdateProcessFlowStatus, fields, &flow); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), flow)
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(
				fmt.Sprintf("%s is now %s", flow.ID, pipeline.Info(flow.Status).Label)))
			return nil
		},
	}
	cmd.Flags().StringVar(&serverAddr, "server", "", "gRPC address of the CRM server (default localhost:<GRPC_PORT>)")
	cmd.Flags().StringVar(&token, "token", "", "JWT from the authentication service")
	cmd.Flags().StringVar(&notes, "notes", "", "Note recorded with the change")
	return cmd
}

var groupID string

func newTailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print CRM events as they are published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(cfg.KafkaBrokers) == 0 {
				return fmt.Errorf("no kafka brokers configured")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			consumer := events.NewConsumer(cfg.KafkaBrokers, groupID, cfg.Topic, logger)
			defer consumer.Close()

			out := cmd.OutOrStdout()
			consumer.RegisterHandler(func(_ context.Context, ev events.Event) error {
				if jsonOut {
					return writeJSON(out, ev)
				}
				_, err := fmt.Fprintf(out, "%s  %s  %s\n",
					dimStyle.Render(ev.At.Format(time.RFC3339)),
					titleStyle.UnsetMarginBottom().Render(string(ev.Type)),
					ev.EntityID,
				)
				return err
			})
			return consumer.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&groupID, "group", "crmctl", "Kafka consumer group")
	return cmd
}
