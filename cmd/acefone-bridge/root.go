package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/udipth01/acefone/internal/config"
	"github.com/udipth01/acefone/internal/crm"
	"github.com/udipth01/acefone/internal/dedup"
	"github.com/udipth01/acefone/internal/logger"
	"github.com/udipth01/acefone/internal/pipeline"
	"github.com/udipth01/acefone/internal/report"
	"github.com/udipth01/acefone/internal/server"
	"github.com/udipth01/acefone/internal/summarize"
	"github.com/udipth01/acefone/internal/telephony"
	"github.com/udipth01/acefone/internal/transcribe"
	"github.com/udipth01/acefone/internal/types"
)

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "acefone-bridge",
		Short:         "Acefone call webhook to Bitrix24 note bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCommand(), processCommand(), exportCommand())
	return root
}

// bridge bundles the constructed pipeline and its closable stores.
type bridge struct {
	cfg   config.Config
	log   *logger.Logger
	orc   *pipeline.Orchestrator
	store *dedup.Store
}

func buildBridge() (*bridge, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.Environment, cfg.LogLevel)

	store, err := dedup.Open(cfg.StateDBPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	orc := pipeline.New(cfg, pipeline.Deps{
		Telephony:   telephony.NewClient(cfg, httpClient, log.WithComponent("telephony")),
		Transcriber: transcribe.New(cfg.SpeechBaseURL, cfg.SpeechAPIKey, cfg.SpeechModel),
		Summarizer:  summarize.New(cfg.SpeechBaseURL, cfg.SpeechAPIKey, cfg.SummaryModel),
		CRM:         crm.NewClient(cfg.BitrixWebhookURL, httpClient, log.WithComponent("crm")),
		Journal:     store,
		Logger:      log.WithComponent("pipeline"),
	})

	return &bridge{cfg: cfg, log: log, orc: orc, store: store}, nil
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := buildBridge()
			if err != nil {
				return err
			}
			defer b.store.Close()

			b.log.WithField("service", "acefone-bridge").Info("starting service")

			srv := server.New(b.cfg, b.orc, b.log)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				b.log.Info("shutting down")
				_ = srv.Shutdown()
			}()

			return srv.Listen()
		},
	}
}

func processCommand() *cobra.Command {
	var callID string
	var phone string

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run the pipeline once for a single call id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if callID == "" {
				return fmt.Errorf("--call-id is required")
			}
			b, err := buildBridge()
			if err != nil {
				return err
			}
			defer b.store.Close()

			res, err := b.orc.Run(cmd.Context(), types.CallEvent{
				CallID:       callID,
				ClientNumber: phone,
				Status:       "completed",
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&callID, "call-id", "", "Acefone call id to process")
	cmd.Flags().StringVar(&phone, "phone", "", "caller number override when the record has none")
	return cmd
}

func exportCommand() *cobra.Command {
	var out string
	var limit int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the processed-calls journal to an xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, err := dedup.Open(cfg.StateDBPath)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if err := report.WriteWorkbook(out, entries); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "wrote %d entries to %s\n", len(entries), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "processed-calls.xlsx", "output workbook path")
	cmd.Flags().IntVar(&limit, "limit", 1000, "maximum entries to export")
	return cmd
}
