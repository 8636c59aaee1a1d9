package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/ningapi/internal/i18n"
	"github.com/Brownie44l1/ningapi/internal/logging"
	"github.com/Brownie44l1/ningapi/internal/model"
	"github.com/Brownie44l1/ningapi/internal/session"
)

const speechReadyTimeout = 5 * time.Second

var scanCmd = &cobra.Command{
	Use:   "scan <image>",
	Short: "Analyze one image file and announce the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runScanCmd,
}

func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	svc, err := newServices(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	readyCtx, cancel := context.WithTimeout(ctx, speechReadyTimeout)
	if err := svc.speaker.WaitReady(readyCtx); err != nil {
		fmt.Fprintf(os.Stderr, "speech unavailable: %v\n", err)
	}
	cancel()

	out := cmd.OutOrStdout()
	o := session.New("cli", svc.deps(func(id string, from, to session.State) {
		fmt.Fprintf(out, "%s -> %s\n", from, to)
	}))
	return runScan(ctx, out, o, svc.catalog, model.FileSource(args[0]))
}

// runScan drives one capture through o and prints the outcome.
func runScan(ctx context.Context, out io.Writer, o *session.Orchestrator, catalog *i18n.Catalog, src model.ImageSource) error {
	if err := o.RequestCapture(); err != nil {
		return err
	}
	result, err := o.Analyze(ctx, src)
	switch {
	case errors.Is(err, session.ErrFaceRejected):
		fmt.Fprintln(out, "rejected: the photo shows a face, not a banknote")
		return nil
	case err != nil:
		return err
	}

	fmt.Fprintf(out, "denomination: %s\n", result.Denomination)
	fmt.Fprintf(out, "currency:     %s\n", result.Currency)
	fmt.Fprintf(out, "confidence:   %s\n", result.ConfidencePercentage())
	fmt.Fprintf(out, "announcement: %s\n", result.Speakable(catalog))
	return nil
}
