package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/groundchat/internal/pipeline"
)

// askIdentity is the rate-limit identity used for terminal requests.
const askIdentity = "cli"

func askCMD(cfgPath *string) *cobra.Command {
	var ask = &cobra.Command{
		Use:   "ask [message]",
		Short: "Run one message through the pipeline and print the JSON answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				a.Close(closeCtx)
			}()

			runCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.RequestTimeout)
			defer cancel()
			resp, err := a.pipeline.Run(runCtx, askIdentity, pipeline.Request{Message: strings.Join(args, " ")})

			out := map[string]interface{}{"message": resp.Answer, "url": nullable(resp.URL)}
			if err != nil {
				var pe *pipeline.Error
				if errors.As(err, &pe) && pe.Kind == pipeline.ResourceNotFound {
					out["message"] = "404"
				} else {
					out["message"] = pipeline.KindOf(err).String()
					out["error"] = err.Error()
				}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(out); encErr != nil {
				return encErr
			}
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			return nil
		},
	}
	return ask
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
