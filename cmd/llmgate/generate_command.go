package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/llmgate/config"
	"github.com/BaSui01/llmgate/internal/metrics"
	"github.com/BaSui01/llmgate/internal/server"
	"github.com/BaSui01/llmgate/internal/telemetry"
	"github.com/BaSui01/llmgate/llm"
	"github.com/BaSui01/llmgate/llm/factory"
	"github.com/BaSui01/llmgate/quick"
	"github.com/BaSui01/llmgate/types"
)

type generateOptions struct {
	models      []string
	vendor      string
	prompt      string
	images      []string
	rawPath     string
	templ       string
	data        []string
	system      string
	concurrency int
	jsonOutput  bool
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Request a completion from one or more models",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(opts.models) == 0 {
				return errors.New("at least one --model is required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.loggerValue()
			defer func() { _ = logger.Sync() }()

			req, err := opts.request()
			if err != nil {
				return err
			}

			observers, cleanup, err := startObservers(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			results := make([]*types.Response, len(opts.models))
			g, gctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(opts.concurrency, 1))
			for i, model := range opts.models {
				g.Go(func() error {
					r := req
					r.Model = model
					resp, err := quick.Generate(gctx, r,
						quick.WithConfig(cfg),
						quick.WithLogger(logger),
						quick.WithSystemPrompt(opts.system),
						quick.WithFactoryOptions(factory.WithObserver(observers...)),
					)
					if err != nil {
						return fmt.Errorf("%s: %w", model, err)
					}
					results[i] = resp
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if opts.jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			printResults(cmd, opts.models, results)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&opts.models, "model", "m", nil, "Model name (repeat to fan out across models)")
	flags.StringVar(&opts.vendor, "vendor", "", "Vendor (inferred from the model name when omitted)")
	flags.StringVarP(&opts.prompt, "prompt", "p", "", "Prompt text")
	flags.StringArrayVar(&opts.images, "image", nil, "Image URL or data URL (repeatable)")
	flags.StringVar(&opts.rawPath, "raw", "", "JSON file with vendor-shaped content parts")
	flags.StringVarP(&opts.templ, "type", "t", "", "Prompt template type")
	flags.StringArrayVarP(&opts.data, "data", "d", nil, "Template variable key=value, or key=@file (repeatable)")
	flags.StringVar(&opts.system, "system", "", "System prompt")
	flags.IntVar(&opts.concurrency, "concurrency", 4, "Maximum concurrent model calls")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Print responses as JSON")

	return cmd
}

// request builds the quick.Request shared by every model.
func (o generateOptions) request() (quick.Request, error) {
	req := quick.Request{Vendor: o.vendor, Type: o.templ}

	data, err := parseData(o.data)
	if err != nil {
		return req, err
	}
	if o.templ != "" {
		if o.prompt != "" || o.rawPath != "" {
			return req, fmt.Errorf("%w: --type cannot be combined with --prompt or --raw", types.ErrInvalidArgument)
		}
		if data == nil {
			data = map[string]any{}
		}
		if len(o.images) > 0 {
			data["images"] = o.images
		}
		req.Data = data
		return req, nil
	}
	if data != nil {
		return req, fmt.Errorf("%w: --data requires --type", types.ErrInvalidArgument)
	}

	var raw any
	switch {
	case o.rawPath != "":
		if o.prompt != "" || len(o.images) > 0 {
			return req, fmt.Errorf("%w: --raw cannot be combined with --prompt or --image", types.ErrInvalidArgument)
		}
		if raw, err = readRawParts(o.rawPath); err != nil {
			return req, err
		}
	case len(o.images) > 0:
		raw = map[string]any{"text": o.prompt, "images": o.images}
	case o.prompt != "":
		raw = o.prompt
	default:
		return req, fmt.Errorf("%w: one of --prompt, --raw or --type is required", types.ErrInvalidArgument)
	}

	prompt, err := quick.ParsePrompt(raw)
	if err != nil {
		return req, err
	}
	req.Prompt = prompt
	return req, nil
}

// startObservers wires Prometheus and OpenTelemetry observers per configuration.
func startObservers(ctx context.Context, cfg *config.Config, logger *zap.Logger) ([]llm.Observer, func(), error) {
	var observers []llm.Observer
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	} else {
		closers = append(closers, func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := providers.Shutdown(sctx); err != nil {
				logger.Warn("telemetry shutdown failed", zap.Error(err))
			}
		})
		obs, err := providers.Observer()
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if obs != nil {
			observers = append(observers, obs)
		}
	}

	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector(cfg.Metrics.Namespace, nil, logger)
		observers = append(observers, collector)
		if addr := strings.TrimSpace(cfg.Metrics.ListenAddr); addr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", collector.Handler())
			scfg := server.DefaultConfig()
			scfg.Addr = addr
			srv := server.NewManager(mux, scfg, logger)
			if err := srv.Start(); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("metrics server: %w", err)
			}
			closers = append(closers, func() { _ = srv.Shutdown(context.WithoutCancel(ctx)) })
		}
	}

	return observers, cleanup, nil
}

func printResults(cmd *cobra.Command, models []string, results []*types.Response) {
	out := cmd.OutOrStdout()
	if len(results) == 1 {
		resp := results[0]
		if resp.Success() {
			fmt.Fprintln(out, resp.Output())
			return
		}
		if info, ok := resp.ErrorInfo(); ok {
			fmt.Fprintf(out, "error (%s): %s\n", formatStatus(resp), info.Message)
		}
		return
	}

	headers := []string{"Model", "Vendor", "Status", "Tokens In/Out", "Latency"}
	rows := make([][]string, 0, len(results))
	for i, resp := range results {
		latency := "-"
		if ms, ok := resp.Meta(types.MetaLatencyMS); ok {
			latency = strconv.FormatInt(toInt64(ms), 10) + "ms"
		}
		rows = append(rows, []string{models[i], resp.Vendor(), formatStatus(resp), formatTokens(resp), latency})
	}
	fmt.Fprintln(out, renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight}))

	for i, resp := range results {
		fmt.Fprintf(out, "\n== %s ==\n", models[i])
		if resp.Success() {
			fmt.Fprintln(out, resp.Output())
		} else if info, ok := resp.ErrorInfo(); ok {
			fmt.Fprintln(out, info.Message)
		}
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
