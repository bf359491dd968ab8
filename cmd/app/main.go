package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"IndexSDK/internal/app"
	"IndexSDK/internal/di"
	"IndexSDK/pkg/config"
	"IndexSDK/pkg/indexapi"
	"IndexSDK/pkg/logger"
	"IndexSDK/pkg/query"
	"IndexSDK/pkg/reqid"
	"IndexSDK/pkg/secapi"
	"IndexSDK/pkg/util"
)

const usage = `usage: app [-config path] <command> [flags]

commands:
  types       list supported security types
  mapping     map security names to ids (or ids to names)
  metrics     fetch security metrics and write them to the export sink
  indices     list index manifests
  run-state   show or wait for an index's last run state`

func main() {
	configPath := flag.String("config", "", "config file path (MERQ_* variables override it)")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	run, ok := commands[cmd]
	if !ok {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(cfg, args); err != nil {
		log.Printf("%s: %v", cmd, err)
		if errors.Is(err, indexapi.ErrRunFailed) {
			os.Exit(3)
		}
		os.Exit(1)
	}
}

type command func(cfg *config.Config, args []string) error

var commands = map[string]command{
	"types":     runTypes,
	"mapping":   runMapping,
	"metrics":   runMetrics,
	"indices":   runIndices,
	"run-state": runRunState,
}

// withApp builds the App, runs fn under a signal-aware context, then tears down.
func withApp(cfg *config.Config, fn func(ctx context.Context, a *app.App) error) error {
	a, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = reqid.FromEnv(ctx)

	a.Start()
	defer a.Stop(context.Background())

	a.Log.Debug("starting", logger.String("env", cfg.Environment), logger.String("base_url", cfg.API.BaseURL))
	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runTypes(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("types", flag.ExitOnError)
	_ = fs.Parse(args)

	return withApp(cfg, func(ctx context.Context, a *app.App) error {
		types, err := a.Index.SupportedTypes(ctx)
		if err != nil {
			return err
		}
		return printJSON(types)
	})
}

// selectorFlags binds -ids / -names; at most one may be set.
type selectorFlags struct {
	ids, names string
}

func (s *selectorFlags) bind(fs *flag.FlagSet) {
	fs.StringVar(&s.ids, "ids", "", "comma-separated security ids")
	fs.StringVar(&s.names, "names", "", "comma-separated security names")
}

func (s *selectorFlags) selector() (secapi.Selector, error) {
	switch {
	case s.ids != "" && s.names != "":
		return secapi.Selector{}, errors.New("-ids and -names are mutually exclusive")
	case s.ids != "":
		return secapi.ByIDs(util.SplitCSV(s.ids)...), nil
	case s.names != "":
		return secapi.ByNames(util.SplitCSV(s.names)...), nil
	default:
		return secapi.Selector{}, nil
	}
}

func runMapping(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("mapping", flag.ExitOnError)
	secType := fs.String("type", "index", "security type")
	asOf := fs.String("as-of", "", "definitions as of this date")
	strict := fs.Bool("strict", false, "fail when results are filtered by permissions")
	var sel selectorFlags
	sel.bind(fs)
	_ = fs.Parse(args)

	s, err := sel.selector()
	if err != nil {
		return err
	}
	return withApp(cfg, func(ctx context.Context, a *app.App) error {
		m, err := a.Index.GetSecurityDefinitionsMappingTable(ctx, *secType, s, query.Filter{"as_of": query.String(*asOf)}, *strict)
		if err != nil {
			return err
		}
		return printJSON(m)
	})
}

func parseDate(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, ok := util.ParseTime(v)
	if !ok {
		return time.Time{}, fmt.Errorf("-%s: cannot parse %q", name, v)
	}
	return t, nil
}

func runMetrics(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("metrics", flag.ExitOnError)
	secType := fs.String("type", "index", "security type")
	names := fs.String("metrics", "", "comma-separated metric names")
	start := fs.String("start", "", "start date (YYYY-MM-DD)")
	end := fs.String("end", "", "end date (YYYY-MM-DD)")
	metricsChunk := fs.Int("metrics-chunk", 0, "metrics per sub-request (0 disables)")
	secChunk := fs.Int("securities-chunk", 0, "securities per sub-request (0 disables)")
	sink := fs.String("sink", "", "override export.sink (stdout, kafka, clickhouse)")
	strict := fs.Bool("strict", false, "fail when results are filtered by permissions")
	var sel selectorFlags
	sel.bind(fs)
	_ = fs.Parse(args)

	s, err := sel.selector()
	if err != nil {
		return err
	}
	from, err := parseDate("start", *start)
	if err != nil {
		return err
	}
	to, err := parseDate("end", *end)
	if err != nil {
		return err
	}
	if *sink != "" {
		cfg.Export.Sink = *sink
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	req := secapi.MetricsRequest{
		SecType:         *secType,
		Metrics:         secapi.MetricList(util.SplitCSV(*names)...),
		Securities:      s,
		Start:           from,
		End:             to,
		RaisePermErrors: *strict,
	}
	var opts []secapi.MetricsOption
	if *metricsChunk > 0 {
		opts = append(opts, secapi.WithMetricsChunkSize(*metricsChunk))
	}
	if *secChunk > 0 {
		opts = append(opts, secapi.WithSecuritiesChunkSize(*secChunk))
	}

	return withApp(cfg, func(ctx context.Context, a *app.App) error {
		res, err := a.Exporter.Execute(ctx, req, opts...)
		if err != nil {
			return err
		}
		a.Log.Info("done", logger.Int("rows", res.Rows), logger.Int("points", res.Points))
		return nil
	})
}

func runIndices(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("indices", flag.ExitOnError)
	names := fs.String("names", "", "comma-separated index names (default all)")
	namespace := fs.String("namespace", "", "only indices in this namespace")
	all := fs.Bool("all", false, "include non-production indices")
	_ = fs.Parse(args)

	return withApp(cfg, func(ctx context.Context, a *app.App) error {
		if *namespace != "" {
			ms, err := a.Index.GetIndicesInNamespace(ctx, *namespace)
			if err != nil {
				return err
			}
			return printJSON(ms)
		}
		defs, err := a.Index.GetIndexDefs(ctx, util.SplitCSV(*names), *all)
		if err != nil {
			return err
		}
		return printJSON(defs)
	})
}

func runRunState(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("run-state", flag.ExitOnError)
	name := fs.String("index", "", "index name")
	wait := fs.Bool("wait", false, "poll until the run succeeds or fails")
	interval := fs.Duration("interval", 30*time.Second, "poll interval")
	timeout := fs.Duration("timeout", 0, "give up after this long (0 waits forever)")
	_ = fs.Parse(args)
	if *name == "" {
		return errors.New("-index is required")
	}

	return withApp(cfg, func(ctx context.Context, a *app.App) error {
		idx, err := a.Index.ForIndex(ctx, *name, false)
		if err != nil {
			return err
		}
		if !*wait {
			rs, err := idx.LastRunState(ctx)
			if err != nil {
				return err
			}
			return printJSON(rs)
		}
		if *timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, *timeout)
			defer cancel()
		}
		rs, err := a.Index.PollRunState(ctx, idx.ID(), *interval)
		if perr := printJSON(rs); perr != nil {
			return perr
		}
		return err
	})
}
