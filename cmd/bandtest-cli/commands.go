package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"bandtest/internal/backtest"
	"bandtest/internal/config"
	"bandtest/internal/domain"
	"bandtest/internal/gather"
	"bandtest/internal/gather/manual"
	"bandtest/internal/report"
	"bandtest/internal/trace"
	"bandtest/internal/util"
	"bandtest/pkg/bandtest"
)

// common holds the flags every command shares.
type common struct {
	configPath string
	server     string
}

func (c *common) register(fs *flag.FlagSet) {
	def := "config/bandtest.yaml"
	if p := os.Getenv("BANDTEST_CONFIG"); p != "" {
		def = p
	}
	fs.StringVar(&c.configPath, "config", def, "path to YAML config (ignored if missing)")
	fs.StringVar(&c.server, "server", "", "bandtest-server base URL; run remotely instead of in-process")
}

// load reads the config and installs a stderr logger so stdout stays
// reserved for command output.
func (c *common) load() (*config.Config, *slog.Logger, error) {
	path := c.configPath
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger := util.NewLoggerTo(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)
	if err := trace.InitTo(os.Stderr, cfg.Logging.Tracing, "bandtest-cli"); err != nil {
		return nil, nil, fmt.Errorf("initializing tracing: %w", err)
	}
	return cfg, logger, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func shutdownTrace() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = trace.Shutdown(ctx)
}

// ---------------------------------------------------------------------------
// run
// ---------------------------------------------------------------------------

func runCmd(args []string) error {
	var (
		c                     common
		symbol, strat, source string
		start, end, barsFile  string
		tradesCSV, equityCSV  string
		capital, multiplier   float64
		period                int
		lot                   int64
		asJSON                bool
	)
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	c.register(fs)
	fs.StringVar(&symbol, "symbol", "", "symbol (default from config)")
	fs.StringVar(&strat, "strategy", "", "strategy name (default from config)")
	fs.StringVar(&source, "source", "", "bar source: mock, store or alpaca (default from config)")
	fs.StringVar(&start, "start", "", "start date YYYY-MM-DD (default from config)")
	fs.StringVar(&end, "end", "", "end date YYYY-MM-DD (default from config)")
	fs.Float64Var(&capital, "capital", 0, "initial capital (default from config)")
	fs.IntVar(&period, "period", 0, "Bollinger window (default from config)")
	fs.Float64Var(&multiplier, "multiplier", 0, "Bollinger multiplier (default from config)")
	fs.Int64Var(&lot, "lot", 0, "lot size (default from config)")
	fs.StringVar(&barsFile, "bars", "", "JSON bar file to backtest instead of a source")
	fs.StringVar(&tradesCSV, "trades-csv", "", "write the trade log to this CSV file")
	fs.StringVar(&equityCSV, "equity-csv", "", "write the equity curve to this CSV file")
	fs.BoolVar(&asJSON, "json", false, "print the full result as JSON")
	fs.Parse(args)

	cfg, logger, err := c.load()
	if err != nil {
		return err
	}
	defer shutdownTrace()

	// Flags only override what was set explicitly.
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	def := cfg.Backtest
	pickS := func(name, v, d string) string {
		if set[name] {
			return v
		}
		return d
	}
	symbol = pickS("symbol", symbol, def.Symbol)
	strat = pickS("strategy", strat, def.Strategy)
	source = pickS("source", source, def.Source)
	start = pickS("start", start, def.StartDate)
	end = pickS("end", end, def.EndDate)
	if !set["capital"] {
		capital = def.InitialCapital
	}
	if !set["period"] {
		period = def.BollingerPeriod
	}
	if !set["multiplier"] {
		multiplier = def.BollingerMultiplier
	}
	if !set["lot"] {
		lot = def.LotSize
	}

	ctx, cancel := signalContext()
	defer cancel()

	if c.server != "" {
		if barsFile != "" {
			return errors.New("-bars cannot be combined with -server")
		}
		return runRemote(ctx, c.server, bandtest.BacktestRequest{
			Symbol: symbol, Strategy: strat, Source: source, StartDate: start, EndDate: end,
			InitialCapital: &capital, Period: &period, Multiplier: &multiplier, LotSize: &lot,
		}, asJSON)
	}

	startT, err := util.ParseDate(start)
	if err != nil {
		return err
	}
	endT, err := util.ParseDate(end)
	if err != nil {
		return err
	}
	req := backtest.Request{
		Strategy: strat, Symbol: symbol, Source: source,
		Start: startT, End: endT,
		InitialCapital: capital, Period: period, Multiplier: multiplier, LotSize: lot,
	}

	env, err := backtest.Setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer env.Close()

	var res *domain.Result
	if barsFile != "" {
		bars, derr := manual.DecodeFile(barsFile, symbol)
		if derr != nil {
			return derr
		}
		res, err = env.Backtester.RunBars(ctx, req, bars)
	} else {
		res, err = env.Backtester.Run(ctx, req)
	}
	if err != nil {
		return err
	}

	if tradesCSV != "" {
		if err := writeFile(tradesCSV, func(f *os.File) error { return report.WriteTradesCSV(f, res.Trades) }); err != nil {
			return err
		}
	}
	if equityCSV != "" {
		if err := writeFile(equityCSV, func(f *os.File) error { return report.WriteEquityCSV(f, res.EquityCurve) }); err != nil {
			return err
		}
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if err := report.WriteSummary(os.Stdout, res); err != nil {
		return err
	}
	fmt.Println()
	return printTrades(res.Trades)
}

func runRemote(ctx context.Context, server string, req bandtest.BacktestRequest, asJSON bool) error {
	resp, err := bandtest.NewClient(server).RunBacktest(ctx, req)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	s := resp.Summary
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "run id\t%s\n", resp.RunID)
	fmt.Fprintf(tw, "symbol\t%s\n", s.Symbol)
	fmt.Fprintf(tw, "range\t%s .. %s\n", s.Start, s.End)
	fmt.Fprintf(tw, "final equity\t%s\n", s.FinalEquity)
	fmt.Fprintf(tw, "total return %%\t%s\n", s.TotalReturnPct)
	fmt.Fprintf(tw, "max drawdown %% (global max-min)\t%s\n", s.MaxDrawdownPct)
	fmt.Fprintf(tw, "peak-to-trough drawdown %%\t%s\n", s.PeakDrawdownPct)
	fmt.Fprintf(tw, "win rate %%\t%s\n", s.WinRatePct)
	fmt.Fprintf(tw, "closed trades\t%d (%d winning)\n", s.TotalTrades, s.WinningTrades)
	return tw.Flush()
}

func printTrades(trades []domain.Trade) error {
	if len(trades) == 0 {
		fmt.Println("no trades")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tSIDE\tPRICE\tSHARES\tREASON")
	for _, t := range trades {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			t.Date.Format(util.DateLayout), t.Side, report.Round2(t.Price).StringFixed(2), t.Shares, t.Reason)
	}
	return tw.Flush()
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// ---------------------------------------------------------------------------
// profiles / strategies
// ---------------------------------------------------------------------------

func profilesCmd(args []string) error {
	var c common
	fs := flag.NewFlagSet("profiles", flag.ExitOnError)
	c.register(fs)
	fs.Parse(args)

	cfg, logger, err := c.load()
	if err != nil {
		return err
	}
	defer shutdownTrace()
	ctx, cancel := signalContext()
	defer cancel()

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tNAME\tCODE\tMARKET\tSTART\tVOL\tTREND")

	if c.server != "" {
		profiles, err := bandtest.NewClient(c.server).ListProfiles(ctx)
		if err != nil {
			return err
		}
		for _, p := range profiles {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%g\t%g\t%g\n", p.Symbol, p.Name, p.Code, p.Market, p.StartPrice, p.Volatility, p.Trend)
		}
		return tw.Flush()
	}

	env, err := backtest.Setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer env.Close()
	profiles, err := env.Profiles.ListProfiles(ctx)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%g\t%g\t%g\n", p.Symbol, p.Name, p.Code, p.Market, p.StartPrice, p.Volatility, p.Trend)
	}
	return tw.Flush()
}

func strategiesCmd(args []string) error {
	var c common
	fs := flag.NewFlagSet("strategies", flag.ExitOnError)
	c.register(fs)
	fs.Parse(args)

	cfg, logger, err := c.load()
	if err != nil {
		return err
	}
	defer shutdownTrace()
	ctx, cancel := signalContext()
	defer cancel()

	var strategies, sources []string
	if c.server != "" {
		resp, err := bandtest.NewClient(c.server).ListStrategies(ctx)
		if err != nil {
			return err
		}
		strategies, sources = resp.Strategies, resp.Sources
	} else {
		env, err := backtest.Setup(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer env.Close()
		strategies, sources = env.Backtester.Strategies(), env.Backtester.Sources()
	}

	fmt.Printf("strategies: %s\n", strings.Join(strategies, ", "))
	fmt.Printf("sources:    %s\n", strings.Join(sources, ", "))
	return nil
}

func symbolsCmd(args []string) error {
	var (
		c      common
		market string
	)
	fs := flag.NewFlagSet("symbols", flag.ExitOnError)
	c.register(fs)
	fs.StringVar(&market, "market", "", "market partition: cn or us (default from config)")
	fs.Parse(args)

	cfg, logger, err := c.load()
	if err != nil {
		return err
	}
	defer shutdownTrace()
	if c.server != "" {
		return errors.New("symbols reads the local store; -server is not supported")
	}
	if market == "" {
		market = cfg.Backtest.Market
	}

	ctx, cancel := signalContext()
	defer cancel()

	env, err := backtest.Setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer env.Close()

	symbols, err := env.Symbols(ctx, domain.Market(market))
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		fmt.Printf("no %s symbols in %s\n", market, cfg.Storage.DataDir)
		return nil
	}
	for _, s := range symbols {
		fmt.Println(s)
	}
	return nil
}

// ---------------------------------------------------------------------------
// import
// ---------------------------------------------------------------------------

func importCmd(args []string) error {
	var (
		c                     common
		source, file, symbols string
		market, start, end    string
	)
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	c.register(fs)
	fs.StringVar(&source, "source", "manual", "bar source: manual, alpaca or mock")
	fs.StringVar(&file, "file", "", "JSON bar file for -source manual")
	fs.StringVar(&symbols, "symbols", "", "comma-separated symbols (default: config symbol)")
	fs.StringVar(&market, "market", "", "market partition: cn or us (default from config)")
	fs.StringVar(&start, "start", "", "start date YYYY-MM-DD (default from config)")
	fs.StringVar(&end, "end", "", "end date YYYY-MM-DD (default from config)")
	fs.Parse(args)

	cfg, logger, err := c.load()
	if err != nil {
		return err
	}
	defer shutdownTrace()
	if c.server != "" {
		return errors.New("import runs against the local store; -server is not supported")
	}

	if symbols == "" {
		symbols = cfg.Backtest.Symbol
	}
	if market == "" {
		market = cfg.Backtest.Market
	}
	if start == "" {
		start = cfg.Backtest.StartDate
	}
	if end == "" {
		end = cfg.Backtest.EndDate
	}
	startT, err := util.ParseDate(start)
	if err != nil {
		return err
	}
	endT, err := util.ParseDate(end)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	env, err := backtest.Setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer env.Close()

	var src gather.BarSource
	if source == "manual" {
		if file == "" {
			return errors.New("-file is required for -source manual")
		}
		src = manual.NewSource(file)
	} else {
		src, err = env.Source(source)
		if err != nil {
			return err
		}
	}

	var list []string
	for _, s := range strings.Split(symbols, ",") {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, s)
		}
	}

	imp, err := env.Importer(src, domain.Market(market), list, startT, endT)
	if err != nil {
		return err
	}
	logger.Info("starting import", "gatherer", imp.Name(), "symbols", len(list), "market", market)
	return imp.Run(ctx)
}
