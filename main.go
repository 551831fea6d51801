package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"radiata.klederson.com/internal/agent"
	"radiata.klederson.com/internal/api"
	"radiata.klederson.com/internal/config"
	"radiata.klederson.com/internal/dashboard"
	"radiata.klederson.com/internal/logging"
	"radiata.klederson.com/internal/ui"
)

var (
	flagServer  string
	flagDemo    bool
	flagConfig  string
	flagLogFile string
	flagDebug   bool
	flagNoColor bool
	flagTimeout time.Duration

	flagListen    string
	flagCPUWindow int
	flagGPUWindow int
	flagRate      float64

	flagWidth  int
	flagHeight int
)

var (
	hintErr  = color.New(color.FgRed, color.Bold)
	hintHead = color.New(color.FgYellow)
	hintCmd  = color.New(color.FgCyan)
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "radiata",
		Short: "Radiata - terminal dashboard for a host metrics server",
		Long: `Radiata polls a metrics server and draws CPU, memory, GPU, process,
network and disk panels in the terminal.

Run "radiata serve" on the machine to watch, then point the dashboard at it
with --server. Use --demo to try the dashboard without a server.`,
		SilenceUsage: true,
		RunE:         runDashboard,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", config.DefaultPath(), "Path to the YAML config file")
	pf.StringVar(&flagLogFile, "log-file", "", "Write logs to this file (default from config)")
	pf.BoolVar(&flagDebug, "debug", false, "Log at debug level")
	pf.BoolVar(&flagNoColor, "no-color", false, "Disable colors")
	pf.DurationVar(&flagTimeout, "timeout", 5*time.Second, "Timeout of each request to the metrics server")

	rootCmd.Flags().StringVar(&flagServer, "server", config.DefaultServerURL, "Metrics server URL")
	rootCmd.Flags().BoolVar(&flagDemo, "demo", false, "Run with synthetic data (no server required)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve metrics of this machine for the dashboard",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&flagListen, "listen", config.DefaultListen, "Address to listen on")
	serveCmd.Flags().IntVar(&flagCPUWindow, "cpu-window", config.AgentCPUWindow, "Seconds of CPU and memory history to keep")
	serveCmd.Flags().IntVar(&flagGPUWindow, "gpu-window", config.AgentGPUWindow, "GPU samples to keep")
	serveCmd.Flags().Float64Var(&flagRate, "rate", config.AgentGPURate, "GPU samples per second")

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print one frame of the dashboard and exit",
		Args:  cobra.NoArgs,
		RunE:  runSnapshot,
	}
	snapshotCmd.Flags().StringVar(&flagServer, "server", config.DefaultServerURL, "Metrics server URL")
	snapshotCmd.Flags().BoolVar(&flagDemo, "demo", false, "Render synthetic data")
	snapshotCmd.Flags().IntVar(&flagWidth, "width", 0, "Frame width (default: terminal width)")
	snapshotCmd.Flags().IntVar(&flagHeight, "height", 0, "Frame height (default: terminal height)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", config.AppName, config.AppVersion)
		},
	}

	rootCmd.AddCommand(serveCmd, snapshotCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges file, environment and flags, in rising precedence.
func loadConfig(cmd *cobra.Command) (*config.File, error) {
	f, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	f.ApplyEnv()

	flags := cmd.Flags()
	if flags.Changed("server") {
		f.ServerURL = flagServer
	}
	if flags.Changed("log-file") {
		f.LogFile = flagLogFile
	}
	if flagDebug {
		f.LogLevel = "debug"
	}
	if flags.Changed("listen") {
		f.Agent.Listen = flagListen
	}
	if flags.Changed("cpu-window") {
		f.Agent.CPUWindow = flagCPUWindow
	}
	if flags.Changed("gpu-window") {
		f.Agent.GPUWindow = flagGPUWindow
	}
	if flags.Changed("rate") {
		f.Agent.GPURate = flagRate
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func dial(log *zap.Logger) func(string) (api.Source, error) {
	return func(url string) (api.Source, error) {
		c, err := api.NewClient(url,
			api.WithLogger(log),
			api.WithHTTPClient(&http.Client{Timeout: flagTimeout}),
		)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func dashboardOptions(f *config.File, log *zap.Logger) dashboard.Options {
	opts := dashboard.Options{
		ServerURL:  f.ServerURL,
		Dial:       dial(log),
		Demo:       flagDemo,
		Intervals:  f.Durations(),
		GPUHistory: f.History.GPU,
		Panels:     f.Panels,
		Logger:     log,
	}
	if flagDemo {
		opts.Source = api.NewMock(config.DemoCores, config.DemoGPUs, nil)
	}
	return opts
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	color.NoColor = color.NoColor || flagNoColor
	f, err := loadConfig(cmd)
	if err != nil {
		hintErr.Fprintf(os.Stderr, "\nError: %v\n\n", err)
		return err
	}

	log, err := logging.New(logging.Options{File: f.LogFile, Level: f.LogLevel})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ui.ApplyColor(os.Stdout, flagNoColor)

	model, err := dashboard.New(dashboardOptions(f, log))
	if err != nil {
		printDialHints(err, f.ServerURL)
		return err
	}
	log.Info("dashboard starting", zap.String("server", f.ServerURL), zap.Bool("demo", flagDemo))

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithFPS(config.TargetFPS),
	)
	_, err = p.Run()
	return err
}

func runServe(cmd *cobra.Command, _ []string) error {
	color.NoColor = color.NoColor || flagNoColor
	f, err := loadConfig(cmd)
	if err != nil {
		hintErr.Fprintf(os.Stderr, "\nError: %v\n\n", err)
		return err
	}

	log, err := logging.New(logging.Options{File: f.LogFile, Level: f.LogLevel, Console: true})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	host := agent.NewSystemHost()
	gpu, err := agent.OpenGPU(ctx, log)
	if err != nil {
		log.Info("no gpu found", zap.Error(err))
	} else {
		defer gpu.Close()
	}

	sampler := agent.NewSampler(ctx, host, gpu, agent.Config{
		CPUWindow: f.Agent.CPUWindow,
		GPUWindow: f.Agent.GPUWindow,
		GPURate:   f.Agent.GPURate,
	}, log)
	srv := agent.NewServer(host, sampler, log)

	if err := srv.ListenAndServe(ctx, f.Agent.Listen); err != nil {
		hintErr.Fprintf(os.Stderr, "\nError: %v\n\n", err)
		hintHead.Fprintln(os.Stderr, "Is another server already listening? Try:")
		hintCmd.Fprintln(os.Stderr, "  radiata serve --listen :4445")
		return err
	}
	return nil
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	color.NoColor = color.NoColor || flagNoColor
	f, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Options{File: f.LogFile, Level: f.LogLevel})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ui.ApplyColor(os.Stdout, flagNoColor)

	width, height := flagWidth, flagHeight
	if w, h, err := term.GetSize(os.Stdout.Fd()); err == nil {
		if width <= 0 {
			width = w
		}
		if height <= 0 {
			height = h
		}
	}
	if width <= 0 {
		width = ui.WideLayout
	}
	if height <= 0 {
		height = 40
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	frame, err := dashboard.Snapshot(ctx, dashboardOptions(f, log), width, height)
	if err != nil {
		printDialHints(err, f.ServerURL)
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), frame)
	return nil
}

func printDialHints(err error, serverURL string) {
	hintErr.Fprintf(os.Stderr, "\nError: %v\n\n", err)
	if !errors.Is(err, api.ErrBadURL) {
		return
	}
	hintHead.Fprintf(os.Stderr, "%q is not a server URL. Try one of:\n", serverURL)
	hintCmd.Fprintln(os.Stderr, "  radiata --server http://localhost:4444")
	hintCmd.Fprintln(os.Stderr, "  radiata --demo    (synthetic data, no server needed)")
}
