package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/AgentShepherd/dataworks/internal/api"
	"github.com/AgentShepherd/dataworks/internal/audit"
	"github.com/AgentShepherd/dataworks/internal/completion"
	"github.com/AgentShepherd/dataworks/internal/config"
	"github.com/AgentShepherd/dataworks/internal/daemon"
	"github.com/AgentShepherd/dataworks/internal/dispatch"
	"github.com/AgentShepherd/dataworks/internal/guard"
	"github.com/AgentShepherd/dataworks/internal/llm"
	"github.com/AgentShepherd/dataworks/internal/logger"
	"github.com/AgentShepherd/dataworks/internal/tasks"
	"github.com/AgentShepherd/dataworks/internal/tui"
)

// Version is set at build time via ldflags: -X main.Version=x.y.z
var Version = "0.1.0"

var log = logger.New("main")

// Exit codes. check uses exitDenied so scripts can tell a deny from a failure.
const (
	exitOK     = 0
	exitError  = 1
	exitUsage  = 2
	exitDenied = 3
)

func main() {
	if completion.Run() {
		return
	}
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run dispatches a subcommand and returns the process exit code.
func run(args []string, stdout io.Writer) int {
	if len(args) == 0 {
		printUsage(stdout)
		return exitOK
	}
	switch args[0] {
	case "serve":
		return runServe(args[1:])
	case "check":
		return runCheck(args[1:], stdout)
	case "run":
		return runTask(args[1:], stdout)
	case "audit":
		return runAudit(args[1:], stdout)
	case "operations":
		return runOperations(args[1:], stdout)
	case "status":
		return runStatus(args[1:], stdout)
	case "stop":
		return runStop()
	case "logs":
		return runLogs(args[1:])
	case "completion":
		return runCompletion(args[1:])
	case "version", "-v", "--version":
		return runVersion(args[1:], stdout)
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	}
	tui.PrintError(fmt.Sprintf("unknown command %q", args[0]))
	printUsage(os.Stderr)
	return exitUsage
}

// =============================================================================
// Shared setup
// =============================================================================

// commonFlags are accepted by every command that loads configuration.
type commonFlags struct {
	configPath string
	dataDir    string
	logLevel   string
	noColor    bool
}

func (f *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", config.DefaultConfigPath(), "Path to configuration file")
	fs.StringVar(&f.dataDir, "data-dir", "", "Sandbox root (overrides sandbox.root and DATA_DIR)")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	fs.BoolVar(&f.noColor, "no-color", false, "Disable colored output")
}

// load reads the config file, overlays environment and flags, validates the
// result and loads secrets.
func (f *commonFlags) load() (*config.Config, *config.Secrets, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, nil, err
	}
	if f.dataDir != "" {
		cfg.Sandbox.Root = f.dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	secrets, err := config.LoadSecrets()
	if err != nil {
		return nil, nil, err
	}
	if err := secrets.ValidateDBKey(); err != nil {
		return nil, nil, err
	}

	level := string(cfg.Server.LogLevel)
	if f.logLevel != "" {
		level = f.logLevel
	}
	if level != "" {
		if _, err := logger.ParseLevel(level); err != nil {
			return nil, nil, err
		}
		logger.SetGlobalLevelFromString(level)
	}
	if f.noColor || cfg.Server.NoColor {
		logger.SetColored(false)
		tui.SetPlainMode(true)
	}
	return cfg, secrets, nil
}

// app is the wired service: authorizer, catalog, dispatcher and audit trail.
type app struct {
	cfg   *config.Config
	auth  *guard.Authorizer
	d     *dispatch.Dispatcher
	audit *audit.Manager
}

type appOptions struct {
	// withAudit opens the audit database when auditing is enabled.
	withAudit bool
}

func newApp(cfg *config.Config, secrets *config.Secrets, opts appOptions) (*app, error) {
	auth, err := guard.New(cfg.ToGuard())
	if err != nil {
		return nil, fmt.Errorf("sandbox: %w", err)
	}

	deps := tasks.Deps{
		HTTP:      &http.Client{Timeout: time.Duration(cfg.HTTP.FetchTimeout) * time.Second},
		UserAgent: cfg.HTTP.UserAgent,
		Runner:    tasks.ExecRunner{Timeout: 2 * time.Minute},
	}
	var client *llm.Client
	if key := secrets.APIKey(); key != "" {
		client = llm.New(llm.Config{
			Endpoint:       cfg.LLM.Endpoint,
			APIKey:         key,
			Model:          cfg.LLM.Model,
			EmbeddingModel: cfg.LLM.EmbeddingModel,
			MaxTokens:      cfg.LLM.MaxTokens,
			Temperature:    cfg.LLM.Temperature,
			Timeout:        time.Duration(cfg.LLM.Timeout) * time.Second,
		})
		deps.LLM = client
		log.Debug("LLM endpoint %s, model %s, key %s", cfg.LLM.Endpoint, cfg.LLM.Model, secrets.MaskAPIKey())
	}

	reg, err := tasks.NewRegistry(deps)
	if err != nil {
		return nil, err
	}
	// A nil parser makes /run answer 501 rather than fail at startup.
	var parser dispatch.Parser
	if client != nil {
		parser = dispatch.NewLLMParser(client, reg)
	}

	a := &app{cfg: cfg, auth: auth}
	dopts := dispatch.Options{Parser: parser}
	if opts.withAudit && cfg.Audit.Enabled {
		m, err := audit.Open(audit.Config{
			DBPath:        cfg.Storage.DBPath,
			DBKey:         secrets.DBKey,
			RetentionDays: cfg.Audit.RetentionDays,
		})
		if err != nil {
			return nil, fmt.Errorf("audit: %w", err)
		}
		a.audit = m
		dopts.Audit = m
	}
	a.d = dispatch.New(auth, reg, dopts)
	return a, nil
}

func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.audit.Shutdown(ctx); err != nil {
		log.Warn("audit shutdown: %v", err)
	}
}

// =============================================================================
// serve
// =============================================================================

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var cf commonFlags
	cf.register(fs)
	host := fs.String("host", "", "Listen address (default from config)")
	port := fs.Int("port", 0, "Listen port (default from config)")
	background := fs.Bool("background", false, "Detach and run in the background")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if running, pid := daemon.IsRunning(); running {
		tui.PrintError(fmt.Sprintf("dataworks is already running [PID %d]", pid))
		return exitError
	}

	cfg, secrets, err := cf.load()
	if err != nil {
		tui.PrintError(err.Error())
		return exitError
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	if *background && !daemon.IsChild() {
		return startBackground(args)
	}
	if daemon.IsChild() {
		// Output goes to the log file
		logger.SetColored(false)
	}

	if err := daemon.WritePID(); err != nil {
		tui.PrintError(err.Error())
		return exitError
	}
	defer daemon.CleanupPID()

	if err := secrets.Validate(); err != nil {
		log.Warn("%v; /run is disabled until a key is set", err)
	}

	a, err := newApp(cfg, secrets, appOptions{withAudit: true})
	if err != nil {
		log.Error("%v", err)
		return exitError
	}
	defer a.Close()

	stale := func() bool { return false }
	if w, err := config.NewWatcher(cf.configPath); err != nil {
		log.Warn("config watcher: %v", err)
	} else {
		w.OnChange(func() {
			log.Warn("%s changed on disk; restart dataworks to apply it", cf.configPath)
		})
		if err := w.Start(); err != nil {
			log.Warn("config watcher: %v", err)
		} else {
			defer func() { _ = w.Stop() }()
			stale = w.Stale
		}
	}

	opts := api.Options{
		Dispatcher:   a.d,
		Version:      Version,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Stale:        stale,
	}
	if a.audit != nil {
		opts.Routes = append(opts.Routes, api.NewAuditHandler(a.audit.Storage()))
	}
	srv := api.New(opts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("dataworks %s serving %s", Version, a.auth.Root())
	log.Info("  Extensions: %s", strings.Join(cfg.Sandbox.AllowedExtensions, " "))
	log.Info("  Audit: %v", a.audit != nil)
	if err := srv.ListenAndServe(ctx, cfg.Server.Addr()); err != nil {
		log.Error("Server error: %v", err)
		return exitError
	}
	log.Info("dataworks stopped")
	return exitOK
}

// startBackground re-executes serve detached and waits briefly for the PID
// lock to appear.
func startBackground(args []string) int {
	childArgs := []string{"serve"}
	for _, a := range args {
		if a == "-background" || a == "--background" || strings.HasPrefix(a, "--background=") || strings.HasPrefix(a, "-background=") {
			continue
		}
		childArgs = append(childArgs, a)
	}
	pid, err := daemon.Daemonize(childArgs)
	if err != nil {
		tui.PrintError(err.Error())
		return exitError
	}

	for i := 0; i < 20; i++ {
		time.Sleep(100 * time.Millisecond)
		if running, _ := daemon.IsRunning(); running {
			tui.PrintSuccess(fmt.Sprintf("dataworks started [PID %d]", pid))
			fmt.Printf("  Logs: %s\n", daemon.LogFileDisplay())
			return exitOK
		}
	}
	tui.PrintError("dataworks did not start. Check logs: " + daemon.LogFileDisplay())
	return exitError
}

// =============================================================================
// check
// =============================================================================

// checkResult is the --json output of check.
type checkResult struct {
	Allowed  bool     `json:"allowed"`
	Reason   string   `json:"reason,omitempty"`
	Detail   string   `json:"detail,omitempty"`
	Resolved []string `json:"resolved,omitempty"`
}

func runCheck(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	var cf commonFlags
	cf.register(fs)
	verb := fs.String("verb", "read", "Declared verb")
	text := fs.String("text", "", "Task text to screen for restricted operations")
	size := fs.Int64("size", 0, "Planned write size in bytes")
	asJSON := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 && *text == "" {
		tui.PrintError("check needs at least one path or --text")
		return exitUsage
	}

	cfg, _, err := cf.load()
	if err != nil {
		tui.PrintError(err.Error())
		return exitError
	}
	auth, err := guard.New(cfg.ToGuard())
	if err != nil {
		tui.PrintError(err.Error())
		return exitError
	}

	dec := auth.Authorize(guard.Request{
		Paths:            fs.Args(),
		Verb:             *verb,
		TaskText:         *text,
		PlannedWriteSize: *size,
	})
	res := checkResult{Allowed: dec.Allowed, Reason: string(dec.Reason), Detail: dec.Detail}
	for _, p := range dec.Resolved {
		res.Resolved = append(res.Resolved, auth.Relative(p))
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(res)
	} else {
		fmt.Fprintln(stdout, tui.DecisionBadge(dec.Allowed, res.Reason))
		rows := [][2]string{{"root", auth.Root()}}
		if res.Detail != "" {
			rows = append(rows, [2]string{"detail", res.Detail})
		}
		for _, p := range res.Resolved {
			rows = append(rows, [2]string{"path", p})
		}
		fmt.Fprint(stdout, tui.AlignColumns(rows, "  ", 2, tui.StyleMuted, lipgloss.NewStyle()))
	}
	if !dec.Allowed {
		return exitDenied
	}
	return exitOK
}

// =============================================================================
// run
// =============================================================================

// paramFlags collects repeated --param key=value flags.
type paramFlags map[string]any

func (p paramFlags) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

func (p paramFlags) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return fmt.Errorf("want key=value, got %q", s)
	}
	p[strings.TrimSpace(k)] = v
	return nil
}

func runTask(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var cf commonFlags
	cf.register(fs)
	op := fs.String("op", "", "Operation code (skips the LLM parser)")
	input := fs.String("input", "", "Input path")
	output := fs.String("output", "", "Output path")
	verb := fs.String("verb", "", "Declared verb (default: the operation's)")
	params := paramFlags{}
	fs.Var(params, "param", "Operation parameter key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	text := strings.Join(fs.Args(), " ")
	if *op == "" && text == "" {
		tui.PrintError("run needs a task description or --op")
		return exitUsage
	}

	cfg, secrets, err := cf.load()
	if err != nil {
		tui.PrintError(err.Error())
		return exitError
	}
	a, err := newApp(cfg, secrets, appOptions{withAudit: true})
	if err != nil {
		tui.PrintError(err.Error())
		return exitError
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var res *dispatch.Result
	if *op != "" {
		task := &dispatch.Task{
			Operation:  *op,
			InputPath:  *input,
			OutputPath: *output,
			Verb:       *verb,
			Parameters: params,
		}
		res, err = a.d.Execute(ctx, text, task)
	} else {
		res, err = a.d.Run(ctx, text)
	}
	if err != nil {
		tui.PrintError(dispatch.PublicMessage(err))
		log.Debug("%v", err)
		var de *guard.DenyError
		if errors.As(err, &de) {
			return exitDenied
		}
		return exitError
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return exitError
	}
	return exitOK
}

// =============================================================================
// audit
// =============================================================================

func runAudit(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	var cf commonFlags
	cf.register(fs)
	minutes := fs.Int("minutes", 0, "Only decisions from the last N minutes")
	limit := fs.Int("limit", 50, "Maximum number of decisions")
	stats := fs.Bool("stats", false, "Show aggregate counts instead of entries")
	asJSON := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *minutes < 0 || *minutes > audit.MaxRecentMinutes {
		tui.PrintError(fmt.Sprintf("--minutes must be between 0 and %d", audit.MaxRecentMinutes))
		return exitUsage
	}
	if *limit < 1 || *limit > 1000 {
		tui.PrintError("--limit must be between 1 and 1000")
		return exitUsage
	}

	cfg, secrets, err := cf.load()
	if err != nil {
		tui.PrintError(err.Error())
		return exitError
	}
	storage, err := audit.NewStorage(cfg.Storage.DBPath, secrets.DBKey)
	if err != nil {
		tui.PrintError(err.Error())
		return exitError
	}
	defer storage.Close()

	ctx := context.Background()
	var out any
	if *stats {
		out, err = storage.Stats(ctx)
	} else {
		out, err = storage.Recent(ctx, *minutes, *limit)
	}
	if err != nil {
		tui.PrintError(err.Error())
		return exitError
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		return exitOK
	}
	switch v := out.(type) {
	case *audit.Stats:
		printStats(stdout, v)
	case []audit.Entry:
		printEntries(stdout, v)
	}
	return exitOK
}

func printStats(w io.Writer, s *audit.Stats) {
	fmt.Fprintln(w, tui.Separator("Decisions"))
	rows := [][2]string{
		{"total", strconv.FormatInt(s.Total, 10)},
		{"allowed", strconv.FormatInt(s.Allowed, 10)},
		{"denied", strconv.FormatInt(s.Denied, 10)},
	}
	reasons := make([]string, 0, len(s.ByReason))
	for r := range s.ByReason {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		rows = append(rows, [2]string{"  " + r, strconv.FormatInt(s.ByReason[r], 10)})
	}
	fmt.Fprint(w, tui.AlignColumns(rows, "  ", 2, tui.StyleMuted, lipgloss.NewStyle()))
}

func printEntries(w io.Writer, entries []audit.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No decisions recorded.")
		return
	}
	for _, e := range entries {
		op := e.Operation
		if op == "" {
			op = "-"
		}
		line := fmt.Sprintf("%s  %-4s %-8s %s", e.Timestamp.Local().Format(time.DateTime), op, e.Verb, strings.Join(e.Paths, " "))
		fmt.Fprintf(w, "%s %s\n", tui.DecisionBadge(e.Allowed, e.Reason), line)
		if e.Detail != "" {
			fmt.Fprintf(w, "    %s\n", tui.Faint(e.Detail))
		}
	}
}

// =============================================================================
// operations
// =============================================================================

func runOperations(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("operations", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	reg, err := tasks.NewRegistry(tasks.Deps{})
	if err != nil {
		tui.PrintError(err.Error())
		return exitError
	}

	ops := reg.Operations()
	if *asJSON {
		type opInfo struct {
			Code        string `json:"code"`
			Summary     string `json:"summary"`
			Verb        string `json:"verb,omitempty"`
			Unsupported string `json:"unsupported_reason,omitempty"`
		}
		out := make([]opInfo, 0, len(ops))
		for _, op := range ops {
			out = append(out, opInfo{op.Code, op.Summary, string(op.Verb), op.Unsupported})
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		return exitOK
	}

	rows := make([][2]string, 0, len(ops))
	for _, op := range ops {
		desc := op.Summary
		if op.Run == nil {
			desc = "unsupported: " + op.Unsupported
		}
		rows = append(rows, [2]string{op.Code, desc})
	}
	fmt.Fprint(stdout, tui.AlignColumns(rows, "  ", 2, tui.StyleCommand, lipgloss.NewStyle()))
	return exitOK
}

// =============================================================================
// status, stop, logs
// =============================================================================

// statusResult is the --json output of status.
type statusResult struct {
	Running bool           `json:"running"`
	PID     int            `json:"pid,omitempty"`
	Health  map[string]any `json:"health,omitempty"`
	LogFile string         `json:"log_file"`
}

func runStatus(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	var cf commonFlags
	cf.register(fs)
	asJSON := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	res := statusResult{LogFile: daemon.LogFile()}
	res.Running, res.PID = daemon.IsRunning()
	if res.Running {
		if cfg, _, err := cf.load(); err == nil {
			res.Health = fetchHealth(cfg.Server.Addr())
		}
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(res)
		return exitOK
	}
	if !res.Running {
		fmt.Fprintf(stdout, "%s dataworks is not running\n", tui.StyleMuted.Render(tui.IconCircle))
		return exitOK
	}
	fmt.Fprintf(stdout, "%s dataworks is running [PID %d]\n", tui.StyleSuccess.Render(tui.IconDot), res.PID)
	if res.Health != nil {
		if stale, _ := res.Health["config_stale"].(bool); stale {
			tui.PrintWarning("config changed on disk since startup; restart to apply")
		}
		fmt.Fprintln(stdout, "  Status: healthy")
	}
	fmt.Fprintf(stdout, "  Logs: %s\n", daemon.LogFileDisplay())
	return exitOK
}

// fetchHealth queries /health on the local server; nil if unreachable.
func fetchHealth(addr string) map[string]any {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/health") //nolint:noctx // short-lived CLI call
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	var h map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&h); err != nil {
		return nil
	}
	return h
}

func runStop() int {
	running, pid := daemon.IsRunning()
	if !running {
		fmt.Println("dataworks is not running")
		return exitOK
	}
	fmt.Printf("Stopping dataworks [PID %d]...\n", pid)
	if err := daemon.Stop(35 * time.Second); err != nil {
		tui.PrintError(err.Error())
		return exitError
	}
	tui.PrintSuccess("dataworks stopped")
	return exitOK
}

func runLogs(args []string) int {
	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	follow := fs.Bool("f", false, "Follow log output")
	lines := fs.Int("n", 50, "Number of lines to show")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *lines < 1 {
		*lines = 50
	} else if *lines > 10000 {
		*lines = 10000
	}

	logFile := daemon.LogFile()
	tailArgs := []string{"-n", strconv.Itoa(*lines)}
	if *follow {
		tailArgs = append(tailArgs, "-f")
	}
	cmd := exec.Command("tail", append(tailArgs, "--", logFile)...) //nolint:gosec // args are from parsed flags
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil && !*follow {
		tui.PrintError("No logs found. Was dataworks started with serve --background?")
		return exitError
	}
	return exitOK
}

// =============================================================================
// version, completion, help
// =============================================================================

func runVersion(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *asJSON {
		_ = json.NewEncoder(stdout).Encode(map[string]string{"version": Version})
		return exitOK
	}
	fmt.Fprintf(stdout, "dataworks version %s\n", Version)
	return exitOK
}

func runCompletion(args []string) int {
	fs := flag.NewFlagSet("completion", flag.ContinueOnError)
	doInstall := fs.Bool("install", false, "Install shell completion")
	doUninstall := fs.Bool("uninstall", false, "Remove shell completion")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	switch {
	case *doInstall:
		if err := completion.Install(); err != nil {
			tui.PrintError(fmt.Sprintf("install completion: %v", err))
			return exitError
		}
		tui.PrintSuccess("Shell completion installed. Restart your shell to use it.")
	case *doUninstall:
		if err := completion.Uninstall(); err != nil {
			tui.PrintError(fmt.Sprintf("uninstall completion: %v", err))
			return exitError
		}
		tui.PrintSuccess("Shell completion removed.")
	default:
		if completion.IsInstalled() {
			tui.PrintInfo("Shell completion is installed.")
		} else {
			tui.PrintInfo("Shell completion is not installed. Run: dataworks completion --install")
		}
	}
	return exitOK
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `dataworks - sandboxed task agent

Usage:
  dataworks serve [flags]              Start the HTTP API (--background to detach)
  dataworks stop                       Stop a background server
  dataworks status [--json]            Check whether the server is running
  dataworks logs [-f] [-n N]           View background server logs

  dataworks check [flags] <path>...    Authorize paths without touching them
  dataworks run [flags] <task text>    Run a task (LLM-parsed, or --op CODE)
  dataworks operations [--json]        List the operation catalog
  dataworks audit [--stats] [--json]   Show recent authorization decisions

  dataworks completion [--install]     Shell tab completion
  dataworks version                    Show version
  dataworks help                       Show this help message

Common Flags:
  --config string      Path to configuration file (default ~/.dataworks/config.yaml)
  --data-dir string    Sandbox root (overrides sandbox.root)
  --log-level string   Log level: trace, debug, info, warn, error
  --no-color           Disable colored output

Check Flags:
  --verb string        Declared verb (default "read")
  --text string        Task text screened for restricted operations
  --size int           Planned write size in bytes

Run Flags:
  --op string          Operation code, e.g. A4 or B10
  --input, --output    Task input and output paths
  --param key=value    Operation parameter (repeatable)

Environment Variables:
  AIPROXY_TOKEN    LLM API key (LLM_API_KEY is also accepted)
  DB_KEY           Audit database encryption key (16+ characters)
  DATA_DIR         Sandbox root
  MODEL_NAME       LLM model
  PORT             Listen port
  DATAWORKS_HOME   State directory (default ~/.dataworks)

Exit Status:
  0 success, 1 error, 2 usage, 3 denied by the sandbox

Examples:
  DATA_DIR=/data AIPROXY_TOKEN=xxx dataworks serve
  dataworks check --verb write --size 2048 reports/out.json
  dataworks run --op B10 --param file_path=sales.csv --param column=region --param value=EU`)
}
