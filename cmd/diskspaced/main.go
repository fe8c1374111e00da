package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/timfallmk/disk-space-bridge/internal/channel"
	"github.com/timfallmk/disk-space-bridge/internal/config"
	"github.com/timfallmk/disk-space-bridge/internal/daemon"
	"github.com/timfallmk/disk-space-bridge/internal/diskspace"
	"github.com/timfallmk/disk-space-bridge/internal/logging"
)

const (
	name = "diskspaced"
)

var (
	// These are set by the build system via -ldflags.
	version   = "dev"     // Set via -X main.version=...
	buildTime = "unknown" // Set via -X main.buildTime=...
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	showVersion = flag.Bool("version", false, "Show version information")
	showHelp    = flag.Bool("help", false, "Show help information")
	logLevel    = flag.String("log-level", "", "Set log level (debug, info, warn, error)")
	transport   = flag.String("transport", "", "Bridge transport (stdio, http, serial)")
	listenAddr  = flag.String("listen", "", "Listen address for the http transport")
	serialPort  = flag.String("port", "", "Serial port for the serial transport")
)

// Exit codes of the query command.
const (
	exitError          = 1
	exitNotImplemented = 2
)

func main() {
	flag.Parse()

	if *showHelp {
		showUsage()
		os.Exit(0)
	}

	if *showVersion {
		fmt.Printf("%s version %s\n", name, version)
		fmt.Printf("Build time: %s\n", buildTime)
		os.Exit(0)
	}

	cfg, path, err := loadConfiguration()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	applyCommandLineOverrides(cfg)

	if flag.NArg() < 1 {
		showUsage()
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	args := flag.Args()
	command := args[0]

	switch command {
	case "config":
		showConfiguration(os.Stdout, cfg, path)
		return
	case "query":
		os.Exit(runQuery(os.Stdout, cfg, args[1:]))
	}

	opts := []daemon.Option{}
	if path != "" {
		opts = append(opts, daemon.WithConfigPath(path))
	}

	service, err := daemon.NewService(cfg, opts...)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}

	switch command {
	case "run":
		if err := service.Run(); err != nil {
			log.Fatalf("Failed to run service: %v", err)
		}
	case "install":
		status, err := service.Install()
		if err != nil {
			log.Fatalf("Failed to install service: %v", err)
		}

		fmt.Println(status)
	case "remove", "uninstall":
		status, err := service.Remove()
		if err != nil {
			log.Fatalf("Failed to remove service: %v", err)
		}

		fmt.Println(status)
	case "start":
		status, err := service.StartService()
		if err != nil {
			log.Fatalf("Failed to start service: %v", err)
		}

		fmt.Println(status)
	case "stop":
		status, err := service.StopService()
		if err != nil {
			log.Fatalf("Failed to stop service: %v", err)
		}

		fmt.Println(status)
	case "status":
		status, err := service.Status()
		if err != nil {
			log.Fatalf("Failed to get service status: %v", err)
		}

		fmt.Println(status)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		showUsage()
		os.Exit(1)
	}
}

// loadConfiguration returns the config and the file it came from, which is
// empty when defaults are used.
func loadConfiguration() (*config.Config, string, error) {
	if *configPath != "" {
		cfg, err := config.ReadConfig(*configPath)
		return cfg, *configPath, err
	}

	configFile, err := config.FindConfig()
	if err != nil {
		log.Printf("No configuration file found, using defaults")

		cfg := config.DefaultConfig()
		if err := cfg.ApplyEnv(); err != nil {
			return nil, "", err
		}

		return cfg, "", nil
	}

	cfg, err := config.ReadConfig(configFile)
	return cfg, configFile, err
}

func applyCommandLineOverrides(cfg *config.Config) {
	if *transport != "" {
		cfg.Bridge.Transport = *transport
	}

	if *listenAddr != "" {
		cfg.Bridge.Listen = *listenAddr
	}

	if *serialPort != "" {
		cfg.Bridge.SerialPort = *serialPort
	}

	if *logLevel != "" {
		cfg.Logging.Level = logging.LogLevel(*logLevel)
	}
}

// runQuery answers a single call the same way the bridge would and writes the
// response envelope to w. It returns the process exit code.
func runQuery(w io.Writer, cfg *config.Config, args []string) int {
	return query(w, cfg, diskspace.NewAdapter(), args)
}

func query(w io.Writer, cfg *config.Config, adapter *diskspace.Adapter, args []string) int {
	if len(args) < 1 {
		fmt.Fprintf(w, "usage: %s query <method> [path]\nmethods: %s\n", name, strings.Join(diskspace.Names(), ", "))
		return exitError
	}

	logger := logging.NewLoggerWithWriter(cfg.Logging, os.Stderr)

	messenger := channel.NewMessenger(cfg.Bridge.Channel)
	diskspace.NewPlugin(adapter, logger, nil).RegisterWith(messenger, cfg.Bridge.Channel)

	req := channel.Request{ID: "query", Method: args[0]}
	if len(args) > 1 {
		req.Args = map[string]any{"path": args[1]}
	}

	resp := messenger.Invoke(req)

	data, err := channel.EncodeResponse(resp)
	if err != nil {
		fmt.Fprintf(w, "failed to encode response: %v\n", err)
		return exitError
	}
	_, _ = w.Write(data)

	switch resp.Status() {
	case channel.StatusError:
		return exitError
	case channel.StatusNotImplemented:
		return exitNotImplemented
	default:
		return 0
	}
}

func showUsage() {
	fmt.Printf(`%s - Disk space method-channel bridge

USAGE:
    %s [OPTIONS] <COMMAND>

COMMANDS:
    run                    Run the bridge in foreground mode
    install                Install the bridge as a system service
    remove, uninstall      Remove the bridge service
    start                  Start the installed bridge service
    stop                   Stop the running bridge service
    status                 Show the bridge service status
    config                 Show current configuration
    query <method> [path]  Answer one call and print the response

OPTIONS:
    -config string      Path to configuration file
    -transport string   Bridge transport (stdio, http, serial)
    -listen string      Listen address for the http transport
    -port string        Serial port for the serial transport
    -log-level string   Set log level (debug, info, warn, error)
    -version            Show version information
    -help               Show this help message

METHODS:
    %s

EXAMPLES:
    %s run                                  # Serve on stdin/stdout
    %s -transport http -listen :7412 run    # Serve over HTTP
    %s query getFreeDiskSpaceForPath 'C:\'  # One-off query
    %s install                              # Install as system service

CONFIGURATION:
    The bridge looks for configuration files in the following order:
    1. Path specified by -config flag
%s
    Environment variables prefixed with %s_ override file settings.

`, name, name, strings.Join(diskspace.Names(), "\n    "), name, name, name, name, configSearchList(), config.EnvPrefix)
}

func configSearchList() string {
	var b strings.Builder
	for i, p := range config.GetConfigPaths() {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "    %d. %s", i+2, p)
	}
	return b.String()
}

func showConfiguration(w io.Writer, cfg *config.Config, path string) {
	source := path
	if source == "" {
		source = "(defaults)"
	}

	fmt.Fprintf(w, "Current Configuration: %s\n", source)
	fmt.Fprintf(w, "  Bridge:\n")
	fmt.Fprintf(w, "    Channel: %s\n", cfg.Bridge.Channel)
	fmt.Fprintf(w, "    Transport: %s\n", cfg.Bridge.Transport)
	fmt.Fprintf(w, "    Listen: %s\n", cfg.Bridge.Listen)
	fmt.Fprintf(w, "    Serial Port: %s\n", orAuto(cfg.Bridge.SerialPort))
	fmt.Fprintf(w, "    Baud Rate: %d\n", cfg.Bridge.BaudRate)
	fmt.Fprintf(w, "    Request Timeout: %s\n", cfg.Bridge.RequestTimeout)
	fmt.Fprintf(w, "  Health:\n")
	fmt.Fprintf(w, "    Enabled: %t\n", cfg.Health.Enabled)
	fmt.Fprintf(w, "    Interval: %s\n", cfg.Health.Interval)
	fmt.Fprintf(w, "    Path: %s\n", orAuto(cfg.Health.Path))
	fmt.Fprintf(w, "    Min Free: %.0f MB\n", cfg.Health.MinFreeMB)
	fmt.Fprintf(w, "    Max Memory: %d MB\n", cfg.Health.MaxMemoryMB)
	fmt.Fprintf(w, "  Metrics:\n")
	fmt.Fprintf(w, "    Flush Interval: %s\n", cfg.Metrics.FlushInterval)
	fmt.Fprintf(w, "  Logging:\n")
	fmt.Fprintf(w, "    Level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(w, "    Format: %s\n", cfg.Logging.Format)
	fmt.Fprintf(w, "    Output: %s\n", cfg.Logging.Output)
}

func orAuto(s string) string {
	if s == "" {
		return "(auto)"
	}
	return s
}
