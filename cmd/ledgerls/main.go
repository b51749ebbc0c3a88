package main

import (
	"fmt"
	"os"

	"ledgerls/internal/config"
	"ledgerls/internal/server"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// Version will be set during the build process using ldflags
var Version = "(dev) v0.0.0"

var (
	logfile    string
	verbosity  int
	configPath string
	tcpAddr    string
	wsAddr     string
)

var rootCmd = &cobra.Command{
	Use:           "ledgerls",
	Short:         "Language server for beancount ledgers",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.SetVersionTemplate("ledgerls LSP server version {{.Version}}\n")
	flags := rootCmd.Flags()
	flags.StringVar(&logfile, "logfile", "", "path to log file (default stderr)")
	flags.IntVarP(&verbosity, "verbosity", "v", 1, "log verbosity")
	flags.StringVar(&configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&tcpAddr, "tcp", "", "listen for a client on this TCP address instead of stdio")
	flags.StringVar(&wsAddr, "websocket", "", "listen for a client on this websocket address instead of stdio")
	rootCmd.MarkFlagsMutuallyExclusive("tcp", "websocket")
}

func run(cmd *cobra.Command, args []string) error {
	if logfile != "" {
		commonlog.Configure(verbosity, &logfile)
	} else {
		commonlog.Configure(verbosity, nil)
	}

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.LoadFile(configPath); err != nil {
			return err
		}
	}

	lsp := server.NewServer(cfg, Version).LSP()
	switch {
	case tcpAddr != "":
		return lsp.RunTCP(tcpAddr)
	case wsAddr != "":
		return lsp.RunWebSocket(wsAddr)
	default:
		return lsp.RunStdio()
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
