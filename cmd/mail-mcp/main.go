// Mail MCP server provides IMAP and SMTP access through Model Context Protocol.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

type globalOptions struct {
	envFile    string
	configFile string
	logFile    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "mail-mcp",
		Short: "MCP server for reading, drafting and sending email over IMAP and SMTP",
		Long: `mail-mcp exposes a mailbox to AI assistants through Model Context Protocol.

Account settings are read from the environment (EMAIL_USER, EMAIL_PASSWORD,
IMAP_HOST, SMTP_HOST, ...), an optional .env file and an optional config file.
The password may also be stored in the OS keyring with "mail-mcp password".
IMAP_AUTH_TIMEOUT takes a duration ("10s") or plain milliseconds ("10000").
SMTP_TLS_VERIFY defaults to IMAP_TLS_VERIFY.`,
		Version:      version,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.envFile, "env-file", "", "Path to env file")
	flags.StringVar(&opts.configFile, "config", "", "Path to config file (yaml, toml or json)")
	flags.StringVar(&opts.logFile, "log-file", "", "Path to log file (stdio transport discards logs otherwise)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	serve := newServeCmd(opts)
	cmd.AddCommand(serve)
	cmd.AddCommand(newPasswordCmd(opts))

	// serve is the default command
	cmd.RunE = serve.RunE
	cmd.Flags().AddFlagSet(serve.Flags())

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
