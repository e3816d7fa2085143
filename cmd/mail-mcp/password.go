package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hal9000y/mail-mcp/internal/config"
	"github.com/hal9000y/mail-mcp/internal/credential"
)

type secretWriter interface {
	Set(key, value string) error
}

func newPasswordCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "password [user]",
		Short: "Store the account password in the OS keyring",
		Long: `Read the account password from stdin and store it in the OS keyring.

The user defaults to EMAIL_USER. Once stored, EMAIL_PASSWORD may be left unset.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnvFile(global.envFile); err != nil {
				return err
			}

			user := config.NewViper().GetString("imap.user")
			if len(args) == 1 {
				user = args[0]
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Password for %s: ", user)
			return storePassword(credential.NewKeyring(config.KeyringService), user, cmd.InOrStdin())
		},
	}
}

func storePassword(store secretWriter, user string, in io.Reader) error {
	if user == "" {
		return errors.New("user is required: pass it as argument or set EMAIL_USER")
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading password failed: %w", err)
	}

	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("password must not be empty")
	}

	return store.Set(user, password)
}
