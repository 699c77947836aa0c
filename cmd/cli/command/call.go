package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"stockhub/cmd/cli/authentication"
	"stockhub/internal/client"
	"stockhub/internal/protocol"
)

var (
	loginUser     string
	loginPassword string
	loginAdmin    bool
	rawOutput     bool
)

// callCmd logs in, sends one action and prints the reply
var callCmd = &cobra.Command{
	Use:   "call ACTION [OPTION...]",
	Short: "Send one action to the server",
	Long: `Log in, send ACTION with its options and print the reply.
ACTION is a name (GET_PRODUCT_LIST) or a 4 digit code (0301).
Without --user the login saved by "stockhub-cli login" is used.`,
	Example: `  stockhub-cli call GET_PRODUCT_LIST
  stockhub-cli call ADD_PRODUCT tea 2.50 10 --user alice --password secret1`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		action, err := resolveAction(args[0])
		if err != nil {
			return err
		}
		creds, err := credentials()
		if err != nil {
			return err
		}

		c, err := client.Dial(cmd.Context(), creds.Addr, timeout)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Login(creds.Login, creds.Password, creds.Admin); err != nil {
			return err
		}

		reply, err := c.Call(action, args[1:]...)
		var serr *client.ServerError
		if err != nil && !errors.As(err, &serr) {
			return err
		}
		printReply(cmd.OutOrStdout(), reply, rawOutput)
		if serr != nil {
			return fmt.Errorf("server refused %s", action)
		}
		return nil
	},
}

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List every action code",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		for _, a := range protocol.Actions() {
			if a.ServerOnly() {
				continue
			}
			fmt.Fprintf(w, "%s  %s\n", a.Code(), a)
		}
		return nil
	},
}

// resolveAction accepts an action name, case insensitive, or its code.
func resolveAction(arg string) (protocol.ActionCode, error) {
	if action, err := protocol.LookupAction(arg); err == nil {
		return action, nil
	}
	name := strings.ToUpper(arg)
	for _, a := range protocol.Actions() {
		if a.String() == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q, see stockhub-cli actions", arg)
}

// credentials prefers the flags and falls back to the keyring.
func credentials() (*authentication.StoredCredentials, error) {
	if loginUser != "" {
		return &authentication.StoredCredentials{
			Addr:     serverAddr,
			Login:    loginUser,
			Password: loginPassword,
			Admin:    loginAdmin,
		}, nil
	}
	creds, err := authentication.GetCredentials()
	if err != nil {
		return nil, err
	}
	if rootCmd.PersistentFlags().Changed("addr") || creds.Addr == "" {
		creds.Addr = serverAddr
	}
	return creds, nil
}

// printReply shows the action then one line per option, composite options split on ';'.
func printReply(w io.Writer, reply *protocol.Message, raw bool) {
	if raw {
		fmt.Fprintln(w, reply.String())
		return
	}
	head := color.New(color.FgGreen, color.Bold)
	if reply.IsError() {
		head = color.New(color.FgRed, color.Bold)
	}
	head.Fprintln(w, reply.Action().String())
	for i, opt := range reply.Options() {
		fields := protocol.SplitFields(opt)
		fmt.Fprintf(w, "  [%d] %s\n", i, strings.Join(fields, " | "))
	}
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check a login against the server and save it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginUser == "" || loginPassword == "" {
			return fmt.Errorf("--user and --password are required")
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		c, err := client.Dial(ctx, serverAddr, timeout)
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.Login(loginUser, loginPassword, loginAdmin); err != nil {
			return err
		}

		creds := &authentication.StoredCredentials{
			Addr:     serverAddr,
			Login:    loginUser,
			Password: loginPassword,
			Admin:    loginAdmin,
		}
		if err := authentication.StoreCredentials(creds); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "logged in as %s, credentials saved\n", loginUser)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved login",
	RunE: func(cmd *cobra.Command, args []string) error {
		return authentication.ClearCredentials()
	},
}

func addLoginFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&loginUser, "user", "u", "", "login")
	cmd.Flags().StringVarP(&loginPassword, "password", "p", "", "password")
	cmd.Flags().BoolVar(&loginAdmin, "admin", false, "log in as administrator")
}

func init() {
	addLoginFlags(callCmd)
	callCmd.Flags().BoolVar(&rawOutput, "raw", false, "print the reply as sent on the wire")
	addLoginFlags(loginCmd)

	rootCmd.AddCommand(callCmd, actionsCmd, loginCmd, logoutCmd)
}
