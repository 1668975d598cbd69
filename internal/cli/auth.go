package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steemit/bulletin/internal/models"
)

var registerCmd = &cobra.Command{
	Use:   "register <username> <email> <password>",
	Short: "Create an account and print its token",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiClient.Register(cmd.Context(), models.RegisterRequest{
			Username: args[0],
			Email:    args[1],
			Password: args[2],
		})
		if err != nil {
			return err
		}
		printToken(cmd, resp)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <email> <password>",
	Short: "Sign in and print a token",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiClient.Login(cmd.Context(), models.LoginRequest{Email: args[0], Password: args[1]})
		if err != nil {
			return err
		}
		printToken(cmd, resp)
		return nil
	},
}

func printToken(cmd *cobra.Command, resp *models.AuthResponse) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (signed in as %s)\n", resp.Message, resp.User.Username)
	fmt.Fprintf(out, "export BOARD_API_TOKEN=%s\n", resp.Token)
}

func init() {
	RootCmd.AddCommand(registerCmd, loginCmd)
}
