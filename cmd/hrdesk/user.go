package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hrdesk/hrdesk/internal/models"
	"github.com/hrdesk/hrdesk/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	userFirst   string
	userMiddle  string
	userSurname string
	userEmail   string
	userRole    int
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage portal users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user; the password is read from the terminal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(cmd, "Password: ")
		if err != nil {
			return err
		}
		confirm := password
		if term.IsTerminal(int(os.Stdin.Fd())) {
			if confirm, err = readPassword(cmd, "Confirm password: "); err != nil {
				return err
			}
		}

		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		user, err := app.UserService.Create(cmd.Context(), models.SystemActor, service.UserRequest{
			FirstName:       userFirst,
			MiddleName:      userMiddle,
			Surname:         userSurname,
			Email:           userEmail,
			RoleID:          userRole,
			Password:        password,
			ConfirmPassword: confirm,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (id %d)\n", user.Username, user.ID)
		return nil
	},
}

func init() {
	userCreateCmd.Flags().StringVar(&userFirst, "first", "", "First name (required)")
	userCreateCmd.Flags().StringVar(&userMiddle, "middle", "", "Middle name")
	userCreateCmd.Flags().StringVar(&userSurname, "surname", "", "Surname (required)")
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "Email address (required)")
	userCreateCmd.Flags().IntVar(&userRole, "role", 0, "Role id (0 for none)")
	userCreateCmd.MarkFlagRequired("first")
	userCreateCmd.MarkFlagRequired("surname")
	userCreateCmd.MarkFlagRequired("email")

	userCmd.AddCommand(userCreateCmd)
}

// readPassword prompts on a terminal, or reads one line from a pipe.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		passBytes, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(passBytes), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
