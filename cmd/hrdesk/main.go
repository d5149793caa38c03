package main

import (
	"os"

	"github.com/spf13/cobra"

	_ "github.com/hrdesk/hrdesk/docs" // Load swagger docs
)

// Version is set via ldflags at build time
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "hrdesk",
	Short: "hrdesk - HR portal server with role and user management",
	Long:  `hrdesk serves the HR portal API and carries a few admin commands that work directly on its database.`,
	Example: `  # Run the server
  hrdesk serve --port 8000

  # Inspect and export roles
  hrdesk roles list
  hrdesk roles export -o yaml

  # Create a user from the shell
  hrdesk user create --first Jane --surname Doe --email jane@example.com --role 1`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "server", Title: "Server Commands:"},
		&cobra.Group{ID: "admin", Title: "Admin Commands:"},
	)

	serveCmd.GroupID = "server"
	rolesCmd.GroupID = "admin"
	userCmd.GroupID = "admin"

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(rolesCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
