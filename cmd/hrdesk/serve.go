package main

import (
	"github.com/hrdesk/hrdesk/internal/server"
	"github.com/spf13/cobra"
)

var servePort int

// @title hrdesk API
// @version 1.0
// @description HR portal API: captcha login, role manager with recycle bin, user manager
// @host localhost:8000
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hrdesk server",
	Long: `Start the hrdesk HTTP API.

Environment variables:
  HRDESK_SERVER_PORT         Server port (default: 8000)
  HRDESK_DATABASE_DRIVER     Database driver: sqlite, postgres
  HRDESK_DATABASE_DSN        Database connection string
  HRDESK_STORAGE_TYPE        Role storage: memory, file, database, valkey
  HRDESK_AUTH_JWT_SECRET     JWT signing secret
  HRDESK_ROLES_ON_DELETE     What deleting a role does to its users: nullify, block
  ADMIN_USERNAME             Bootstrap admin username (first.surname)
  ADMIN_PASSWORD             Bootstrap admin password`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.RunWithSignalHandling(server.Config{
			Port:    servePort,
			Version: Version,
		})
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (overrides config)")
}
