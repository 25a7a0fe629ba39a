package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/craftops/craftwatch/internal/logging"
	"github.com/craftops/craftwatch/internal/properties"
	"github.com/craftops/craftwatch/internal/rcon"
)

// CreateRconCmd creates the one-shot rcon command. It reads the RCON
// endpoint from server.properties, connects once, runs the command and
// prints the reply.
func CreateRconCmd() *cobra.Command {
	var propertiesFile string
	var host string
	var port int
	var password string
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "rcon <command...>",
		Short: "Run a console command over RCON",
		Long: `Connects to the game server's RCON port, authenticates and runs the given ` +
			`console command. The endpoint is read from server.properties unless ` +
			`overridden with flags.`,
		Args: cobra.MinimumNArgs(1),
		Run: func(command *cobra.Command, args []string) {
			loggingConfig := logging.Config{
				Level:  "warn",
				Format: "text",
			}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("cli")

			endpoint := rcon.Endpoint{Host: host, Port: port, Password: password}
			if password == "" {
				props, err := properties.Load(propertiesFile)
				if err != nil {
					logger.Error("Failed to read server.properties", "error", err, "path", propertiesFile)
					os.Exit(1)
				}
				if !props.RconEnabled() {
					logger.Error("RCON is disabled in server.properties", "path", propertiesFile)
					os.Exit(1)
				}
				endpoint.Port = props.RconPort()
				endpoint.Password = props.RconPassword()
			}

			manager := rcon.NewManager(nil)
			defer manager.DisconnectAll()

			result := manager.ExecuteCommand(endpoint, strings.Join(args, " "))
			if result.Err != nil {
				logger.Error("Command failed", "error", result.Err)
				os.Exit(1)
			}
			if result.Response != "" {
				fmt.Println(result.Response)
			}
			if !result.Succeeded() {
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVar(&propertiesFile, "properties", "server.properties", "Path to server.properties")
	cmd.Flags().StringVar(&host, "host", "localhost", "RCON host")
	cmd.Flags().IntVar(&port, "port", 25575, "RCON port (overridden by server.properties unless --password is set)")
	cmd.Flags().StringVar(&password, "password", "", "RCON password (skips reading server.properties)")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}
