package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/craftops/craftwatch/internal/properties"
)

// CreateValidateCmd creates the validate command. It checks that the
// server directory holds the artifacts a managed launch needs and that
// server.properties enables RCON.
func CreateValidateCmd() *cobra.Command {
	var workDir string
	var propertiesFile string
	var requiredFiles []string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the server directory before supervision",
		Long: `Checks that the working directory holds the files a managed launch needs ` +
			`and that server.properties enables RCON, so stop and console commands work.`,
		Run: func(command *cobra.Command, args []string) {
			problems := 0

			report := func(ok bool, format string, a ...any) {
				status := "ok"
				if !ok {
					status = "FAIL"
					problems++
				}
				fmt.Printf("%-4s %s\n", status, fmt.Sprintf(format, a...))
			}

			if info, err := os.Stat(workDir); err != nil || !info.IsDir() {
				report(false, "working directory %s", workDir)
				os.Exit(1)
			}
			report(true, "working directory %s", workDir)

			for _, name := range requiredFiles {
				path := name
				if !os.IsPathSeparator(path[0]) {
					path = workDir + string(os.PathSeparator) + name
				}
				_, err := os.Stat(path)
				report(err == nil, "required file %s", name)
			}

			propsPath := propertiesFile
			if !os.IsPathSeparator(propsPath[0]) {
				propsPath = workDir + string(os.PathSeparator) + propertiesFile
			}
			props, err := properties.Load(propsPath)
			if err != nil {
				report(false, "server.properties readable (%v)", err)
				os.Exit(1)
			}
			report(true, "server.properties readable")

			report(props.RconEnabled(), "enable-rcon=true")
			if props.RconEnabled() {
				report(props.RconPassword() != "", "rcon.password set")
				report(props.RconPort() > 0 && props.RconPort() < 65536, "rcon.port %d", props.RconPort())
			}

			if problems > 0 {
				fmt.Printf("\n%d problem(s) found\n", problems)
				os.Exit(1)
			}
			fmt.Println("\nserver directory looks good")
		},
	}

	cmd.Flags().StringVar(&workDir, "work-dir", ".", "Server working directory")
	cmd.Flags().StringVar(&propertiesFile, "properties", "server.properties", "Properties file, relative to the working directory")
	cmd.Flags().StringSliceVar(&requiredFiles, "required-file", []string{"server.jar"}, "Files that must exist before launch")

	return cmd
}
