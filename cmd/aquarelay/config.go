package aquarelay

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"go.aquarelay.dev/example/pkg/relay/config"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Output default configuration file",
		Description: `Output the default configuration file to stdout or a file.
You can redirect to a file or use the --write flag:

	aquarelay config > config.yml
	aquarelay config --write              # Writes to config.yml`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "write",
				Aliases: []string{"w"},
				Usage:   "Write config to config.yml instead of stdout",
			},
		},
		Action: func(c *cli.Context) error {
			configBytes, err := yaml.Marshal(config.DefaultConfig)
			if err != nil {
				return cli.Exit(fmt.Errorf("error encoding default config: %w", err), 1)
			}

			if c.Bool("write") {
				outputFile := "config.yml"
				if err = os.WriteFile(outputFile, configBytes, 0644); err != nil {
					return cli.Exit(fmt.Errorf("error writing config to %q: %w", outputFile, err), 1)
				}
				_, _ = fmt.Fprintf(c.App.Writer, "Configuration written to %s\n", outputFile)
				return nil
			}

			if _, err = c.App.Writer.Write(configBytes); err != nil {
				return cli.Exit(fmt.Errorf("error writing config: %w", err), 1)
			}
			return nil
		},
	}
}
