package aquarelay

import (
	"fmt"
	"strings"

	"github.com/gookit/color"
	"github.com/urfave/cli/v2"

	"go.aquarelay.dev/example/pkg/relay/plugin"
)

func pluginsCommand() *cli.Command {
	return &cli.Command{
		Name:  "plugins",
		Usage: "List the plugins compiled into this binary",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("no-color") {
				color.Disable()
			}
			w := c.App.Writer
			if len(plugin.Plugins) == 0 {
				_, _ = fmt.Fprintln(w, "No plugins registered.")
				return nil
			}
			_, _ = fmt.Fprintf(w, "Plugins (%d):\n", len(plugin.Plugins))
			for _, reg := range plugin.Plugins {
				d := reg.Description
				line := "  - " + color.Green.Sprint(d.FullName())
				if len(d.Authors) != 0 {
					line += " by " + strings.Join(d.Authors, ", ")
				}
				if d.Description != "" {
					line += ": " + d.Description
				}
				_, _ = fmt.Fprintln(w, line)
			}
			return nil
		},
	}
}
