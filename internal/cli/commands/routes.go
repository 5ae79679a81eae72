package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ark7/a7router/internal/cli/ui"
	"github.com/ark7/a7router/internal/demo"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRoutesCommand creates the routes command
func NewRoutesCommand(opts *globalOptions) *cobra.Command {
	var match string

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the compiled route table",
		Long: `Compile the demo controllers and print every route with its handler name.

With --match, print the methods routed for one path instead.

Examples:
  a7router routes
  a7router routes --match /api/pets/42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			// the route table does not depend on the redis backends
			cfg.RateLimit.Enabled = false
			cfg.Cache.Enabled = false

			a, err := newApp(cfg, zap.NewNop())
			if err != nil {
				return err
			}
			defer a.close()

			rt, err := demo.Router(a.registry)
			if err != nil {
				return err
			}
			routes := rt.GetRoutes()

			out := cmd.OutOrStdout()
			if match != "" {
				allowed := rt.Allowed(match)
				if len(allowed) == 0 {
					patterns := make([]string, len(routes))
					for i, info := range routes {
						patterns[i] = info.Pattern
					}
					ui.WriteError(cmd.ErrOrStderr(), ui.ErrorOptions{
						Context:      "no route",
						Problem:      fmt.Sprintf("No route matches %s.", match),
						Suggestions:  ui.FindSimilar(match, patterns, nil),
						HelpCommands: []string{"List routes: a7router routes"},
						NoColor:      color.NoColor,
					})
					return fmt.Errorf("no route matches %s", match)
				}
				fmt.Fprintf(out, "%s %s\n", match, strings.Join(allowed, ", "))
				return nil
			}

			sort.SliceStable(routes, func(i, j int) bool {
				if routes[i].Pattern == routes[j].Pattern {
					return routes[i].Method < routes[j].Method
				}
				return routes[i].Pattern < routes[j].Pattern
			})

			table := ui.NewTable(out, []string{"METHOD", "PATTERN", "HANDLER"}, &ui.TableOptions{
				NoColor: color.NoColor,
				Style: func(col int, cell string) *color.Color {
					if col == 0 {
						return ui.MethodColor(cell)
					}
					return nil
				},
			})
			for _, info := range routes {
				table.AddRow(info.Method, info.Pattern, info.Name)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&match, "match", "", "Print the methods routed for this path")

	return cmd
}
