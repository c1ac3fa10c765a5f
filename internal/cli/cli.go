// Package cli provides the command line interface of autofactool.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/alecthomas/kong"
	"github.com/junioryono/scopedi"
	"github.com/junioryono/scopedi/examples/autofactool"
	"gopkg.in/yaml.v3"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// CLI is the root command configuration with subcommands.
type CLI struct {
	LogLevel string           `kong:"short='l',help='Log level (debug, info, warn, error). Overrides the config file.'"`
	Config   string           `kong:"short='c',type='path',help='YAML config file'"`
	Flag     bool             `kong:"help='Register the flagged SomeService'"`
	Run      RunCmd           `kong:"cmd,default='withargs',help='Resolve MainClass and run the entity query (default)'"`
	Describe DescribeCmd      `kong:"cmd,help='Describe the registrations'"`
	Version  kong.VersionFlag `kong:"short='v',help='Show version and exit.'"`
}

// Output carries the writers commands print to.
type Output struct {
	Stdout io.Writer
	Stderr io.Writer
}

// settings merges the config file and environment with the global flags.
func (c *CLI) settings() (Settings, error) {
	s, err := LoadSettings(c.Config)
	if err != nil {
		return Settings{}, err
	}

	if c.LogLevel != "" {
		if _, err := parseLogLevel(c.LogLevel); err != nil {
			return Settings{}, err
		}
		s.LogLevel = c.LogLevel
	}
	if c.Flag {
		s.Module.Flag = true
	}

	return s, nil
}

func (c *CLI) configure(ctx context.Context, out *Output) (*autofactool.App, error) {
	s, err := c.settings()
	if err != nil {
		return nil, err
	}

	level, _ := parseLogLevel(s.LogLevel)
	logger := slog.New(slog.NewTextHandler(out.Stderr, &slog.HandlerOptions{Level: level}))

	logger.Debug("configuring registry",
		"flag", s.Module.Flag,
		"greeting", s.Module.Greeting,
		"eager_singletons", s.EagerSingletons,
	)

	return autofactool.Configure(ctx, autofactool.Options{
		Flag:            s.Module.Flag,
		Greeting:        s.Module.Greeting,
		Logger:          logger,
		EagerSingletons: s.EagerSingletons,
	})
}

// RunCmd resolves MainClass and the entity query and prints their results.
type RunCmd struct {
	Name string `kong:"arg,optional,help='Only list entities whose name contains this text'"`
}

// Run executes the run command.
func (c *RunCmd) Run(cli *CLI, out *Output) (err error) {
	app, err := cli.configure(context.Background(), out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	main, err := app.Main()
	if err != nil {
		return err
	}
	fmt.Fprintln(out.Stdout, main.Do())

	entities, err := app.FindEntities(autofactool.FindCriterion{Name: c.Name})
	if err != nil {
		return err
	}
	for _, e := range entities {
		fmt.Fprintln(out.Stdout, e.Name)
	}

	return nil
}

// DescribeCmd prints the registrations or the dependency graph.
type DescribeCmd struct {
	Format string `kong:"short='f',enum='yaml,dot,text,adjacency',default='yaml',help='Output format'"`
}

// Run executes the describe command.
func (c *DescribeCmd) Run(cli *CLI, out *Output) (err error) {
	app, err := cli.configure(context.Background(), out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if c.Format != "yaml" {
		return app.Provider.WriteGraph(out.Stdout, scopedi.GraphFormat(c.Format))
	}

	regs := app.Provider.Registrations()
	summaries := make([]scopedi.RegistrationSummary, len(regs))
	for i, r := range regs {
		summaries[i] = r.Summary()
	}

	enc := yaml.NewEncoder(out.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"registrations": summaries}); err != nil {
		return fmt.Errorf("encoding registrations: %w", err)
	}
	return enc.Close()
}

// Run parses args and executes the selected command. Help and version
// output call exit with status 0.
func Run(args []string, stdout, stderr io.Writer, exit func(int)) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("autofactool"),
		kong.Description("Builds the sample registry, resolves MainClass and runs the entity query"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": fmt.Sprintf("%s (%s) released on %s", version, commit, date),
		},
		kong.Writers(stdout, stderr),
		kong.Exit(exit),
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	return kongCtx.Run(&cli, &Output{Stdout: stdout, Stderr: stderr})
}
