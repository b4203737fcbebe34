package cmd

import (
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/armaan1620/tsh/internal/config"
	"github.com/armaan1620/tsh/internal/errors"
	"github.com/armaan1620/tsh/internal/logger"
	"github.com/armaan1620/tsh/internal/repl"
	"github.com/armaan1620/tsh/internal/shell"
	"github.com/armaan1620/tsh/internal/term"
)

type options struct {
	cfgPath  string
	verbose  bool
	noPrompt bool

	exitCode int
}

func (o *options) loadConfig(cmd *cobra.Command) (*config.Configuration, error) {
	if o.cfgPath == "" {
		return config.Default(), nil
	}
	configuration, err := config.Load(o.cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		cmd.PrintErrln("Couldn't load config:", o.cfgPath, "does not exist")
	}
	return configuration, err
}

// NewRootCommand returns the tsh command.
func NewRootCommand() (*cobra.Command, *int) {
	o := &options{}
	rootCmd := &cobra.Command{
		Use:   "tsh",
		Short: "A tiny shell with job control",
		Long: `tsh runs command lines with pipes, < and > redirection and
background jobs (&). Jobs are managed with the jobs, bg and fg builtins;
Ctrl-C and Ctrl-Z go to the foreground job.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd)
		},
	}

	rootCmd.Flags().StringVar(&o.cfgPath, "config", "", "config file, or a directory holding config.yaml")
	rootCmd.Flags().BoolVarP(&o.verbose, "verbose", "v", false, "print additional diagnostic information")
	rootCmd.Flags().BoolVarP(&o.noPrompt, "no-prompt", "p", false, "do not emit a command prompt")
	return rootCmd, &o.exitCode
}

func (o *options) run(cmd *cobra.Command) error {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return err
	}
	if o.verbose {
		cfg.Verbose = true
	}
	if o.noPrompt {
		cfg.EmitPrompt = false
	}

	l := logger.New(cfg.Verbose, cfg.Color && term.IsTerminal())
	l.Stdout = cmd.OutOrStdout()
	l.Stderr = cmd.ErrOrStderr()
	log := config.NewLogger(cfg, cmd.ErrOrStderr())

	sh := shell.New(cfg, l, log)
	if err := sh.Start(cmd.Context()); err != nil {
		return fmt.Errorf("installing signal handlers: %w", err)
	}
	defer sh.Close()

	r := &repl.REPL{
		Shell:      sh,
		Logger:     l,
		Input:      cmd.InOrStdin(),
		Prompt:     cfg.Prompt,
		EmitPrompt: cfg.EmitPrompt,
	}
	o.exitCode = r.Run(cmd.Context())
	return nil
}

// Execute runs the tsh command and returns the process exit code.
// This is called by main.main().
func Execute() int {
	rootCmd, exitCode := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln(err)
		return errors.Code(err)
	}
	return *exitCode
}
