package command

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tinybase/tinybase/internal/backend"
	"github.com/tinybase/tinybase/internal/shell"
)

// ShellCommand runs the interactive REPL, or executes a script file when one
// is given as an argument.
type ShellCommand struct{}

func (c *ShellCommand) Help() string {
	helpText := `
Usage: tinybase shell [options] [script]

Reads semicolon-terminated statements from standard input, or silently from
the script file when one is given.

Options:

	-config=""	Database configuration file
	-data=""	Data directory (overrides config)
`

	return strings.TrimSpace(helpText)
}

func (c *ShellCommand) Synopsis() string {
	return "Starts the interactive SQL shell"
}

func (c *ShellCommand) Run(args []string) int {
	var configPath string
	var dataDir string

	cmdFlags := flag.NewFlagSet("shell", flag.ExitOnError)
	cmdFlags.StringVar(&configPath, "config", "", "config file")
	cmdFlags.StringVar(&dataDir, "data", "", "data directory")

	if err := cmdFlags.Parse(args); err != nil {
		return 1
	}

	config, err := loadConfig(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err.Error())
		return 1
	}
	if dataDir != "" {
		config.DataDir = dataDir
	}

	logger := newLogger(config.LogLevel)

	db, err := backend.Start(logger, config)
	if err != nil {
		logger.WithError(err).Error("failed to start database engine")
		return 1
	}
	defer db.Close()

	input := os.Stdin
	interactive := true

	if script := cmdFlags.Arg(0); script != "" {
		file, err := os.Open(script)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to open file %s\n", script)
			return 1
		}
		defer file.Close()
		input = file
		interactive = false
	}

	repl := shell.New(db, input, os.Stdout, os.Stderr, interactive)
	if err := repl.Run(); err != nil {
		logger.WithError(err).Error("shell error")
		return 1
	}

	return 0
}
