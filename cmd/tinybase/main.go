package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/mitchellh/cli"

	"github.com/tinybase/tinybase/cmd/tinybase/command"
)

func main() {
	args := os.Args[1:]
	switch {
	case len(args) == 0:
		args = []string{"shell"}
	case args[0] != "shell" && args[0] != "listen" && args[0] != "help" &&
		args[0] != "-h" && args[0] != "--help" && args[0] != "-v" && args[0] != "--version":
		args = append([]string{"shell"}, args...)
	}

	commands := map[string]cli.CommandFactory{
		"shell": func() (cli.Command, error) {
			return &command.ShellCommand{}, nil
		},
		"listen": func() (cli.Command, error) {
			return &command.ListenCommand{
				ShutDownCh: makeShutdownCh(),
			}, nil
		},
	}

	tinyCLI := &cli.CLI{
		Args:     args,
		Commands: commands,
		HelpFunc: cli.BasicHelpFunc("tinybase"),
	}

	exitCode, err := tinyCLI.Run()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		os.Exit(1)
	}

	os.Exit(exitCode)
}

func makeShutdownCh() <-chan struct{} {
	shutdownCh := make(chan struct{})
	signalCh := make(chan os.Signal, 1)

	signal.Notify(signalCh, os.Interrupt)

	go func() {
		defer close(shutdownCh)
		<-signalCh
	}()

	return shutdownCh
}
