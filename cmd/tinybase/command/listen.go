package command

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/tinybase/tinybase/internal/backend"
	"github.com/tinybase/tinybase/internal/server"
)

// ListenCommand serves the semicolon text protocol over TCP.
type ListenCommand struct {
	ShutDownCh <-chan struct{}
}

func (c *ListenCommand) Help() string {
	helpText := `
Usage: tinybase listen [options]

Options:

	-config=""	Database configuration file
	-addr=""	Listen address (overrides config)
`

	return strings.TrimSpace(helpText)
}

func (c *ListenCommand) Synopsis() string {
	return "Accepts client connections to interact with the database"
}

func (c *ListenCommand) Run(args []string) int {
	var configPath string
	var addr string

	cmdFlags := flag.NewFlagSet("listen", flag.ExitOnError)
	cmdFlags.StringVar(&configPath, "config", "", "config file")
	cmdFlags.StringVar(&addr, "addr", "", "listen address")

	if err := cmdFlags.Parse(args); err != nil {
		return 1
	}

	config, err := loadConfig(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err.Error())
		return 1
	}
	if addr != "" {
		config.Addr = addr
	}

	logger := newLogger(config.LogLevel)

	db, err := backend.Start(logger, config)
	if err != nil {
		logger.WithError(err).Error("failed to start database engine")
		return 1
	}
	defer db.Close()

	ln, err := net.Listen("tcp", config.Addr)
	if err != nil {
		logger.WithError(err).Errorf("failed to listen on %s", config.Addr)
		return 1
	}
	defer ln.Close()

	logger.Infof("listening on %s", config.Addr)

	srv := server.NewServer(logger)

	go func() {
		<-c.ShutDownCh
		srv.Shutdown()
		ln.Close()
	}()

	if err := srv.Serve(ln, db); err != nil && err != server.ErrServerClosed {
		return 1
	}

	return 0
}
