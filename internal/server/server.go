package server

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tinybase/tinybase/internal/backend"
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("tinybase: Server closed")

// Server accepts client connections speaking the semicolon-terminated text
// protocol and executes statements against a shared backend. The backend
// serializes statements, so the engine stays single-threaded.
type Server struct {
	shutdownCh chan struct{}
	log        logrus.FieldLogger
}

// NewServer builds a server.
func NewServer(log logrus.FieldLogger) *Server {
	return &Server{
		shutdownCh: make(chan struct{}),
		log:        log,
	}
}

// Serve accepts connections until Shutdown.
func (s *Server) Serve(ln net.Listener, db *backend.Backend) error {
	for {
		conn, err := ln.Accept()

		select {
		case <-s.shutdownCh:
			return ErrServerClosed
		default:
		}

		if err != nil {
			s.log.WithError(err).Error("error accepting new connection")
			continue
		}

		go s.handle(conn, db)
	}
}

// Shutdown stops accepting connections.
func (s *Server) Shutdown() {
	close(s.shutdownCh)
}

// handle drives one client connection.
func (s *Server) handle(conn net.Conn, db *backend.Backend) {
	s.log.Infof("client connected remote: %v, local: %v", conn.RemoteAddr(), conn.LocalAddr())

	defer func() {
		conn.Close()
		s.log.Infof("client disconnected remote: %v, local: %v", conn.RemoteAddr(), conn.LocalAddr())
	}()

	output := bufio.NewWriter(conn)
	defer output.Flush()

	scanner := bufio.NewScanner(conn)
	scanner.Split(onSemicolon)

	for scanner.Scan() {
		select {
		case <-s.shutdownCh:
			return
		default:
		}

		text := strings.TrimSpace(scanner.Text())
		if len(text) == 0 {
			continue
		}

		result, err := db.Exec(text)
		if err != nil {
			s.log.WithError(err).Error("statement failed")
			fmt.Fprintf(output, "Error: %s\n", err)
			output.Flush()
			continue
		}

		for _, row := range result.Rows {
			fmt.Fprintln(output, strings.Join(row.Strings(), "|"))
		}
		output.Flush()

		if result.Exit {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		s.log.Errorf("connection error: %s", err)
	}
}

func onSemicolon(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == ';' {
			return i + 1, data[:i], nil
		}
	}

	if atEOF {
		return len(data), data, bufio.ErrFinalToken
	}

	return 0, nil, nil
}
