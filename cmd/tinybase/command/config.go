package command

import (
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/tinybase/tinybase/internal/backend"
)

// defaultConfig is used when no config file is given.
func defaultConfig() backend.Config {
	return backend.Config{
		DataDir:  "data",
		Addr:     ":8619",
		LogLevel: "info",
	}
}

// loadConfig reads a yaml config file over the defaults.
func loadConfig(path string) (backend.Config, error) {
	config := defaultConfig()
	if path == "" {
		return config, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return config, err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return config, err
	}
	return config, nil
}

// newLogger builds the process logger at the configured level.
func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	return logger
}
