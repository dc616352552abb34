// control/logging.go
// Author: momentics <momentics@gmail.com>

package control

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogging configures the global zerolog logger from LogConfig.
func SetupLogging(c LogConfig) error {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)
	if c.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return nil
}
