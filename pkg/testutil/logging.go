package testutil

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Packages whose tests import testutil log at trace level, but output is
// discarded unless the tests run verbosely or PINGER_TEST_LOG is set.
func init() {
	logrus.SetLevel(logrus.TraceLevel)

	if os.Getenv("PINGER_TEST_LOG") != "" {
		return
	}
	for _, arg := range os.Args {
		if arg == "-test.v=true" || arg == "-test.v" {
			return
		}
	}

	logrus.SetOutput(io.Discard)
}
