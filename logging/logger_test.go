package logging_test

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/omni/job-relay/logging"
)

func TestLoggerFromContext(t *testing.T) {
	t.Parallel()

	require.Equal(t, logrus.StandardLogger(), logging.LoggerFromContext(context.Background()))

	logger := logging.New().WithField("service", "test")
	ctx := logging.WithLogger(context.Background(), logger)
	require.Equal(t, logger, logging.LoggerFromContext(ctx))
}
