package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTriggerRejectsUnknownJob(t *testing.T) {
	cli, err := NewJobsCLI("127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = cli.Close() }()

	_, err = cli.Trigger(context.Background(), "reports:rebuild")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported job")
}

func TestTriggerRequiresClient(t *testing.T) {
	var cli *JobsCLI
	_, err := cli.Trigger(context.Background(), "sessions:purge")
	require.Error(t, err)
}
