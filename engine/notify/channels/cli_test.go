package channels

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/fortitude/engine/models"
)

func TestCLI_RoutesByType(t *testing.T) {
	var out, errOut bytes.Buffer
	c := &CLI{Out: &out, Err: &errOut}

	require.NoError(t, c.Deliver(context.Background(), models.Notification{
		Type: models.NotifyInfo, Title: "t", Body: "b",
	}, models.Channel{}))
	require.NoError(t, c.Deliver(context.Background(), models.Notification{
		Type: models.NotifyError, Title: "bad", Body: "boom",
	}, models.Channel{}))

	assert.Contains(t, out.String(), "[Info] t: b")
	assert.Contains(t, errOut.String(), "[Error] bad: boom")
	assert.NotContains(t, out.String(), "\x1b[", "a non-TTY buffer should not receive color codes")
}

func TestFile_AppendsRFC3339Line(t *testing.T) {
	f := NewFile()
	defer f.Close()
	path := t.TempDir() + "/notifications.log"

	ts := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)
	require.NoError(t, f.Deliver(context.Background(), models.Notification{
		Type: models.NotifyWarning, Title: "disk low", Body: "85% used", Source: "monitor", CreatedAt: ts,
	}, models.Channel{Path: path}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	assert.Equal(t, "2026-03-04T10:30:00Z Warning [monitor] disk low — 85% used", line)
}
