package api

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	echolog "github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thyholm1234/DOF.not/internal/logger"
)

func TestEchoLoggerLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := newEchoLogger(logger.NewSlogLogger(&buf, logger.LogLevelDebug, nil))
	assert.Equal(t, echolog.DEBUG, l.Level())

	l.SetLevel(echolog.WARN)
	l.Debug("dropped debug")
	l.Infof("dropped %s", "info")
	l.Warnf("kept %d", 1)
	l.Errorj(echolog.JSON{"region": "fyn"})
	l.Print("print ignores level")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept 1")
	assert.Contains(t, out, `"region":"fyn"`)
	assert.Contains(t, out, "print ignores level")
}

func TestEchoLoggerPanics(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := newEchoLogger(logger.NewSlogLogger(&buf, logger.LogLevelDebug, nil))
	assert.PanicsWithValue(t, "listener closed", func() { l.Fatal("listener closed") })
	assert.Contains(t, buf.String(), "listener closed")
}

func TestRecoveredPanicIsLogged(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := newTestServer(t, nil, WithLogger(logger.NewSlogLogger(&buf, logger.LogLevelDebug, nil)))
	s.echo.GET("/boom", func(echo.Context) error { panic("handler exploded") })

	rec := do(t, s, http.MethodGet, "/boom", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "handler exploded")
}
