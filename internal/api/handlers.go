package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"unicode"

	"github.com/labstack/echo/v4"

	"github.com/thyholm1234/DOF.not/internal/logger"
	"github.com/thyholm1234/DOF.not/internal/preferences"
)

const maxUserIDLength = 128

// userParam returns the :user path parameter or a 400 error
func userParam(c echo.Context) (string, error) {
	id := strings.TrimSpace(c.Param("user"))
	if id == "" || len(id) > maxUserIDLength {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	valid := func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("-_.@", r)
	}
	if strings.IndexFunc(id, func(r rune) bool { return !valid(r) }) >= 0 {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	return id, nil
}

func (s *Server) storeContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), s.config.StoreTimeout)
}

func (s *Server) storeError(user, op string, err error) error {
	s.log.Error("preference store failed",
		logger.String("user", user),
		logger.String("operation", op),
		logger.Error(err))
	return echo.NewHTTPError(http.StatusServiceUnavailable, "preference store unavailable")
}

// getPrefs returns the stored region matrix, empty when none is stored
func (s *Server) getPrefs(c echo.Context) error {
	user, err := userParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := s.storeContext(c)
	defer cancel()

	m, err := preferences.LoadMatrix(ctx, s.store, user)
	if err != nil {
		return s.storeError(user, "load-prefs", err)
	}
	return c.JSON(http.StatusOK, m.Raw())
}

// putPrefs replaces the region matrix. Any invalid selection rejects the
// whole record.
func (s *Server) putPrefs(c echo.Context) error {
	user, err := userParam(c)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "preference record must map regions to selections")
	}
	m, err := preferences.ParseMatrix(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, cancel := s.storeContext(c)
	defer cancel()
	if err := preferences.SaveMatrix(ctx, s.store, user, m); err != nil {
		return s.storeError(user, "save-prefs", err)
	}
	return c.JSON(http.StatusOK, m.Raw())
}

// getOverrides returns the stored overrides in record form
func (s *Server) getOverrides(c echo.Context) error {
	user, err := userParam(c)
	if err != nil {
		return err
	}
	o, ok := preferences.LoadOverrides(c.Request().Context(), s.store, user, s.config.StoreTimeout)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "preference store unavailable")
	}
	return c.JSON(http.StatusOK, o.Record())
}

// putOverrides sanitizes and stores overrides; the stored form is echoed back
func (s *Server) putOverrides(c echo.Context) error {
	user, err := userParam(c)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	o, err := preferences.ParseOverrides(body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed override record")
	}

	ctx, cancel := s.storeContext(c)
	defer cancel()
	if err := preferences.SaveOverrides(ctx, s.store, user, o); err != nil {
		return s.storeError(user, "save-overrides", err)
	}
	return c.JSON(http.StatusOK, o.Record())
}
