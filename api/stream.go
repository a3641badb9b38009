package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

var keepAliveInterval = 30 * time.Second

// streamTasks pushes the owner's view as server-sent events: once on connect
// and again after every change to the task list.
func streamTasks(stores Stores, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if token := c.QueryParam("token"); header == "" && token != "" {
			header = bearerPrefix + token
		}
		owner, err := auth.UserIDFromAuthHeader(header)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		ctx := c.Request().Context()
		store, err := stores.Get(ctx, owner)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to load tasks")
		}
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		res := c.Response()
		res.Header().Set(echo.HeaderContentType, "text/event-stream")
		res.Header().Set(echo.HeaderCacheControl, "no-cache")
		res.Header().Set(echo.HeaderConnection, "keep-alive")
		res.Header().Set("X-Accel-Buffering", "no")
		res.WriteHeader(http.StatusOK)

		updates, cancel := store.Subscribe()
		defer cancel()
		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		q := queryFromRequest(c)
		entry := logger.WithField("owner", owner)
		entry.Debug("stream opened")
		defer entry.Debug("stream closed")
		for {
			data, err := sonic.Marshal(store.View(q))
			if err != nil {
				entry.WithError(err).Error("encode view")
				return nil
			}
			if err := writeEvent(res, data); err != nil {
				return nil
			}
			flusher.Flush()
			if !waitForUpdate(ctx, updates, ticker.C, res, flusher) {
				return nil
			}
		}
	}
}

func writeEvent(w io.Writer, data []byte) error {
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n\n"))
	return err
}

// waitForUpdate blocks until the store changes, writing keepalive comments
// meanwhile. It returns false once the client is gone.
func waitForUpdate(ctx context.Context, updates <-chan struct{}, tick <-chan time.Time, w io.Writer, f http.Flusher) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-updates:
			return true
		case <-tick:
			if _, err := w.Write([]byte(":keepalive\n\n")); err != nil {
				return false
			}
			f.Flush()
		}
	}
}
