package api

import (
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/IDGHIM/TaskFlow/domain"
)

// Register wires up all API routes on the provided Echo instance. deduper
// may be nil, in which case idempotency keys are not checked.
func Register(e *echo.Echo, stores Stores, auth Authenticator, deduper Deduper, logger *log.Logger) {
	e.GET("/api/tasks", getTasks(stores, auth, logger))
	e.POST("/api/commands", postCommands(stores, auth, deduper, logger))
	e.GET("/api/edit", getEdit(stores, auth))
	e.GET("/api/stream", streamTasks(stores, auth, logger))
	e.GET("/healthz", healthz())
}

// RegisterMetrics exposes g on /metrics in the Prometheus text format.
func RegisterMetrics(e *echo.Echo, g prometheus.Gatherer) {
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func queryFromRequest(c echo.Context) domain.Query {
	return domain.Query{
		Filter: domain.ParseFilterMode(c.QueryParam("filter")),
		Search: c.QueryParam("search"),
	}
}

func getTasks(stores Stores, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := newRequestMetrics(c.Request().Context(), logger, "/api/tasks")
		c.SetRequest(c.Request().WithContext(ctx))
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		owner, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			return c.String(http.StatusUnauthorized, authErr.Error())
		}
		metrics.SetOwner(owner)

		store, storeErr := stores.Get(ctx, owner)
		if storeErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(storeErr)
			return c.String(http.StatusInternalServerError, "failed to load tasks")
		}

		view := store.View(queryFromRequest(c))
		metrics.Set("tasks_returned", len(view.Tasks))
		if err = c.JSON(http.StatusOK, view); err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func postCommands(stores Stores, auth Authenticator, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := newRequestMetrics(c.Request().Context(), logger, "/api/commands")
		c.SetRequest(c.Request().WithContext(ctx))
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		owner, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			return c.String(http.StatusUnauthorized, authErr.Error())
		}
		metrics.SetOwner(owner)

		lr := io.LimitReader(c.Request().Body, postCommandMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()

		wire := make([]wireCommand, 0, 4)
		if decErr := dec.Decode(&wire); decErr != nil {
			metrics.SetErrorStage("decode")
			return c.String(http.StatusBadRequest, "invalid body")
		}
		metrics.Set("commands_received", len(wire))

		// Validate the whole batch before applying any of it.
		cmds := make([]domain.Command, len(wire))
		for i, w := range wire {
			cmd, convErr := w.toDomain()
			if convErr != nil {
				metrics.SetErrorStage("validate")
				return c.JSON(http.StatusBadRequest, postCommandResponse{Error: convErr.Error()})
			}
			cmds[i] = cmd
		}

		store, storeErr := stores.Get(ctx, owner)
		if storeErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(storeErr)
			return c.String(http.StatusInternalServerError, "failed to load tasks")
		}

		keys := make([]string, len(wire))
		results := make([]commandResult, len(wire))
		applied := 0
		for i, w := range wire {
			key := w.IdempotencyKey
			if key == "" {
				key = uuid.NewString()
			}
			keys[i] = key
			results[i] = commandResult{IdempotencyKey: key, Type: w.Type}

			// A command that will not be applied leaves its key free for a retry.
			if cmds[i] == nil {
				continue
			}
			if deduper != nil && w.IdempotencyKey != "" {
				added, dedupErr := deduper.Add(ctx, owner, key)
				switch {
				case dedupErr != nil:
					logger.WithError(dedupErr).WithField("key", key).Warn("deduper unavailable; applying command")
				case !added:
					results[i].Duplicate = true
					continue
				}
			}
			if out := store.Dispatch(ctx, cmds[i]); out.Changed {
				results[i].Applied = true
				applied++
			}
		}
		metrics.Set("commands_applied", applied)

		counts := store.Counts()
		return c.JSON(http.StatusOK, postCommandResponse{IdempotencyKeys: keys, Results: results, Counts: &counts})
	}
}

func getEdit(stores Stores, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		store, err := stores.Get(c.Request().Context(), owner)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to load tasks")
		}
		return c.JSON(http.StatusOK, store.Snapshot().Edit)
	}
}
