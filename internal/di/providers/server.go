package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/midasapp/midas-server/internal/api"
	"github.com/midasapp/midas-server/internal/config"
	"github.com/midasapp/midas-server/internal/logger"
	"github.com/midasapp/midas-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	api *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	defer h.api.Close()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts it in the background.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	services := &api.Services{
		Auth:     do.MustInvoke[*service.AuthService](i),
		Users:    do.MustInvoke[*service.UserService](i),
		Tags:     do.MustInvoke[*service.TagService](i),
		Projects: do.MustInvoke[*service.ProjectService](i),
		Tasks:    do.MustInvoke[*service.TaskService](i),
		Likes:    do.MustInvoke[*service.LikeService](i),
	}

	handler := api.NewServer(storeHandle.Store, indexHandle.TagIndex, services, api.Options{
		CORSOrigins:           cfg.Server.CORSOrigins,
		AuthRequestsPerMinute: cfg.Auth.RequestsPerMinute,
		AuthBurst:             cfg.Auth.Burst,
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv, api: handler}, nil
}
