package router

import (
	"github.com/oksasatya/go-cantina-online/internal/application"
	"github.com/oksasatya/go-cantina-online/internal/container"
	handlers "github.com/oksasatya/go-cantina-online/internal/interface/http"
	"github.com/oksasatya/go-cantina-online/internal/router/modules"
	"github.com/oksasatya/go-cantina-online/pkg/helpers"
	mailtpl "github.com/oksasatya/go-cantina-online/pkg/mailer/templates"
)

type Services struct {
	Auth    *application.AuthService
	Catalog *application.CatalogService
	Orders  *application.OrderService
}

func buildServices() Services {
	cfg := container.GetConfig()
	logger := container.GetLogger()
	store := container.GetStore()

	var searcher application.ProductSearcher
	if x := container.GetProductIndex(); x != nil {
		searcher = x
	}
	catalog := application.NewCatalogService(store, container.GetRedis(), searcher, cfg.CatalogCacheTTL, logger)

	brand := mailtpl.Brand{AppName: "Cantina Online", SupportURL: cfg.FrontendURL, MenuURL: cfg.FrontendURL}
	auth := application.NewAuthService(store, container.GetJWT(), container.GetPublisher(), logger, brand, cfg.ResetPasswordURL)

	return Services{
		Auth:    auth,
		Catalog: catalog,
		Orders:  application.NewOrderService(store, catalog, logger),
	}
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) Services {
	cfg := container.GetConfig()
	logger := container.GetLogger()
	jwt := container.GetJWT()
	rdb := container.GetRedis()
	svc := buildServices()

	cookies := helpers.NewCookie(cfg.CookieDomain, cfg.CookieSecure)
	r.AddRoot(modules.NewAuthModule(handlers.NewAuthHandler(svc.Auth, cookies, logger), jwt, rdb))
	r.Add(modules.NewCatalogModule(handlers.NewCatalogHandler(svc.Catalog)))
	r.Add(modules.NewOrderModule(handlers.NewOrderHandler(svc.Orders), jwt))
	r.Add(modules.NewHealthModule(handlers.NewHealthHandler(container.GetStore(), logger)))
	if cfg.DebugMetricsEnabled {
		r.AddRoot(modules.NewDebugModule(rdb))
	}
	return svc
}
