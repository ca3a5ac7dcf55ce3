package container

import (
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-cantina-online/config"
	repo "github.com/oksasatya/go-cantina-online/internal/domain/repository"
	"github.com/oksasatya/go-cantina-online/internal/infrastructure/search"
	"github.com/oksasatya/go-cantina-online/pkg/helpers"
	"github.com/oksasatya/go-cantina-online/pkg/mailer"
)

// app-level container to share constructed components across packages
// Router can auto-wire modules from these singletons.
// Optional components (redis, rabbit, search) stay nil when not configured.

var (
	cfg         *config.Config
	logger      *logrus.Logger
	store       repo.Store
	redisClient *redis.Client

	jwtManager *helpers.JWTManager

	rabbitPub    *helpers.RabbitPublisher
	productIndex *search.ProductIndex
)

func SetConfig(c *config.Config) { cfg = c }
func GetConfig() *config.Config  { return cfg }
func SetLogger(l *logrus.Logger) { logger = l }
func GetLogger() *logrus.Logger  { return logger }
func SetStore(s repo.Store)      { store = s }
func GetStore() repo.Store       { return store }
func SetRedis(r *redis.Client)   { redisClient = r }

// GetRedis returns a nil interface when redis is not configured.
func GetRedis() redis.Cmdable {
	if redisClient == nil {
		return nil
	}
	return redisClient
}

func SetJWT(m *helpers.JWTManager) { jwtManager = m }
func GetJWT() *helpers.JWTManager  { return jwtManager }

func SetRabbitPub(p *helpers.RabbitPublisher) { rabbitPub = p }

// GetPublisher returns a nil interface when no email queue is configured.
func GetPublisher() mailer.Publisher {
	if rabbitPub == nil {
		return nil
	}
	return rabbitPub
}

func SetProductIndex(x *search.ProductIndex) { productIndex = x }
func GetProductIndex() *search.ProductIndex  { return productIndex }
