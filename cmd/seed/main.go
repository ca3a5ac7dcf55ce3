package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-cantina-online/config"
	"github.com/oksasatya/go-cantina-online/internal/domain/entity"
	repo "github.com/oksasatya/go-cantina-online/internal/domain/repository"
	pginfra "github.com/oksasatya/go-cantina-online/internal/infrastructure/postgres"
	"github.com/oksasatya/go-cantina-online/internal/infrastructure/search"
	"github.com/oksasatya/go-cantina-online/pkg/helpers"
)

type seedProduct struct {
	Name     string
	Price    string
	Image    string
	Category string
}

var categories = []entity.Category{
	{Name: "Lanches", Slug: "lanches"},
	{Name: "Bebidas", Slug: "bebidas"},
	{Name: "Doces", Slug: "doces"},
	{Name: "Refeições", Slug: "refeicoes"},
}

const seedStock = 100

var menu = []seedProduct{
	{"Croissant de Chocolate", "9.90", "croissant-chocolate.png", "lanches"},
	{"Croissant de Queijo", "9.90", "croissante-queijo.png", "lanches"},
	{"Pão de batata", "9.90", "pao-batata.png", "lanches"},
	{"Pão de avelã", "9.90", "pao-avela.png", "lanches"},
	{"Torta de brócolis", "9.90", "torta-brocolis.png", "lanches"},
	{"Folheado de 4 queijos", "9.90", "folheado-4-queijos.png", "lanches"},
	{"Folheado de pizza", "9.90", "folheado-pizza.png", "lanches"},

	{"H2O", "6.00", "h2o.png", "bebidas"},
	{"Del Valle Uva (1L)", "6.00", "del-valle-uva.png", "bebidas"},
	{"Gatorade", "8.00", "gatorade.png", "bebidas"},
	{"Limoneto", "6.00", "limoneto.png", "bebidas"},
	{"Chá Leão Guaraná", "4.50", "cha-leao-guarana.png", "bebidas"},
	{"Guaraviton", "6.00", "guaraviton.png", "bebidas"},
	{"Toddynho", "5.00", "toddynho.png", "bebidas"},
	{"Água", "3.50", "agua.jpg", "bebidas"},

	{"Alfajor", "7.50", "alfajor.jpg", "doces"},
	{"Paçoca", "0.50", "pacoca.jpg", "doces"},
	{"Paçoca Caseira", "5.50", "pacoca2.jpg", "doces"},
	{"Pé de Moca", "3.50", "pedemoca.jpg", "doces"},
	{"Cookie", "6.50", "cookie.jpg", "doces"},
	{"Halls Morango", "3.00", "hallsmorango.jpg", "doces"},
	{"Halls Preto", "3.00", "hallspreto.jpg", "doces"},
	{"Pingo de Leite", "0.50", "pingo.jpg", "doces"},
}

const (
	demoEmail    = "demo@cantinaonline.com"
	demoPassword = "password123"
	demoName     = "Demo User"
)

func main() {
	imagesDir := flag.String("images", "", "directory with menu photos to upload to GCS_BUCKET")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)
	ctx := context.Background()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	if err := pginfra.RunMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	store := pginfra.NewStore(pool, logger)

	ids := make(map[string]int64, len(categories))
	for i := range categories {
		c := &categories[i]
		if err := store.Catalog().UpsertCategory(ctx, c); err != nil {
			log.Fatalf("failed to upsert category %s: %v", c.Slug, err)
		}
		ids[c.Slug] = c.ID
	}
	logger.WithField("count", len(ids)).Info("categories ensured")

	images := newImageUploader(ctx, cfg, *imagesDir, logger)
	defer images.Close()

	products := make([]entity.Product, 0, len(menu))
	for _, m := range menu {
		p := &entity.Product{
			Name:       m.Name,
			Price:      decimal.RequireFromString(m.Price),
			Stock:      seedStock,
			ImageURL:   images.URL(ctx, m),
			CategoryID: ids[m.Category],
		}
		if err := store.Catalog().UpsertProduct(ctx, p); err != nil {
			log.Fatalf("failed to upsert product %q: %v", m.Name, err)
		}
		products = append(products, *p)
	}
	logger.WithField("count", len(products)).Info("products seeded")

	seedDemoUser(ctx, store, logger)
	indexProducts(ctx, cfg, store, logger)
}

func seedDemoUser(ctx context.Context, store repo.Store, logger *logrus.Logger) {
	if _, err := store.Users().GetByEmail(ctx, demoEmail); err == nil {
		logger.WithField("email", demoEmail).Info("demo user already exists")
		return
	}
	hash, err := helpers.HashPassword(demoPassword)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}
	u := &entity.User{Name: demoName, Email: demoEmail, PasswordHash: hash}
	if err := store.Users().Create(ctx, u); err != nil {
		log.Fatalf("failed to seed user: %v", err)
	}
	logger.WithFields(logrus.Fields{"id": u.ID, "email": demoEmail, "password": demoPassword}).Info("seeded demo user")
}

// indexProducts pushes the full menu (with categories) into Elasticsearch when configured.
func indexProducts(ctx context.Context, cfg *config.Config, store repo.Store, logger *logrus.Logger) {
	addrs := cfg.ESAddrs()
	if len(addrs) == 0 {
		return
	}
	es, err := helpers.NewESClient(addrs, cfg.ElasticsearchUser, cfg.ElasticsearchPass)
	if err != nil {
		logger.WithError(err).Warn("elasticsearch client init failed; skipping index")
		return
	}
	if err := helpers.ESPing(ctx, es, 5*time.Second); err != nil {
		logger.WithError(err).Warn("elasticsearch unreachable; skipping index")
		return
	}
	all, err := store.Catalog().ListProducts(ctx, repo.ProductFilter{})
	if err != nil {
		log.Fatalf("failed to list products: %v", err)
	}
	if err := search.NewProductIndex(es, cfg.ESProductsIndex).IndexProducts(ctx, all); err != nil {
		logger.WithError(err).Warn("indexing products failed")
		return
	}
	logger.WithField("count", len(all)).Info("products indexed")
}

// imageUploader resolves a product image URL, uploading the local photo to
// GCS when a directory and bucket are configured.
type imageUploader struct {
	dir    string
	bucket string
	gcs    *storage.Client
	logger *logrus.Logger
}

func newImageUploader(ctx context.Context, cfg *config.Config, dir string, logger *logrus.Logger) *imageUploader {
	u := &imageUploader{dir: dir, bucket: cfg.GCSBucket, logger: logger}
	if dir == "" {
		return u
	}
	if cfg.GCSBucket == "" {
		logger.Warn("-images given but GCS_BUCKET is empty; keeping relative image paths")
		return u
	}
	client, err := helpers.NewGCSClient(ctx, cfg.GCSCredentialsJSONPath)
	if err != nil {
		log.Fatalf("failed to init GCS client: %v", err)
	}
	u.gcs = client
	return u
}

func (u *imageUploader) URL(ctx context.Context, p seedProduct) string {
	fallback := path.Join("/images/products", p.Image)
	if u.gcs == nil {
		return fallback
	}
	local := filepath.Join(u.dir, p.Image)
	if _, err := os.Stat(local); err != nil {
		u.logger.WithField("file", local).Warn("menu photo not found; keeping relative path")
		return fallback
	}
	url, err := helpers.UploadProductImage(ctx, u.gcs, u.bucket, helpers.Slugify(p.Name), local)
	if err != nil {
		u.logger.WithError(err).WithField("product", p.Name).Warn("upload failed; keeping relative path")
		return fallback
	}
	return url
}

func (u *imageUploader) Close() {
	if u.gcs != nil {
		_ = u.gcs.Close()
	}
}
