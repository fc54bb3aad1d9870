package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ajperformance/storefront/backend/config"
	"github.com/ajperformance/storefront/backend/service"
	"github.com/ajperformance/storefront/backend/store"
	"github.com/ajperformance/storefront/backend/utils"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Coaching storefront backend: e-book catalog, admin API and accounts",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		cfg = c
		utils.InitLogger(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
	SilenceUsage: true,
}

var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is everything wired from config.
type app struct {
	db         *store.DB
	revoker    service.Revoker
	closers    []func() error
	categories *service.Categories
	ebooks     *service.EBooks
	users      *service.Users
	images     *service.Images
	identity   *service.Identity
}

// newApp connects to the stores. withIdentity also wires sessions, mail and OAuth.
func newApp(ctx context.Context, c *config.Config, withIdentity bool) (*app, error) {
	db, err := store.NewMongoDB(ctx, c.MongoURI, c.DBName)
	if err != nil {
		return nil, fmt.Errorf("mongodb: %w", err)
	}
	a := &app{db: db}
	a.closers = append(a.closers, func() error { return db.Disconnect(context.Background()) })
	if err := db.EnsureIndexes(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("mongodb indexes: %w", err)
	}

	objects, err := newObjectStore(ctx, c)
	if err != nil {
		a.close()
		return nil, err
	}
	a.images = service.NewImages(objects)
	a.images.URLExpiry = c.ImageURLExpiry
	a.categories = &service.Categories{Store: db}
	a.ebooks = &service.EBooks{Store: db, Images: a.images, Categories: a.categories}
	a.users = &service.Users{Store: db}

	if !withIdentity {
		return a, nil
	}
	if c.RedisAddr != "" {
		rr := store.NewRedisRevoker(c.RedisAddr, c.RedisPassword)
		a.closers = append(a.closers, rr.Close)
		a.revoker = rr
	} else {
		log.Warn().Msg("REDIS_ADDR not set; logouts are kept in memory and lost on restart")
		a.revoker = store.NewMemoryRevoker()
	}
	var mailer service.Mailer = service.LogMailer{}
	if c.SMTPHost != "" {
		mailer = &service.SMTPMailer{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			Username: c.SMTPUsername,
			Password: c.SMTPPassword,
			From:     c.SMTPFrom,
		}
	} else {
		log.Warn().Msg("SMTP_HOST not set; verification links are logged instead of mailed")
	}
	a.identity = service.NewIdentity(db, a.users, a.revoker, mailer, c.JWTSecret, c.OAuthStateKey)
	a.identity.RedirectOrigins = c.RedirectOrigins()
	if c.GoogleEnabled() {
		a.identity.Google = service.NewGoogleOAuth(c.GoogleClientID, c.GoogleClientSecret, c.GoogleRedirectURL)
	}
	return a, nil
}

func newObjectStore(ctx context.Context, c *config.Config) (service.ObjectStore, error) {
	switch c.Storage {
	case config.StorageMinio:
		m, err := service.NewMinioService(ctx, c.MinioEndpoint, c.MinioAccessKey, c.MinioSecretKey, c.MinioBucket, c.MinioUseSSL)
		if err != nil {
			return nil, fmt.Errorf("minio: %w", err)
		}
		return m, nil
	default:
		s, err := service.NewS3Service(ctx, c.S3Bucket, c.S3Region, c.S3AccessKeyID, c.S3SecretKey, c.S3PublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("s3: %w", err)
		}
		return s, nil
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("shutdown")
		}
	}
}
