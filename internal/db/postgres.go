package db

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/types"
	"github.com/yungbote/streem-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewPostgresService connects via DATABASE_URL, falling back to the
// POSTGRES_* parts when unset.
func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		host := utils.GetEnv("POSTGRES_HOST", "localhost", log)
		port := utils.GetEnv("POSTGRES_PORT", "5432", log)
		user := utils.GetEnv("POSTGRES_USER", "postgres", log)
		password := utils.GetEnv("POSTGRES_PASSWORD", "", log)
		name := utils.GetEnv("POSTGRES_NAME", "streem", log)
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)
	}

	serviceLog.Info("Connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt:                              true,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(utils.GetEnvAsInt("POSTGRES_MAX_OPEN_CONNS", 25, log))
	sqlDB.SetMaxIdleConns(utils.GetEnvAsInt("POSTGRES_MAX_IDLE_CONNS", 10, log))
	sqlDB.SetConnMaxLifetime(time.Duration(utils.GetEnvAsInt("POSTGRES_CONN_MAX_LIFETIME_MINUTES", 30, log)) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}

	serviceLog.Info("Postgres connected")
	return &PostgresService{db: db, log: serviceLog}, nil
}

// AutoMigrateAll migrates every model plus the DDL GORM tags don't
// cover: the uuid-ossp extension and cascading foreign keys.
func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")

	if err := s.db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}

	err := s.db.AutoMigrate(
		&types.User{},
		&types.Video{},
		&types.VideoAsset{},
		&types.WatchHistory{},
		&types.VideoSummary{},
		&types.Topic{},
		&types.Entity{},
		&types.Tag{},
		&types.VideoTopic{},
		&types.VideoEntity{},
		&types.VideoTag{},
	)
	if err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}

	s.log.Info("Configuring foreign key relationships for postgres tables...")
	fks := []struct {
		name string
		ddl  string
	}{
		{"fk_videos_user_id", `ALTER TABLE "videos" ADD CONSTRAINT "fk_videos_user_id" FOREIGN KEY ("user_id") REFERENCES "users"("id") ON DELETE CASCADE`},
		{"fk_video_assets_video_id", `ALTER TABLE "video_assets" ADD CONSTRAINT "fk_video_assets_video_id" FOREIGN KEY ("video_id") REFERENCES "videos"("id") ON DELETE CASCADE`},
		{"fk_watch_history_user_id", `ALTER TABLE "watch_history" ADD CONSTRAINT "fk_watch_history_user_id" FOREIGN KEY ("user_id") REFERENCES "users"("id") ON DELETE CASCADE`},
		{"fk_watch_history_video_id", `ALTER TABLE "watch_history" ADD CONSTRAINT "fk_watch_history_video_id" FOREIGN KEY ("video_id") REFERENCES "videos"("id") ON DELETE CASCADE`},
		{"fk_video_summary_video_id", `ALTER TABLE "video_summary" ADD CONSTRAINT "fk_video_summary_video_id" FOREIGN KEY ("video_id") REFERENCES "videos"("id") ON DELETE CASCADE`},
		{"fk_video_topics_video_id", `ALTER TABLE "video_topics" ADD CONSTRAINT "fk_video_topics_video_id" FOREIGN KEY ("video_id") REFERENCES "videos"("id") ON DELETE CASCADE`},
		{"fk_video_topics_topic_id", `ALTER TABLE "video_topics" ADD CONSTRAINT "fk_video_topics_topic_id" FOREIGN KEY ("topic_id") REFERENCES "topics"("id") ON DELETE CASCADE`},
		{"fk_video_entities_video_id", `ALTER TABLE "video_entities" ADD CONSTRAINT "fk_video_entities_video_id" FOREIGN KEY ("video_id") REFERENCES "videos"("id") ON DELETE CASCADE`},
		{"fk_video_entities_entity_id", `ALTER TABLE "video_entities" ADD CONSTRAINT "fk_video_entities_entity_id" FOREIGN KEY ("entity_id") REFERENCES "entities"("id") ON DELETE CASCADE`},
		{"fk_video_tags_video_id", `ALTER TABLE "video_tags" ADD CONSTRAINT "fk_video_tags_video_id" FOREIGN KEY ("video_id") REFERENCES "videos"("id") ON DELETE CASCADE`},
		{"fk_video_tags_tag_id", `ALTER TABLE "video_tags" ADD CONSTRAINT "fk_video_tags_tag_id" FOREIGN KEY ("tag_id") REFERENCES "tags"("id") ON DELETE CASCADE`},
	}
	for _, fk := range fks {
		ddl := fmt.Sprintf(`
			DO $$ BEGIN
				IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '%s') THEN
					%s;
				END IF;
			END $$;`, fk.name, fk.ddl)
		if err := s.db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("failed to add %s: %w", fk.name, err)
		}
	}

	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}

func (s *PostgresService) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
