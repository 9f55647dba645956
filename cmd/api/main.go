package main

import (
	"log"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/infra/cache"
	"app/internal/infra/db"
	infraRepo "app/internal/infra/repository"
	"app/internal/server"
	"app/internal/usecase"
	"app/internal/validator"

	"github.com/joho/godotenv"
)

func main() {
	//.envがあれば読む（なければ環境変数だけで動く）
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	//DB接続（プールは起動時に1回だけ作る）
	gormDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer func() { _ = db.Close(gormDB) }()

	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Medicine{},
		&model.StockHistory{},
		&model.AuditLog{},
	); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	//Redisキャッシュ（REDIS_ADDR未設定なら使わない）
	var medicineCache *cache.MedicineCache
	if cfg.RedisAddr != "" {
		medicineCache, err = cache.NewMedicineCache(cfg.RedisAddr, cfg.RedisPassword, 5*time.Minute)
		if err != nil {
			log.Fatalf("redis connect failed: %v", err)
		}
		defer func() { _ = medicineCache.Close() }()
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	rtRepo := infraRepo.NewRefreshTokenGormRepository(gormDB)
	medicineRepo := infraRepo.NewMedicineGormRepository(gormDB)
	ledgerRepo := infraRepo.NewLedgerGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//Usecase生成
	authValidator := validator.NewAuthValidator(userRepo)
	authUC := usecase.NewAuthUsecase(cfg, userRepo, rtRepo, authValidator)
	medicineUC := usecase.NewMedicineUsecase(medicineRepo, auditRepo, medicineCache)
	adjustUC := usecase.NewAdjustmentUsecase(
		txManager,
		medicineRepo,
		ledgerRepo,
		medicineCache,
		cfg.AdjustMaxRetries,
		cfg.AdjustRetryBackoffMs,
	)
	auditUC := usecase.NewAuditLogUsecase(auditRepo)

	//Handler生成
	refreshTTL := 30 * 24 * time.Hour
	cookieSecure := cfg.GoEnv == "prod"
	authH := handler.NewAuthHandler(authUC, refreshTTL, cookieSecure)
	medicineH := handler.NewMedicineHandler(medicineUC)
	adminH := handler.NewAdminMedicineHandler(medicineUC, adjustUC, auditUC, userRepo)

	//Server起動
	e := server.New(cfg, authH, medicineH, adminH, userRepo)

	addr := ":" + cfg.Port
	if err := server.Start(e, addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
