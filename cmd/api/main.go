package main

import (
	"context"
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"dbugate/internal/auth"
	"dbugate/internal/config"
	"dbugate/internal/gate"
	"dbugate/internal/httpserver"
	"dbugate/internal/logger"
	"dbugate/internal/models"
	"dbugate/internal/repository"
)

func main() {
	_ = godotenv.Load()
	lg := logger.New()
	defer lg.Sync()

	cfg, err := config.Load()
	if err != nil {
		lg.Fatalw("config load failed", "error", err)
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	if err := db.AutoMigrate(&models.Student{}, &models.Operator{}, &models.Asset{}, &models.ExitLog{}); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}

	students := repository.NewStudentRepo(db)
	assets := repository.NewAssetRepo(db)
	operators := repository.NewOperatorRepo(db)
	exitLogs := repository.NewExitLogRepo(db)

	seedDefaultAdmin(operators, cfg, lg)

	tokens := gate.NewExitTokens(cfg.ExitTokenSecret, cfg.ExitTokenTTL)
	qr := gate.NewQRSignatures(cfg.QRSecret, cfg.QRValidity, assets)
	gateSvc := gate.NewService(students, assets, exitLogs, tokens, qr, lg)
	jwts := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	router := httpserver.NewRouter(httpserver.Deps{
		Gate:      gateSvc,
		QR:        qr,
		JWT:       jwts,
		Students:  students,
		Assets:    assets,
		Operators: operators,
		Cfg:       cfg,
		Lg:        lg,
	})

	lg.Infow("listening", "port", cfg.HTTPPort)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, router); err != nil {
		lg.Fatalw("server stopped", "error", err)
	}
}

// seedDefaultAdmin creates the initial admin when the operator table is
// empty, so a fresh deployment is reachable before any bootstrap call.
func seedDefaultAdmin(operators repository.OperatorRepo, cfg config.Config, lg *zap.SugaredLogger) {
	ctx := context.Background()
	count, err := operators.Count(ctx)
	if err != nil || count > 0 {
		return
	}
	hash, err := auth.HashPassword(cfg.AdminSeedPassword)
	if err != nil {
		lg.Errorw("admin seed hash failed", "error", err)
		return
	}
	op := &models.Operator{Username: "admin", PasswordHash: hash, Role: models.RoleAdmin}
	if err := operators.Create(ctx, op); err != nil {
		lg.Errorw("admin seed failed", "error", err)
		return
	}
	lg.Infow("seeded default admin", "username", "admin")
}
