package server

import (
	"app/internal/config"
	"app/internal/handler"
	"app/internal/repository"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// ルーティングをまとめてechoを組み立てる。
func New(
	cfg config.Config,
	authH *handler.AuthHandler,
	medicineH *handler.MedicineHandler,
	adminH *handler.AdminMedicineHandler,
	userRepo repository.UserRepository,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.Logger())
	e.Use(echomw.Recover())

	authH.RegisterRoutes(e)
	medicineH.RegisterRoutes(e)
	adminH.RegisterRoutes(e, cfg, userRepo)

	//死活監視
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	return e
}

func Start(e *echo.Echo, addr string) error {
	return e.Start(addr)
}
