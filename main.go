// Package main library API.
//
// @title           Library Management API
// @version         1.0
// @description     REST API for a book catalog with checkouts and reservations.
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description  Use:  Bearer <JWT>
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/NasirKhan521436/RestFul-Library-API/app/echoServer"
	authctrl "github.com/NasirKhan521436/RestFul-Library-API/app/echoServer/controller/auth"
	bookctrl "github.com/NasirKhan521436/RestFul-Library-API/app/echoServer/controller/book"
	checkoutctrl "github.com/NasirKhan521436/RestFul-Library-API/app/echoServer/controller/checkout"
	reservationctrl "github.com/NasirKhan521436/RestFul-Library-API/app/echoServer/controller/reservation"
	"github.com/NasirKhan521436/RestFul-Library-API/app/echoServer/validation"
	"github.com/NasirKhan521436/RestFul-Library-API/config"
	bookrepo "github.com/NasirKhan521436/RestFul-Library-API/repository/book"
	circrepo "github.com/NasirKhan521436/RestFul-Library-API/repository/circulation"
	userrepo "github.com/NasirKhan521436/RestFul-Library-API/repository/user"
	authsvc "github.com/NasirKhan521436/RestFul-Library-API/service/auth"
	booksvc "github.com/NasirKhan521436/RestFul-Library-API/service/book"
	circsvc "github.com/NasirKhan521436/RestFul-Library-API/service/circulation"
	reservationsvc "github.com/NasirKhan521436/RestFul-Library-API/service/reservation"
	"github.com/NasirKhan521436/RestFul-Library-API/util/database"
)

func main() {

	cfg := config.Load()
	ctx := context.Background()

	// logger
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// DB pool
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// repos
	ur := userrepo.New(db)
	br := bookrepo.New(db)
	cr := circrepo.New(db)

	// services
	as := authsvc.New(ur, cfg.JWTSecret)
	bs := booksvc.New(br)
	cs := circsvc.New(cr)
	sw := reservationsvc.New(cr, log)

	// background reservation expiry sweep
	go sw.Run(ctx, cfg.SweepInterval)

	// controllers
	v := validator.New()
	authC := &authctrl.Controller{Svc: as, V: v, Log: log}
	bookC := &bookctrl.Controller{Svc: bs, V: v, Log: log}
	checkoutC := &checkoutctrl.Controller{Svc: cs, V: v, Log: log}
	reservationC := &reservationctrl.Controller{Svc: cs, Log: log}

	// echo
	e := echo.New()
	echoServer.RegisterMiddlewares(e)
	e.Validator = validation.New()

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]any{
			"status":  "ok",
			"message": "Service is healthy and connected",
		})
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	echoServer.Register(e, echoServer.C{
		Auth:        authC,
		Book:        bookC,
		Checkout:    checkoutC,
		Reservation: reservationC,

		JWTSecret: cfg.JWTSecret,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}
	if port == "" {
		port = "8080"
	}

	log.Info("starting server", "port", port, "env", cfg.Env)

	e.Logger.Fatal(e.Start(":" + port))
}
