package echoServer

import (
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/NasirKhan521436/RestFul-Library-API/app/echoServer/controller/auth"
	"github.com/NasirKhan521436/RestFul-Library-API/app/echoServer/controller/book"
	"github.com/NasirKhan521436/RestFul-Library-API/app/echoServer/controller/checkout"
	"github.com/NasirKhan521436/RestFul-Library-API/app/echoServer/controller/reservation"
	"github.com/NasirKhan521436/RestFul-Library-API/app/echoServer/jwtx"
	"github.com/NasirKhan521436/RestFul-Library-API/model"
	jwtutil "github.com/NasirKhan521436/RestFul-Library-API/util/jwt"
)

type C struct {
	Auth        *auth.Controller
	Book        *book.Controller
	Checkout    *checkout.Controller
	Reservation *reservation.Controller

	JWTSecret string
}

func Register(e *echo.Echo, c C) {
	// Public
	pub := e.Group("/v1")
	pub.POST("/users/register", c.Auth.Register)
	pub.POST("/users/login", c.Auth.Login)
	pub.GET("/books", c.Book.List)
	pub.GET("/books/:id", c.Book.Detail)

	// Auth
	authed := e.Group("/v1")
	authed.Use(echojwt.WithConfig(echojwt.Config{
		ParseTokenFunc: func(_ echo.Context, auth string) (interface{}, error) {
			return jwtutil.ParseAuth(auth, c.JWTSecret)
		},
	}))
	authed.Use(userContext)

	// Catalog admin
	authed.POST("/books", c.Book.Create, RequireRole(model.RoleLibrarian))
	authed.PATCH("/books/:id", c.Book.Update, RequireRole(model.RoleLibrarian))
	authed.DELETE("/books/:id", c.Book.Delete, RequireRole(model.RoleLibrarian))

	// Checkouts
	authed.POST("/checkouts", c.Checkout.Create)
	authed.GET("/checkouts", c.Checkout.MyHistory)
	authed.PATCH("/checkouts/:id", c.Checkout.Return)

	// Reservations
	authed.POST("/reservations/:bookId", c.Reservation.Create, RequireRole(model.RoleMember, model.RoleLibrarian))
	authed.GET("/reservations", c.Reservation.My)
	authed.DELETE("/reservations/:id", c.Reservation.Cancel)
}

// userContext lifts the verified claims into plain context keys so handlers
// never touch the token themselves.
func userContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		uid, err := jwtx.UserIDFromContext(c)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"status": "fail", "message": "unauthorized"})
		}
		c.Set("user_id", uid)
		if role, err := jwtx.RoleFromContext(c); err == nil {
			c.Set("role", role)
		}
		return next(c)
	}
}

func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			for _, r := range roles {
				if role == r {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, echo.Map{"status": "fail", "message": "forbidden"})
		}
	}
}
