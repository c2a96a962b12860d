package checkout

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	circsvc "github.com/NasirKhan521436/RestFul-Library-API/service/circulation"
)

type Controller struct {
	Svc circsvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

// POST /v1/checkouts
func (h *Controller) Create(c echo.Context) error {
	var req CreateCheckoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "fail", "message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"status":  "fail",
			"message": "validation error",
			"errors":  err.Error(),
		})
	}
	uid, _ := c.Get("user_id").(int64)

	co, err := h.Svc.Checkout(c.Request().Context(), uid, req.BookID)
	if err != nil {
		switch circsvc.Code(err) {
		case circsvc.ErrBookNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"status": "fail", "message": "no book found with that id"})
		case circsvc.ErrNoCopies:
			return c.JSON(http.StatusConflict, echo.Map{"status": "fail", "message": "this book is not available for checkout"})
		case circsvc.ErrAlreadyBorrowed:
			return c.JSON(http.StatusConflict, echo.Map{"status": "fail", "message": "you already hold a copy of this book"})
		default:
			h.Log.Error("checkout create", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "internal error"})
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{"status": "success", "data": echo.Map{"checkout": co}})
}

// PATCH /v1/checkouts/:id
func (h *Controller) Return(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "fail", "message": "invalid id"})
	}
	uid, _ := c.Get("user_id").(int64)

	out, err := h.Svc.Return(c.Request().Context(), uid, id)
	if err != nil {
		switch circsvc.Code(err) {
		case circsvc.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"status": "fail", "message": "no active checkout found with that id"})
		case circsvc.ErrNotOwner:
			return c.JSON(http.StatusForbidden, echo.Map{"status": "fail", "message": "forbidden"})
		default:
			h.Log.Error("checkout return", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "internal error"})
		}
	}

	data := echo.Map{"checkout": out.Checkout}
	if out.Fulfilled != nil {
		data["fulfilled_reservation"] = out.Fulfilled
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "success", "data": data})
}

// GET /v1/checkouts
func (h *Controller) MyHistory(c echo.Context) error {
	uid, _ := c.Get("user_id").(int64)
	rows, err := h.Svc.MyCheckouts(c.Request().Context(), uid)
	if err != nil {
		h.Log.Error("checkout history", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "success",
		"results": len(rows),
		"data":    echo.Map{"checkouts": rows},
	})
}
