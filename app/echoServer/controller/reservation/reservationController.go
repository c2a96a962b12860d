package reservation

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	circsvc "github.com/NasirKhan521436/RestFul-Library-API/service/circulation"
)

type Controller struct {
	Svc circsvc.Service
	Log *slog.Logger
}

// POST /v1/reservations/:bookId
func (h *Controller) Create(c echo.Context) error {
	bookID, err := strconv.ParseInt(c.Param("bookId"), 10, 64)
	if err != nil || bookID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "fail", "message": "invalid book id"})
	}
	uid, _ := c.Get("user_id").(int64)

	res, err := h.Svc.Reserve(c.Request().Context(), uid, bookID)
	if err != nil {
		switch circsvc.Code(err) {
		case circsvc.ErrBookNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"status": "fail", "message": "no book found with that id"})
		case circsvc.ErrBookAvailable:
			return c.JSON(http.StatusConflict, echo.Map{"status": "fail", "message": "copies are available, check the book out instead"})
		case circsvc.ErrAlreadyReserved:
			return c.JSON(http.StatusConflict, echo.Map{"status": "fail", "message": "you already have a reservation for this book"})
		default:
			h.Log.Error("reservation create", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "internal error"})
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{"status": "success", "data": echo.Map{"reservation": res}})
}

// DELETE /v1/reservations/:id
func (h *Controller) Cancel(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "fail", "message": "invalid id"})
	}
	uid, _ := c.Get("user_id").(int64)

	if err := h.Svc.CancelReservation(c.Request().Context(), uid, id); err != nil {
		switch circsvc.Code(err) {
		case circsvc.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"status": "fail", "message": "no pending reservation found with that id"})
		case circsvc.ErrNotOwner:
			return c.JSON(http.StatusForbidden, echo.Map{"status": "fail", "message": "forbidden"})
		default:
			h.Log.Error("reservation cancel", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "internal error"})
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// GET /v1/reservations
func (h *Controller) My(c echo.Context) error {
	uid, _ := c.Get("user_id").(int64)
	rows, err := h.Svc.MyReservations(c.Request().Context(), uid)
	if err != nil {
		h.Log.Error("reservation list", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "success",
		"results": len(rows),
		"data":    echo.Map{"reservations": rows},
	})
}
