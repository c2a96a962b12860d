package book

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/NasirKhan521436/RestFul-Library-API/model"
	bookrepo "github.com/NasirKhan521436/RestFul-Library-API/repository/book"
	booksvc "github.com/NasirKhan521436/RestFul-Library-API/service/book"
)

type Controller struct {
	Svc booksvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

// POST /v1/books  (librarian)
func (h *Controller) Create(c echo.Context) error {
	var req CreateBookReq
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

	b := &model.Book{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		TotalCopies:   req.TotalCopies,
		Genre:         req.Genre,
		PublishedYear: req.PublishedYear,
	}
	if err := h.Svc.Create(c.Request().Context(), b); err != nil {
		switch {
		case errors.Is(err, booksvc.ErrBadInput):
			return c.JSON(http.StatusBadRequest, echo.Map{"status": "fail", "message": "invalid book payload"})
		case errors.Is(err, booksvc.ErrISBNTaken):
			return c.JSON(http.StatusConflict, echo.Map{"status": "fail", "message": "isbn already registered"})
		default:
			h.Log.Error("book create error", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "internal error"})
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{"status": "success", "data": echo.Map{"book": b}})
}

// GET /v1/books
func (h *Controller) List(c echo.Context) error {
	params, pageRequested, err := parseListQuery(c.QueryParams())
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "fail", "message": err.Error()})
	}

	rows, err := h.Svc.List(c.Request().Context(), params, pageRequested)
	if err != nil {
		if errors.Is(err, booksvc.ErrBadPage) {
			return c.JSON(http.StatusBadRequest, echo.Map{"status": "fail", "message": "this page does not exist"})
		}
		h.Log.Error("book list error", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "success",
		"results": len(rows),
		"data":    echo.Map{"books": rows},
	})
}

// GET /v1/books/:id
func (h *Controller) Detail(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "fail", "message": "invalid id"})
	}
	b, err := h.Svc.Detail(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, booksvc.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"status": "fail", "message": "no book found with that id"})
		}
		h.Log.Error("book detail error", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "success", "data": echo.Map{"book": b}})
}

// PATCH /v1/books/:id  (librarian)
func (h *Controller) Update(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "fail", "message": "invalid id"})
	}
	var req UpdateBookReq
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

	patch := bookrepo.UpdatePatch{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		TotalCopies:   req.TotalCopies,
		Genre:         req.Genre,
		PublishedYear: req.PublishedYear,
	}
	b, err := h.Svc.Update(c.Request().Context(), id, patch)
	if err != nil {
		switch {
		case errors.Is(err, booksvc.ErrBadInput):
			return c.JSON(http.StatusBadRequest, echo.Map{"status": "fail", "message": "invalid book payload"})
		case errors.Is(err, booksvc.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"status": "fail", "message": "no book found with that id"})
		case errors.Is(err, booksvc.ErrISBNTaken):
			return c.JSON(http.StatusConflict, echo.Map{"status": "fail", "message": "isbn already registered"})
		default:
			h.Log.Error("book update error", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "success", "data": echo.Map{"book": b}})
}

// DELETE /v1/books/:id  (librarian)
func (h *Controller) Delete(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "fail", "message": "invalid id"})
	}
	if err := h.Svc.Delete(c.Request().Context(), id); err != nil {
		switch {
		case errors.Is(err, booksvc.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"status": "fail", "message": "no book found with that id"})
		case errors.Is(err, booksvc.ErrInUse):
			return c.JSON(http.StatusConflict, echo.Map{"status": "fail", "message": "book still has active checkouts or pending reservations"})
		default:
			h.Log.Error("book delete error", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "internal error"})
		}
	}
	return c.NoContent(http.StatusNoContent)
}
