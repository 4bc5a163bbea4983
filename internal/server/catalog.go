package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/quickquid/internal/apperr"
	"github.com/sudo-init-do/quickquid/internal/marketplace"
)

// GET /marketplace/services?q=&category=&sort=&page=&page_size=
func (s *Server) queryCatalog(c echo.Context) error {
	var (
		p    marketplace.QueryParams
		sort string
	)
	err := echo.QueryParamsBinder(c).
		String("q", &p.SearchText).
		String("category", &p.Category).
		String("sort", &sort).
		Int("page", &p.Page).
		Int("page_size", &p.PageSize).
		BindError()
	if err != nil {
		return queryBindError(err)
	}
	p.Sort = marketplace.SortKey(sort)

	res, err := s.mp.Catalog.Query(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// GET /marketplace/categories
func (s *Server) listCategories(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"categories": s.mp.Catalog.Categories()})
}

// GET /marketplace/services/:id/reviews?page=&page_size=
func (s *Server) listServiceReviews(c echo.Context) error {
	var page, pageSize int
	err := echo.QueryParamsBinder(c).
		Int("page", &page).
		Int("page_size", &pageSize).
		BindError()
	if err != nil {
		return queryBindError(err)
	}
	res, err := s.mp.Reviews.ListServiceReviews(c.Request().Context(), c.Param("id"), page, pageSize)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// GET /sellers/:id/reviews?page=&page_size=
func (s *Server) listSellerReviews(c echo.Context) error {
	var page, pageSize int
	err := echo.QueryParamsBinder(c).
		Int("page", &page).
		Int("page_size", &pageSize).
		BindError()
	if err != nil {
		return queryBindError(err)
	}
	res, err := s.mp.Reviews.ListSellerReviews(c.Request().Context(), c.Param("id"), page, pageSize)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func queryBindError(err error) error {
	var be *echo.BindingError
	if errors.As(err, &be) {
		return apperr.InvalidField(be.Field, "must be an integer")
	}
	return apperr.Validation("invalid query parameters")
}
