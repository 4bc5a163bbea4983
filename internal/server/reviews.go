package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type reviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

// POST /marketplace/orders/:id/review
func (s *Server) submitReview(c echo.Context) error {
	var req reviewRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	rv, err := s.mp.Reviews.SubmitReview(c.Request().Context(), caller(c), c.Param("id"), req.Rating, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rv)
}

// GET /marketplace/orders/:id/review
func (s *Server) getOrderReview(c echo.Context) error {
	rv, err := s.mp.Reviews.GetOrderReview(c.Request().Context(), caller(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rv)
}
