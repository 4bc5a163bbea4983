package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/quickquid/internal/marketplace"
)

type createServiceRequest struct {
	Title        string `json:"title" validate:"required,max=120"`
	Description  string `json:"description" validate:"max=5000"`
	Category     string `json:"category" validate:"required"`
	BasePrice    int64  `json:"base_price" validate:"required,gt=0"`
	DeliveryDays int    `json:"delivery_days" validate:"required,gt=0"`
}

type updateServiceRequest struct {
	Title        *string `json:"title" validate:"omitempty,max=120"`
	Description  *string `json:"description" validate:"omitempty,max=5000"`
	Category     *string `json:"category"`
	BasePrice    *int64  `json:"base_price" validate:"omitempty,gt=0"`
	DeliveryDays *int    `json:"delivery_days" validate:"omitempty,gt=0"`
}

// POST /marketplace/services
func (s *Server) createService(c echo.Context) error {
	var req createServiceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	svc, err := s.mp.Services.Create(c.Request().Context(), caller(c), marketplace.ServiceInput{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		BasePrice:    req.BasePrice,
		DeliveryDays: req.DeliveryDays,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, svc)
}

// GET /marketplace/services/me
func (s *Server) listMyServices(c echo.Context) error {
	services, err := s.mp.Services.ListMine(c.Request().Context(), caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"services": services})
}

// GET /marketplace/services/:id
func (s *Server) getService(c echo.Context) error {
	svc, err := s.mp.Services.Get(c.Request().Context(), caller(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, svc)
}

// PATCH /marketplace/services/:id
func (s *Server) updateService(c echo.Context) error {
	var req updateServiceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	svc, err := s.mp.Services.Update(c.Request().Context(), caller(c), c.Param("id"), marketplace.ServicePatch{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		BasePrice:    req.BasePrice,
		DeliveryDays: req.DeliveryDays,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, svc)
}

// POST /marketplace/services/:id/activate
func (s *Server) activateService(c echo.Context) error {
	svc, err := s.mp.Services.Activate(c.Request().Context(), caller(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, svc)
}

// POST /marketplace/services/:id/pause
func (s *Server) pauseService(c echo.Context) error {
	svc, err := s.mp.Services.Pause(c.Request().Context(), caller(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, svc)
}

// DELETE /marketplace/services/:id
func (s *Server) removeService(c echo.Context) error {
	if _, err := s.mp.Services.Remove(c.Request().Context(), caller(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// GET /sellers/me/stats
func (s *Server) sellerStats(c echo.Context) error {
	stats, err := s.mp.Dashboard.Stats(c.Request().Context(), caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
