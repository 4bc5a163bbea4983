package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type updateProfileRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=80"`
}

// PATCH /user/profile
func (s *Server) updateProfile(c echo.Context) error {
	var req updateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	p, err := s.mp.Profiles.UpdateDisplayName(c.Request().Context(), caller(c), req.DisplayName)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// GET /user/:id/profile
func (s *Server) getProfile(c echo.Context) error {
	p, err := s.mp.Profiles.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}
