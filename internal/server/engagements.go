package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/quickquid/internal/marketplace"
)

type submitRequestRequest struct {
	ServiceID      string `json:"service_id" validate:"required"`
	Message        string `json:"message" validate:"max=2000"`
	ProposedBudget int64  `json:"proposed_budget" validate:"required,gt=0"`
}

type respondRequest struct {
	Decision        string `json:"decision" validate:"required,oneof=accept decline"`
	ResponseMessage string `json:"response_message" validate:"max=2000"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// POST /marketplace/requests
func (s *Server) submitRequest(c echo.Context) error {
	var req submitRequestRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	r, err := s.mp.Engagements.SubmitRequest(c.Request().Context(), caller(c), req.ServiceID, req.Message, req.ProposedBudget)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}

// GET /marketplace/requests/me?status=
func (s *Server) listMyRequests(c echo.Context) error {
	reqs, err := s.mp.Engagements.ListRequests(c.Request().Context(), caller(c), marketplace.RequestStatus(c.QueryParam("status")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"requests": reqs})
}

// GET /marketplace/requests/:id
func (s *Server) getRequest(c echo.Context) error {
	r, err := s.mp.Engagements.GetRequest(c.Request().Context(), caller(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// POST /marketplace/requests/:id/respond
func (s *Server) respondToRequest(c echo.Context) error {
	var req respondRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	r, o, err := s.mp.Engagements.RespondToRequest(c.Request().Context(), caller(c), c.Param("id"),
		marketplace.Decision(req.Decision), req.ResponseMessage)
	if err != nil {
		return err
	}
	resp := echo.Map{"request": r}
	if o != nil {
		resp["order"] = o
	}
	return c.JSON(http.StatusOK, resp)
}

// GET /marketplace/orders/me?status=
func (s *Server) listMyOrders(c echo.Context) error {
	orders, err := s.mp.Engagements.ListOrders(c.Request().Context(), caller(c), marketplace.OrderStatus(c.QueryParam("status")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}

// GET /marketplace/orders/:id
func (s *Server) getOrder(c echo.Context) error {
	o, err := s.mp.Engagements.GetOrder(c.Request().Context(), caller(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}

// POST /marketplace/orders/:id/deliver
func (s *Server) deliverOrder(c echo.Context) error {
	o, err := s.mp.Engagements.MarkDelivered(c.Request().Context(), caller(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}

// POST /marketplace/orders/:id/complete
func (s *Server) completeOrder(c echo.Context) error {
	o, err := s.mp.Engagements.MarkCompleted(c.Request().Context(), caller(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}

// POST /marketplace/orders/:id/cancel
func (s *Server) cancelOrder(c echo.Context) error {
	var req cancelRequest
	if c.Request().ContentLength != 0 {
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
	}
	o, err := s.mp.Engagements.Cancel(c.Request().Context(), caller(c), c.Param("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}
