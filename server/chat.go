package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type chatRequest struct {
	UserID  string `json:"user_id" form:"user_id"`
	Message string `json:"message" form:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// handleChat is the direct chat API, used by the web client and by tests.
func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.Message = strings.TrimSpace(req.Message)
	if req.UserID == "" || req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id and message are required")
	}

	reply, err := s.assistant.HandleMessage(c.Request().Context(), req.UserID, req.Message)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to handle message")
	}
	return c.JSON(http.StatusOK, chatResponse{Reply: reply})
}
