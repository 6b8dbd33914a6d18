package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) listBooks(c echo.Context) error {
	names, err := s.library.List()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, names)
}

func (s *Server) showBook(c echo.Context) error {
	doc, err := s.library.Retrieve(c.Param("filename"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}
