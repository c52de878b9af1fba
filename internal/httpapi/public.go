package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"libraryhub/internal/auth"
	"libraryhub/internal/validation"
	"libraryhub/pkg/models"
)

// POST /api/login
func (s *Server) login(c *gin.Context) {
	var req validation.Login
	if err := bind(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	u, err := s.users.VerifyLogin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	token, err := auth.SignJWT(s.secret, u.Username, u.Role, s.tokenTTL)
	if err != nil {
		s.respondError(c, fmt.Errorf("sign token: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Login Successful.",
		"token":   token,
		"user":    u,
	})
}

// POST /api/user
func (s *Server) register(c *gin.Context) {
	var req validation.Register
	if err := bind(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	u, err := s.users.Create(c.Request.Context(), req.Name, req.Username, req.Email, req.Password, models.RoleUser)
	if err != nil {
		s.respondError(c, err)
		return
	}
	message(c, fmt.Sprintf("User %s registered successfully. Please login.", u.Name))
}

func (s *Server) listSections(c *gin.Context) {
	sections, err := s.catalog.ListSections(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sections)
}

func (s *Server) getSection(c *gin.Context) {
	section, err := s.catalog.GetSection(c.Request.Context(), c.Param("sectionSlug"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, section)
}

func (s *Server) listBooks(c *gin.Context) {
	sections, err := s.catalog.ListBooks(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sections)
}

func (s *Server) getBook(c *gin.Context) {
	book, err := s.catalog.GetBook(c.Request.Context(), c.Param("bookSlug"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

// POST /api/search
func (s *Server) search(c *gin.Context) {
	var req validation.Search
	if err := bind(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	res, err := s.catalog.Search(c.Request.Context(), req.Query)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
