package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"libraryhub/internal/auth"
	"libraryhub/internal/catalog"
	"libraryhub/internal/lifecycle"
	"libraryhub/internal/validation"
	"libraryhub/pkg/models"
)

// POST /api/librarian/section
func (s *Server) createSection(c *gin.Context) {
	var req validation.Section
	if err := bind(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	sec, err := s.catalog.CreateSection(c.Request.Context(), req.Title, req.Description)
	if err != nil {
		s.respondError(c, err)
		return
	}
	message(c, fmt.Sprintf("Section %s created successfully.", sec.Title))
}

// PUT /api/librarian/section/:sectionSlug
func (s *Server) updateSection(c *gin.Context) {
	var req validation.SectionUpdate
	if err := bind(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	sec, err := s.catalog.UpdateSection(c.Request.Context(), c.Param("sectionSlug"), catalog.SectionChange{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	message(c, fmt.Sprintf("Section %s has been updated.", sec.Title))
}

// DELETE /api/librarian/section/:sectionSlug
func (s *Server) deleteSection(c *gin.Context) {
	sec, err := s.catalog.DeleteSection(c.Request.Context(), c.Param("sectionSlug"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	message(c, fmt.Sprintf("Section %s has been deleted.", sec.Title))
}

// POST /api/librarian/book/:sectionSlug
func (s *Server) createBook(c *gin.Context) {
	var req validation.Book
	if err := bind(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	b, err := s.catalog.CreateBook(c.Request.Context(), c.Param("sectionSlug"), req.Title, req.Author, req.Description)
	if err != nil {
		s.respondError(c, err)
		return
	}
	message(c, fmt.Sprintf("Book %s created successfully.", b.Title))
}

// PUT /api/librarian/book/:bookSlug
func (s *Server) updateBook(c *gin.Context) {
	var req validation.BookUpdate
	if err := bind(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	b, err := s.catalog.UpdateBook(c.Request.Context(), c.Param("bookSlug"), catalog.BookChange{
		Title:       req.Title,
		Author:      req.Author,
		Description: req.Description,
		SectionSlug: req.SectionSlug,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	message(c, fmt.Sprintf("Book %s has been updated.", b.Title))
}

// DELETE /api/librarian/book/:bookSlug
func (s *Server) deleteBook(c *gin.Context) {
	b, err := s.catalog.DeleteBook(c.Request.Context(), c.Param("bookSlug"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	message(c, fmt.Sprintf("Book %s has been deleted.", b.Title))
}

// GET /api/librarian/requests
func (s *Server) allRequests(c *gin.Context) {
	ov, err := s.engine.Overview(c.Request.Context(), lifecycle.All())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ov)
}

// PUT /api/librarian/request/:requestSlug
func (s *Server) decideRequest(c *gin.Context) {
	var req validation.Decision
	if err := bind(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	_, err := s.engine.DecideRequest(c.Request.Context(), auth.Username(c), c.Param("requestSlug"), models.RequestStatus(req.Status))
	if err != nil {
		s.respondError(c, err)
		return
	}
	message(c, "Request status updated successfully.")
}

// PUT /api/librarian/issued-book/:issuedBookSlug
func (s *Server) librarianReturn(c *gin.Context) {
	if _, err := s.engine.LibrarianReturnBook(c.Request.Context(), auth.Username(c), c.Param("issuedBookSlug")); err != nil {
		s.respondError(c, err)
		return
	}
	message(c, "Issued Book status updated successfully")
}

// POST /api/librarian/announce
func (s *Server) announce(c *gin.Context) {
	var req validation.Announcement
	if err := bind(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	sent := 0
	if s.announcer != nil {
		sent = s.announcer.Broadcast(auth.Username(c), req.Message)
	}
	s.logger(c).Info("announcement sent", "from", auth.Username(c), "subscribers", sent)
	c.JSON(http.StatusOK, gin.H{"message": "Announcement sent.", "subscribers": sent})
}
