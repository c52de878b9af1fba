package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"libraryhub/internal/auth"
	"libraryhub/internal/feedback"
	"libraryhub/internal/lifecycle"
	"libraryhub/internal/validation"
)

// POST /api/user/request/:bookSlug
func (s *Server) submitRequest(c *gin.Context) {
	var req validation.BorrowRequest
	if err := bind(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	r, err := s.engine.SubmitRequest(ctx, auth.Username(c), c.Param("bookSlug"), req.Days)
	if err != nil {
		s.respondError(c, err)
		return
	}
	title := r.BookSlug
	if b, err := s.catalog.GetBook(ctx, r.BookSlug); err == nil {
		title = b.Title
	}
	message(c, fmt.Sprintf("Book %s has been requested successfully.", title))
}

// DELETE /api/user/request/:requestSlug
func (s *Server) withdrawRequest(c *gin.Context) {
	if err := s.engine.WithdrawRequest(c.Request.Context(), auth.Username(c), c.Param("requestSlug")); err != nil {
		s.respondError(c, err)
		return
	}
	message(c, "Request has been deleted.")
}

// GET /api/user/my-books
func (s *Server) myBooks(c *gin.Context) {
	ov, err := s.engine.Overview(c.Request.Context(), lifecycle.ForUser(auth.Username(c)))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ov)
}

// PUT /api/user/issued-book/:issuedBookSlug
func (s *Server) returnBook(c *gin.Context) {
	if _, err := s.engine.ReturnBook(c.Request.Context(), auth.Username(c), c.Param("issuedBookSlug")); err != nil {
		s.respondError(c, err)
		return
	}
	message(c, "The book has been returned.")
}

// GET /api/user/feedbacks
func (s *Server) myFeedbacks(c *gin.Context) {
	list, err := s.feedback.ListByUser(c.Request.Context(), auth.Username(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feedbacks": list})
}

// POST /api/user/feedback/:bookSlug
func (s *Server) createFeedback(c *gin.Context) {
	var req validation.Feedback
	if err := bind(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if _, err := s.feedback.Create(c.Request.Context(), auth.Username(c), c.Param("bookSlug"), req.Rating, req.Content); err != nil {
		s.respondError(c, err)
		return
	}
	message(c, "Feedback created successfully.")
}

// PUT /api/user/feedback/:feedbackSlug
func (s *Server) updateFeedback(c *gin.Context) {
	var req validation.FeedbackUpdate
	if err := bind(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	_, err := s.feedback.Update(c.Request.Context(), auth.Username(c), c.Param("feedbackSlug"), feedback.Change{
		Rating:  req.Rating,
		Content: req.Content,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	message(c, "Feedback updated successfully.")
}
