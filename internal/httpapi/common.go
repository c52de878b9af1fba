package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"

	"libraryhub/internal/auth"
	"libraryhub/internal/user"
	"libraryhub/internal/validation"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// GET /api/common
func (s *Server) readSelf(c *gin.Context) {
	u, err := s.users.Get(c.Request.Context(), auth.Username(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// PUT /api/common
//
// A body carrying oldPassword or newPassword changes the password; anything
// else is a profile update confirmed by the current password.
func (s *Server) updateSelf(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		s.respondError(c, errMalformed)
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	var probe struct {
		OldPassword *string `json:"oldPassword"`
		NewPassword *string `json:"newPassword"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		s.respondError(c, errMalformed)
		return
	}
	if probe.OldPassword != nil || probe.NewPassword != nil {
		s.changePassword(c, body)
		return
	}

	var req validation.ProfileUpdate
	if err := json.Unmarshal(body, &req); err != nil {
		s.respondError(c, errMalformed)
		return
	}
	if err := validation.Struct(req); err != nil {
		s.respondError(c, err)
		return
	}
	username := auth.Username(c)
	u, err := s.users.UpdateProfile(c.Request.Context(), username, user.ProfileChange{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	if u.Username == username {
		message(c, "User updated successfully")
		return
	}
	// the old token names a user that no longer exists
	token, err := auth.SignJWT(s.secret, u.Username, u.Role, s.tokenTTL)
	if err != nil {
		s.respondError(c, fmt.Errorf("sign token: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User updated successfully", "token": token})
}

func (s *Server) changePassword(c *gin.Context, body []byte) {
	var req validation.PasswordChange
	if err := json.Unmarshal(body, &req); err != nil {
		s.respondError(c, errMalformed)
		return
	}
	if err := validation.Struct(req); err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.users.ChangePassword(c.Request.Context(), auth.Username(c), req.OldPassword, req.NewPassword); err != nil {
		s.respondError(c, err)
		return
	}
	message(c, "Password updated successfully.")
}

// DELETE /api/common
func (s *Server) deleteSelf(c *gin.Context) {
	if err := s.users.Delete(c.Request.Context(), auth.Username(c)); err != nil {
		s.respondError(c, err)
		return
	}
	message(c, "The user has been deleted")
}

// GET /api/common/stats
func (s *Server) stats(c *gin.Context) {
	counts, err := s.engine.Stats(c.Request.Context(), auth.Username(c), auth.Role(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}
