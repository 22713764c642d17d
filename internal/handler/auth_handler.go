package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/response"
)

type tokenIssuer interface {
	IssueToken(actor models.Actor, fullName string) (string, time.Time, error)
}

// IssueTokenRequest describes the identity a development token is minted for.
type IssueTokenRequest struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role" binding:"required"`
	StudentID string `json:"student_id"`
	FullName  string `json:"full_name"`
}

// IssueTokenResponse carries a signed access token.
type IssueTokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service tokenIssuer
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc tokenIssuer) *AuthHandler {
	return &AuthHandler{service: svc}
}

// IssueToken godoc
// @Summary Issue a development access token
// @Description Only registered outside production. Production tokens come from the identity provider.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body IssueTokenRequest true "Token identity"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/token [post]
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid token payload"))
		return
	}

	actor := models.Actor{UserID: req.UserID, Role: models.ParseRole(req.Role), StudentID: req.StudentID}
	token, expiresAt, err := h.service.IssueToken(actor, req.FullName)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, IssueTokenResponse{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt}, nil)
}

// Me godoc
// @Summary Current caller identity
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"user_id":    claims.UserID,
		"role":       claims.Role,
		"student_id": claims.StudentID,
		"full_name":  claims.FullName,
	}, nil)
}
