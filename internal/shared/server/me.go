package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studyai-backend/internal/shared/server/middleware"
	"studyai-backend/internal/shared/server/respond"
)

type meResponse struct {
	UserID   string `json:"userId"`
	Provider string `json:"provider"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Picture  string `json:"picture,omitempty"`
}

func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", meHandler)
}

func meHandler(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}
	respond.OK(c, meResponse{
		UserID:   userID,
		Provider: identityProvider(userID),
		Email:    middleware.UserEmailFromContext(c),
		Name:     middleware.UserNameFromContext(c),
		Picture:  middleware.UserPictureFromContext(c),
	})
}

// identityProvider reads the "provider:" prefix minted by the sign-in flow.
// Tokens from other issuers carry a bare subject.
func identityProvider(userID string) string {
	if provider, _, ok := strings.Cut(userID, ":"); ok && provider != "" {
		return provider
	}
	return "token"
}
