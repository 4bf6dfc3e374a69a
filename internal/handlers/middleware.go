package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	userIDKey = "userId"
	// browsers cannot set headers on a websocket handshake
	accessTokenParam = "access_token"
)

// userIdMiddleware guards /api/v1: manual runs write to the inverter.
func (h *Handler) userIdMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "missing Authorization header",
		})
		return
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid Authorization header format",
		})
		return
	}

	h.authenticate(c, parts[1])
}

// wsAuthMiddleware guards /ws. The token comes from the access_token query
// parameter; a bearer header is accepted as well.
func (h *Handler) wsAuthMiddleware(c *gin.Context) {
	if token := c.Query(accessTokenParam); token != "" {
		h.authenticate(c, token)
		return
	}
	if c.GetHeader("Authorization") != "" {
		h.userIdMiddleware(c)
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": "missing access token",
	})
}

func (h *Handler) authenticate(c *gin.Context, token string) {
	userID, err := h.services.ParseToken(token)
	if err != nil {
		if h.log != nil {
			h.log.Infow("auth_token_rejected", "path", c.FullPath(), "err", err)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or expired token",
		})
		return
	}

	c.Set(userIDKey, userID)
	c.Next()
}
