package web

import (
	"net/http"
	"time"

	"github.com/deemkeen/scronth/moderation"
	"github.com/deemkeen/scronth/profiles"
	"github.com/deemkeen/scronth/util"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func handleProfile(c *gin.Context, svc *profiles.Service, mod *moderation.Service) {
	ctx := c.Request.Context()
	username := c.Param("username")

	banned, err := mod.IsBanned(ctx, username)
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("Failed to read ban list")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}
	if banned {
		c.JSON(http.StatusForbidden, gin.H{"error": "This account has been banned."})
		return
	}

	profile, err := svc.GetOrCreateProfile(ctx, username)
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("Failed to load profile")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}
	admin, err := mod.IsAdmin(ctx, username)
	if err != nil {
		log.Warn().Err(err).Str("username", username).Msg("Failed to read admin list")
	}
	c.JSON(http.StatusOK, gin.H{
		"profile":    profile,
		"admin":      admin,
		"postsLabel": util.FormatNumber(profile.Posts),
		"joined":     joinedLabel(profile.CreatedAt, time.Now()),
	})
}

// joinedLabel is empty when createdAt is not a timestamp.
func joinedLabel(createdAt string, now time.Time) string {
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return ""
	}
	return util.FormatTimeAgo(t, now)
}
