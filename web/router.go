package web

import (
	"net/http"

	"github.com/deemkeen/scronth/moderation"
	"github.com/deemkeen/scronth/posts"
	"github.com/deemkeen/scronth/profiles"
	"github.com/deemkeen/scronth/storage"
	"github.com/deemkeen/scronth/util"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
)

// maxBodyBytes leaves room for inline image data.
const maxBodyBytes = 10 * 1024 * 1024

// Services are the collaborators the HTTP surface reads and writes through. Store backs the
// posts API and must not include a remote backend pointing at this server. Moderation answers
// ban and admin lookups for the profile endpoint.
type Services struct {
	Store      *storage.Selector
	Posts      *posts.Repository
	Profiles   *profiles.Service
	Moderation *moderation.Service
}

func Router(conf *util.AppConfig, svc Services) *gin.Engine {
	g := gin.New()
	g.Use(gin.Recovery())
	g.Use(RequestLogger())
	g.Use(CorsMiddleware())
	g.Use(gzip.Gzip(gzip.DefaultCompression))
	g.Use(MaxBytesMiddleware(maxBodyBytes))

	api := &postsAPI{store: svc.Store}
	g.GET("/api/health", handleHealth)
	g.GET("/api/posts", api.list)
	g.POST("/api/posts", api.create)
	g.PUT("/api/posts/:id", api.update)
	g.DELETE("/api/posts/:id", api.remove)

	if svc.Profiles != nil && svc.Moderation != nil {
		g.GET("/api/profiles/:username", func(c *gin.Context) {
			handleProfile(c, svc.Profiles, svc.Moderation)
		})
	}

	if svc.Posts != nil {
		g.GET("/feed", func(c *gin.Context) {
			c.Header("Content-Type", "application/xml; charset=utf-8")

			rss, err := GetRSS(c.Request.Context(), conf, svc.Posts, c.Query("username"))
			if err != nil {
				c.Render(http.StatusNotFound, render.String{Format: ""})
			} else {
				c.Render(http.StatusOK, render.String{Format: rss})
			}
		})

		g.GET("/feed/:id", func(c *gin.Context) {
			c.Header("Content-Type", "application/xml; charset=utf-8")

			rssItem, err := GetRSSItem(c.Request.Context(), conf, svc.Posts, c.Param("id"))
			if err != nil {
				c.Render(http.StatusNotFound, render.String{Format: ""})
			} else {
				c.Render(http.StatusOK, render.String{Format: rssItem})
			}
		})
	}

	return g
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Scronth server is running"})
}
