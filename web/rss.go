package web

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deemkeen/scronth/domain"
	"github.com/deemkeen/scronth/posts"
	"github.com/deemkeen/scronth/util"
	"github.com/gorilla/feeds"
	"github.com/rs/zerolog/log"
)

const itemTitleFormat = "2006-01-02 15:04:05 MST"

func feedLink(conf *util.AppConfig) string {
	return fmt.Sprintf("http://%s:%d/feed", conf.Conf.Host, conf.Conf.HttpPort)
}

func feedItem(conf *util.AppConfig, post domain.Post) *feeds.Item {
	created := post.Time()
	item := &feeds.Item{
		Id:      post.Id,
		Title:   created.Format(itemTitleFormat),
		Link:    &feeds.Link{Href: fmt.Sprintf("%s/%s", feedLink(conf), post.Id)},
		Content: post.Content,
		Author:  &feeds.Author{Name: post.Username, Email: fmt.Sprintf("%s@%s", post.Username, util.Name)},
		Created: created,
	}
	if post.Image != nil && *post.Image != "" && !isDataURL(*post.Image) {
		item.Enclosure = &feeds.Enclosure{Url: *post.Image, Type: "image/*", Length: "0"}
	}
	return item
}

func isDataURL(s string) bool {
	return len(s) >= 5 && s[:5] == "data:"
}

// GetRSS renders the visible feed, or one user's visible posts when username is set.
func GetRSS(ctx context.Context, conf *util.AppConfig, repo *posts.Repository, username string) (string, error) {
	var (
		list      []domain.Post
		err       error
		title     string
		createdBy string
	)
	link := feedLink(conf)

	if username != "" {
		list, err = repo.GetPostsByUser(ctx, username)
		if err != nil || len(list) == 0 {
			log.Warn().Err(err).Str("username", username).Msg("Could not get posts for feed")
			return "", errors.New("error retrieving posts by username")
		}
		title = fmt.Sprintf("Scronth Posts - %s", username)
		createdBy = username
		link = fmt.Sprintf("%s?username=%s", link, username)
	} else {
		list, err = repo.GetFeed(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Could not get posts for feed")
			return "", errors.New("error retrieving posts")
		}
		title = "All Scronth Posts"
		createdBy = "everyone"
	}

	feed := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: link},
		Description: "Latest posts on Scronth",
		Author:      &feeds.Author{Name: createdBy, Email: fmt.Sprintf("%s@%s", createdBy, util.Name)},
		Created:     time.Now(),
	}
	for _, post := range list {
		feed.Items = append(feed.Items, feedItem(conf, post))
	}
	return feed.ToRss()
}

// GetRSSItem renders a single post. Missing and blocked posts are both reported as errors.
func GetRSSItem(ctx context.Context, conf *util.AppConfig, repo *posts.Repository, id string) (string, error) {
	post, err := repo.GetPost(ctx, id)
	if err != nil || post.Blocked {
		log.Warn().Err(err).Str("id", id).Msg("Could not get post for feed")
		return "", errors.New("error retrieving post by id")
	}

	item := feedItem(conf, post)
	feed := &feeds.Feed{
		Title:       "Single Scronth Post",
		Link:        item.Link,
		Description: "Latest posts on Scronth",
		Author:      item.Author,
		Created:     time.Now(),
		Items:       []*feeds.Item{item},
	}
	return feed.ToRss()
}
