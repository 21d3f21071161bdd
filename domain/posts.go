package domain

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// TimestampFormat matches the millisecond ISO-8601 form the web clients produce.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

type Reply struct {
	Id        string `json:"id"`
	Username  string `json:"username"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type Post struct {
	Id        string   `json:"id"`
	Username  string   `json:"username"`
	Content   string   `json:"content"`
	Image     *string  `json:"image"`
	Timestamp string   `json:"timestamp"`
	Blocked   bool     `json:"blocked"`
	Likes     []string `json:"likes"`
	Replies   []Reply  `json:"replies"`
	Views     int      `json:"views"`
}

// PostPatch carries the mutable fields of a Post. Nil fields are left untouched.
type PostPatch struct {
	Content *string   `json:"content,omitempty"`
	Blocked *bool     `json:"blocked,omitempty"`
	Likes   *[]string `json:"likes,omitempty"`
	Replies *[]Reply  `json:"replies,omitempty"`
	Views   *int      `json:"views,omitempty"`
}

func (p PostPatch) Empty() bool {
	return p.Content == nil && p.Blocked == nil && p.Likes == nil && p.Replies == nil && p.Views == nil
}

// Apply merges the patch into post in place.
func (p PostPatch) Apply(post *Post) {
	if p.Content != nil {
		post.Content = *p.Content
	}
	if p.Blocked != nil {
		post.Blocked = *p.Blocked
	}
	if p.Likes != nil {
		post.Likes = append([]string{}, (*p.Likes)...)
	}
	if p.Replies != nil {
		post.Replies = append([]Reply{}, (*p.Replies)...)
	}
	if p.Views != nil {
		post.Views = *p.Views
	}
}

// NewPost builds a fresh post with a new id and the current timestamp.
func NewPost(username, content string, image *string) Post {
	return Post{
		Id:        NewID(),
		Username:  username,
		Content:   content,
		Image:     image,
		Timestamp: Now(),
		Likes:     []string{},
		Replies:   []Reply{},
	}
}

func NewReply(username, content string) Reply {
	return Reply{
		Id:        NewID(),
		Username:  username,
		Content:   content,
		Timestamp: Now(),
	}
}

// Validate checks the text-or-image invariant.
func (post *Post) Validate() error {
	if post.Content == "" && (post.Image == nil || *post.Image == "") {
		return NewValidationError("content", "Please enter text or attach a photo")
	}
	return nil
}

// Normalize fills nil collections so stored documents always carry arrays.
func (post *Post) Normalize() {
	if post.Likes == nil {
		post.Likes = []string{}
	}
	if post.Replies == nil {
		post.Replies = []Reply{}
	}
	if post.Views < 0 {
		post.Views = 0
	}
}

func (post *Post) Time() time.Time {
	t, err := time.Parse(time.RFC3339Nano, post.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FindPost returns the index of the post with the given id, or -1.
func FindPost(posts []Post, id string) int {
	for i := range posts {
		if posts[i].Id == id {
			return i
		}
	}
	return -1
}

// SortNewestFirst orders posts by timestamp descending, ties broken by id descending.
func SortNewestFirst(posts []Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		ti, tj := posts[i].Time(), posts[j].Time()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return idLess(posts[j].Id, posts[i].Id)
	})
}

// idLess compares ids numerically when both are clock tokens, lexically otherwise.
func idLess(a, b string) bool {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

var (
	idMu   sync.Mutex
	lastID int64
)

// NewID returns a millisecond clock token that is strictly increasing within the process.
func NewID() string {
	idMu.Lock()
	defer idMu.Unlock()

	id := time.Now().UnixMilli()
	if id <= lastID {
		id = lastID + 1
	}
	lastID = id
	return strconv.FormatInt(id, 10)
}

func Now() string {
	return time.Now().UTC().Format(TimestampFormat)
}
