package domain

import "github.com/samber/lo"

type Profile struct {
	Username       string   `json:"username"`
	Followers      []string `json:"followers"`
	Following      []string `json:"following"`
	Friends        []string `json:"friends"`
	Posts          int      `json:"posts"`
	ProfilePicture *string  `json:"profilePicture"`
	AdminMessage   *string  `json:"adminMessage,omitempty"`
	CreatedAt      string   `json:"createdAt"`
}

func NewProfile(username string) *Profile {
	return &Profile{
		Username:  username,
		Followers: []string{},
		Following: []string{},
		Friends:   []string{},
		CreatedAt: Now(),
	}
}

// Normalize fills nil relationship sets left by older documents.
func (p *Profile) Normalize() {
	if p.Followers == nil {
		p.Followers = []string{}
	}
	if p.Following == nil {
		p.Following = []string{}
	}
	if p.Friends == nil {
		p.Friends = []string{}
	}
}

func (p *Profile) IsFollowing(username string) bool {
	return lo.Contains(p.Following, username)
}

func (p *Profile) IsFollowedBy(username string) bool {
	return lo.Contains(p.Followers, username)
}

func (p *Profile) IsFriend(username string) bool {
	return lo.Contains(p.Friends, username)
}
