// Package weeb is a small client for the anime lookup and nekos.best image APIs.
package weeb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Default API endpoints
const (
	DefaultWeebURL  = "https://weeb-api.vercel.app"
	DefaultNekosURL = "https://nekos.best/api/v2"
)

// ErrNotFound is returned when a lookup yields no results
var ErrNotFound = errors.New("no results found")

// Text decodes any JSON scalar or object into display text. null becomes "".
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Text(s)
		return nil
	}
	*t = Text(strings.TrimSpace(string(data)))
	return nil
}

func (t Text) String() string { return string(t) }

// Or returns fallback when t is empty
func (t Text) Or(fallback string) string {
	if t == "" {
		return fallback
	}
	return string(t)
}

// Title holds the names of an anime or manga
type Title struct {
	English Text `json:"english"`
	Romaji  Text `json:"romaji"`
	Native  Text `json:"native"`
}

// Trailer references a YouTube video
type Trailer struct {
	ID Text `json:"id"`
}

// Media is an anime or manga entry
type Media struct {
	ID          int      `json:"id"`
	Title       Title    `json:"title"`
	Format      Text     `json:"format"`
	Status      Text     `json:"status"`
	IsAdult     bool     `json:"isAdult"`
	Episodes    Text     `json:"episodes"`
	Duration    Text     `json:"duration"`
	Chapters    Text     `json:"chapters"`
	Volumes     Text     `json:"volumes"`
	StartDate   Text     `json:"startDate"`
	EndDate     Text     `json:"endDate"`
	Genres      []string `json:"genres"`
	Studios     Text     `json:"studios"`
	Trailer     *Trailer `json:"trailer"`
	Description Text     `json:"description"`
	ImageURL    Text     `json:"imageUrl"`
	CoverImage  Text     `json:"coverImage"`
}

// Image returns the best picture URL of the entry
func (m Media) Image() string {
	if m.ImageURL != "" {
		return string(m.ImageURL)
	}
	return string(m.CoverImage)
}

// CharacterName holds the names of a character
type CharacterName struct {
	Full   Text `json:"full"`
	Native Text `json:"native"`
}

// Character is a character entry
type Character struct {
	ID          int           `json:"id"`
	Name        CharacterName `json:"name"`
	Gender      Text          `json:"gender"`
	Age         Text          `json:"age"`
	SiteURL     Text          `json:"siteUrl"`
	Description Text          `json:"description"`
	ImageURL    Text          `json:"imageUrl"`
}

// NekoImage is a nekos.best result
type NekoImage struct {
	URL        string `json:"url"`
	ArtistName string `json:"artist_name"`
	ArtistHref string `json:"artist_href"`
	SourceURL  string `json:"source_url"`
	AnimeName  string `json:"anime_name"`
}

// Client talks to both APIs
type Client struct {
	weebURL    string
	nekosURL   string
	httpClient *http.Client
}

// NewClient creates a client. Empty URLs fall back to the public endpoints.
func NewClient(weebURL, nekosURL string) *Client {
	if weebURL == "" {
		weebURL = DefaultWeebURL
	}
	if nekosURL == "" {
		nekosURL = DefaultNekosURL
	}
	return &Client{
		weebURL:    strings.TrimRight(weebURL, "/"),
		nekosURL:   strings.TrimRight(nekosURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SearchAnime searches anime by name
func (c *Client) SearchAnime(ctx context.Context, query string) ([]Media, error) {
	var out []Media
	if err := c.search(ctx, "anime", query, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// AnimeByID looks an anime up by its id
func (c *Client) AnimeByID(ctx context.Context, id int) (*Media, error) {
	items, err := c.SearchAnime(ctx, strconv.Itoa(id))
	if err != nil {
		return nil, err
	}
	return pickMedia(items, id), nil
}

// SearchManga searches manga by name
func (c *Client) SearchManga(ctx context.Context, query string) ([]Media, error) {
	var out []Media
	if err := c.search(ctx, "manga", query, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// MangaByID looks a manga up by its id
func (c *Client) MangaByID(ctx context.Context, id int) (*Media, error) {
	items, err := c.SearchManga(ctx, strconv.Itoa(id))
	if err != nil {
		return nil, err
	}
	return pickMedia(items, id), nil
}

// SearchCharacters searches characters by name
func (c *Client) SearchCharacters(ctx context.Context, query string) ([]Character, error) {
	var out []Character
	if err := c.search(ctx, "character", query, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// CharacterByID looks a character up by its id
func (c *Client) CharacterByID(ctx context.Context, id int) (*Character, error) {
	items, err := c.SearchCharacters(ctx, strconv.Itoa(id))
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == id {
			return &items[i], nil
		}
	}
	return &items[0], nil
}

// RandomImage returns a random image of a nekos.best category (neko, husbando, kitsune...)
func (c *Client) RandomImage(ctx context.Context, category string) (*NekoImage, error) {
	var out struct {
		Results []NekoImage `json:"results"`
	}
	if err := c.getJSON(ctx, c.nekosURL+"/"+url.PathEscape(category), &out); err != nil {
		return nil, err
	}
	if len(out.Results) == 0 {
		return nil, ErrNotFound
	}
	return &out.Results[0], nil
}

func (c *Client) search(ctx context.Context, kind, query string, out any) error {
	u := fmt.Sprintf("%s/%s?search=%s", c.weebURL, kind, url.QueryEscape(query))
	return c.getJSON(ctx, u, out)
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Host)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func pickMedia(items []Media, id int) *Media {
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	return &items[0]
}
