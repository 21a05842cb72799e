// Package ddragon reads Riot's Data Dragon static data: game versions and the
// champion and item catalogs of a patch.
package ddragon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const DefaultBaseURL = "https://ddragon.leagueoflegends.com"

var (
	ErrFetch      = errors.New("ddragon: fetch failed")
	ErrNoVersions = errors.New("ddragon: no versions available")
)

type Image struct {
	Full string `json:"full"`
}

type Champion struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Name  string `json:"name"`
	Title string `json:"title"`
	Image Image  `json:"image"`
	Icon  string `json:"icon"`
}

type Item struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image Image  `json:"image"`
	Icon  string `json:"icon"`
}

// Catalog is the champion list of one Data Dragon version.
type Catalog struct {
	Version   string
	Champions []Champion
	byName    map[string]int
}

// ByName finds a champion by its display name. The feed uses display names,
// so the match is exact.
func (c *Catalog) ByName(name string) (Champion, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Champion{}, false
	}
	return c.Champions[i], true
}

// IconURL returns the square icon of a champion, or "" for unknown names.
func (c *Catalog) IconURL(name string) string {
	champ, ok := c.ByName(name)
	if !ok {
		return ""
	}
	return champ.Icon
}

// Client fetches and caches Data Dragon files. Catalogs are kept per version
// for the life of the process.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.RWMutex
	versions  []string
	fetchedAt time.Time
	champions map[string]*Catalog
	items     map[string][]Item

	group singleflight.Group
	ttl   time.Duration
}

func New(baseURL string, hc *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
		champions:  map[string]*Catalog{},
		items:      map[string][]Item{},
		ttl:        time.Hour,
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFetch, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: status %d", ErrFetch, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFetch, path, err)
	}
	return nil
}

// Versions lists every published version, newest first. The list is cached
// for an hour.
func (c *Client) Versions(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	if len(c.versions) > 0 && time.Since(c.fetchedAt) < c.ttl {
		v := c.versions
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do("versions", func() (any, error) {
		var versions []string
		if err := c.get(ctx, "/api/versions.json", &versions); err != nil {
			return nil, err
		}
		if len(versions) == 0 {
			return nil, ErrNoVersions
		}
		c.mu.Lock()
		c.versions, c.fetchedAt = versions, time.Now()
		c.mu.Unlock()
		return versions, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// Patches reduces the version list to unique major.minor patches, newest first.
func (c *Client) Patches(ctx context.Context) ([]string, error) {
	versions, err := c.Versions(ctx)
	if err != nil {
		return nil, err
	}
	return Patches(versions), nil
}

func Patches(versions []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range versions {
		p := MajorMinor(v)
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// MajorMinor cuts a version down to its first two segments.
func MajorMinor(version string) string {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return version
	}
	return parts[0] + "." + parts[1]
}

// ResolvePatch maps a game version such as "15.4.655.1234" onto a published
// Data Dragon version. "latest" and "" resolve to the newest version.
func (c *Client) ResolvePatch(ctx context.Context, gameVersion string) (string, error) {
	versions, err := c.Versions(ctx)
	if err != nil {
		return "", err
	}
	if gameVersion == "" || gameVersion == "latest" {
		return versions[0], nil
	}
	mm := MajorMinor(gameVersion)
	for _, v := range versions {
		if v == gameVersion {
			return v, nil
		}
	}
	for _, v := range versions {
		if MajorMinor(v) == mm {
			return v, nil
		}
	}
	return ClosestPatch(gameVersion, versions), nil
}

// Champions returns the champion catalog of a version.
func (c *Client) Champions(ctx context.Context, version string) (*Catalog, error) {
	c.mu.RLock()
	cat, ok := c.champions[version]
	c.mu.RUnlock()
	if ok {
		return cat, nil
	}

	v, err, _ := c.group.Do("champions/"+version, func() (any, error) {
		var body struct {
			Data map[string]Champion `json:"data"`
		}
		if err := c.get(ctx, fmt.Sprintf("/cdn/%s/data/en_US/champion.json", version), &body); err != nil {
			return nil, err
		}

		cat := &Catalog{Version: version, byName: make(map[string]int, len(body.Data))}
		for id, champ := range body.Data {
			if champ.ID == "" {
				champ.ID = id
			}
			champ.Icon = fmt.Sprintf("%s/cdn/%s/img/champion/%s", c.baseURL, version, champ.Image.Full)
			cat.Champions = append(cat.Champions, champ)
		}
		slices.SortFunc(cat.Champions, func(a, b Champion) int { return strings.Compare(a.Name, b.Name) })
		for i, champ := range cat.Champions {
			cat.byName[champ.Name] = i
		}

		c.mu.Lock()
		c.champions[version] = cat
		c.mu.Unlock()
		return cat, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Catalog), nil
}

// Items returns the item list of a version.
func (c *Client) Items(ctx context.Context, version string) ([]Item, error) {
	c.mu.RLock()
	items, ok := c.items[version]
	c.mu.RUnlock()
	if ok {
		return items, nil
	}

	v, err, _ := c.group.Do("items/"+version, func() (any, error) {
		var body struct {
			Data map[string]Item `json:"data"`
		}
		if err := c.get(ctx, fmt.Sprintf("/cdn/%s/data/en_US/item.json", version), &body); err != nil {
			return nil, err
		}

		items := make([]Item, 0, len(body.Data))
		for id, it := range body.Data {
			it.ID = id
			it.Icon = fmt.Sprintf("%s/cdn/%s/img/item/%s", c.baseURL, version, it.Image.Full)
			items = append(items, it)
		}
		slices.SortFunc(items, func(a, b Item) int { return strings.Compare(a.ID, b.ID) })

		c.mu.Lock()
		c.items[version] = items
		c.mu.Unlock()
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Item), nil
}
