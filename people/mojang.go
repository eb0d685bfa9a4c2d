package people

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ProfileLookup resolves a Minecraft name into the account's UUID and its
// canonical name. A name without an account yields an error matching
// ErrNotFound.
type ProfileLookup interface {
	Profile(name string) (id uuid.UUID, canonical string, err error)
}

const (
	DefaultProfileURL = "https://api.mojang.com/users/profiles/minecraft/"
	DefaultProfileTTL = 10 * time.Minute
	DefaultFailureTTL = 30 * time.Second
)

// MojangProfiles looks up profiles with the Mojang API, caching results
// for TTL. Failed lookups are remembered for FailureTTL, so an API outage
// costs one request per name and window.
type MojangProfiles struct {
	// URL is the endpoint prefix the name is appended to.
	URL        string
	Client     *http.Client
	TTL        time.Duration
	FailureTTL time.Duration

	mu    sync.Mutex
	cache map[string]cachedProfile
	now   func() time.Time
}

type cachedProfile struct {
	id        uuid.UUID
	canonical string
	err       error
	expires   time.Time
}

// NewMojangProfiles returns a lookup against the public Mojang API.
func NewMojangProfiles(client *http.Client) *MojangProfiles {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &MojangProfiles{URL: DefaultProfileURL, Client: client, TTL: DefaultProfileTTL}
}

func (m *MojangProfiles) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

func (m *MojangProfiles) Profile(name string) (uuid.UUID, string, error) {
	key := strings.ToLower(name)
	m.mu.Lock()
	if p, ok := m.cache[key]; ok && m.clock().Before(p.expires) {
		m.mu.Unlock()
		return p.id, p.canonical, p.err
	}
	m.mu.Unlock()

	id, canonical, err := m.fetch(name)
	ttl := m.TTL
	if ttl == 0 {
		ttl = DefaultProfileTTL
	}
	if err != nil && err != ErrNotFound {
		ttl = m.FailureTTL
		if ttl == 0 {
			ttl = DefaultFailureTTL
		}
	}
	m.mu.Lock()
	if m.cache == nil {
		m.cache = make(map[string]cachedProfile)
	}
	m.cache[key] = cachedProfile{id, canonical, err, m.clock().Add(ttl)}
	m.mu.Unlock()
	return id, canonical, err
}

func (m *MojangProfiles) fetch(name string) (uuid.UUID, string, error) {
	base := m.URL
	if base == "" {
		base = DefaultProfileURL
	}
	debugf("Looking up Minecraft profile for %q", name)
	resp, err := m.Client.Get(base + url.PathEscape(name))
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("cannot look up Minecraft profile: %v", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent, http.StatusNotFound:
		return uuid.Nil, "", ErrNotFound
	default:
		return uuid.Nil, "", fmt.Errorf("cannot look up Minecraft profile: %s", resp.Status)
	}
	var profile struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return uuid.Nil, "", fmt.Errorf("cannot decode Minecraft profile: %v", err)
	}
	id, err := uuid.Parse(profile.ID)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid Minecraft profile id %q: %v", profile.ID, err)
	}
	return id, profile.Name, nil
}
