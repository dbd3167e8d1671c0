package fetcher

import (
	"encoding/json"
	"net/http"
	"net/url"
	"os"
)

// persistedCookie is the JSON-on-disk shape for one cookie, keyed by the
// origin it was set under so it can be replayed into a cookiejar.Jar.
type persistedCookie struct {
	Origin string       `json:"origin"`
	Cookie *http.Cookie `json:"cookie"`
}

// loadCookiesFile replays a previously-saved cookies_file into jar. A
// missing or unreadable file is not an error — the job just starts with
// an empty jar (§3 "cookies_file is best-effort session warm start").
func loadCookiesFile(path string, jar http.CookieJar) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var entries []persistedCookie
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}

	byOrigin := make(map[string][]*http.Cookie)
	for _, e := range entries {
		byOrigin[e.Origin] = append(byOrigin[e.Origin], e.Cookie)
	}
	for origin, cookies := range byOrigin {
		if u, err := url.Parse(origin); err == nil {
			jar.SetCookies(u, cookies)
		}
	}
	return nil
}

// saveCookiesFile persists jar's cookies for the given origins back to
// path so the next run can warm-start its session.
func saveCookiesFile(path string, jar http.CookieJar, origins []string) error {
	if path == "" {
		return nil
	}

	var entries []persistedCookie
	for _, origin := range origins {
		u, err := url.Parse(origin)
		if err != nil {
			continue
		}
		for _, c := range jar.Cookies(u) {
			entries = append(entries, persistedCookie{Origin: origin, Cookie: c})
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
