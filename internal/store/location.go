package store

import "net/url"

// timeLayout has fixed width so stored timestamps sort lexically in creation order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// redact strips the password from a database URL
func redact(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "postgres"
	}
	return u.Redacted()
}
