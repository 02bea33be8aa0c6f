package httpx

import (
	"fmt"
	"net/url"
)

// BuildURL merges query parameters into a request URL, preserving any query
// string already present. Every request issued through Client.Do passes
// through here.
func BuildURL(rawURL string, queryParams map[string]string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("error parsing request URL: %w", err)
	}

	if len(queryParams) == 0 {
		return parsedURL.String(), nil
	}

	q := parsedURL.Query()
	for key, value := range queryParams {
		q.Set(key, value)
	}
	parsedURL.RawQuery = q.Encode()

	return parsedURL.String(), nil
}
