package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// getJSON issues a GET against the daemon's debug endpoint and decodes the
// JSON response body into v.
func getJSON(path string, v any) error {
	resp, err := client.Get(baseURL() + path)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request %s: %s: %s", path, resp.Status, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

// getText issues a GET against the daemon's debug endpoint and returns the
// raw response body as a string.
func getText(path string) (string, error) {
	resp, err := client.Get(baseURL() + path)
	if err != nil {
		return "", fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response from %s: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("request %s: %s: %s", path, resp.Status, string(body))
	}

	return string(body), nil
}
