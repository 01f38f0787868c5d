package version

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-version"
)

var AppVersion = "v0.0.0"

type gitHubRelease struct {
	TagName string `json:"tag_name"`
}

// CheckForUpdates compares the running version against the latest published
// release. Failures are silent; this is purely informational.
func CheckForUpdates() {
	url := "https://api.github.com/repos/nulzo/completion-gateway/releases/latest"

	client := http.Client{
		Timeout: 2 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return
	}

	var release gitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return
	}

	current, err := version.NewVersion(AppVersion)
	if err != nil {
		return
	}

	latest, err := version.NewVersion(release.TagName)
	if err != nil {
		return
	}

	if current.LessThan(latest) {
		fmt.Println("---------------------------------------------------------")
		fmt.Printf("⚠️  WARNING: You are running an outdated version (%s).\n", AppVersion)
		fmt.Printf("   The latest version is %s.\n", release.TagName)
		fmt.Println("---------------------------------------------------------")
	}
}
