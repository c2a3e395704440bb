// Spotify Web API response types based on https://developer.spotify.com/documentation/web-api/reference/
package player

// Device represents a Spotify Connect playback target. Read-only and never cached.
type Device struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	IsActive      bool   `json:"is_active"`
	VolumePercent *int   `json:"volume_percent"`
}

type deviceList struct {
	Devices []Device `json:"devices"`
}

// Artist is the artist summary embedded in a playing track.
type Artist struct {
	Name string `json:"name"`
}

// Album is the album summary embedded in a playing track.
type Album struct {
	Name string `json:"name"`
}

// Track is the item currently playing.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
	DurationMS int      `json:"duration_ms"`
}

// NowPlaying represents the player state returned by the currently-playing endpoint.
type NowPlaying struct {
	IsPlaying  bool   `json:"is_playing"`
	ProgressMS int    `json:"progress_ms"`
	Item       *Track `json:"item"`
}

// ArtistNames joins the playing track's artist names for display.
func (n *NowPlaying) ArtistNames() string {
	if n == nil || n.Item == nil {
		return ""
	}

	var out string
	for i, a := range n.Item.Artists {
		if i > 0 {
			out += ", "
		}
		out += a.Name
	}
	return out
}
