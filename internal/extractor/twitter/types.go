package twitter

// tweetPayload is the mirror's tweet object. Field names follow the
// FxTwitter response; mirrors running older forks serve a compatible
// subset.
type tweetPayload struct {
	URL    string `json:"url"`
	Text   string `json:"text"`
	Author struct {
		Name       string `json:"name"`
		ScreenName string `json:"screen_name"`
	} `json:"author"`
	Media struct {
		Photos []photo `json:"photos"`
		Videos []video `json:"videos"`
	} `json:"media"`
}

type photo struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type video struct {
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Duration     float64   `json:"duration"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Variants     []variant `json:"variants"`
}

type variant struct {
	Bitrate     int    `json:"bitrate"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// bestURL picks the highest-bitrate mp4 rendition when the mirror
// offers variants, falling back to the pre-selected URL.
func (v video) bestURL() string {
	best := ""
	bestBitrate := -1
	for _, variant := range v.Variants {
		if variant.ContentType != "" && variant.ContentType != "video/mp4" {
			continue
		}
		if variant.URL != "" && variant.Bitrate > bestBitrate {
			best = variant.URL
			bestBitrate = variant.Bitrate
		}
	}
	if best != "" {
		return best
	}
	return v.URL
}
