package tiktok

// feedResponse is the feed API envelope.
type feedResponse struct {
	AwemeList []aweme `json:"aweme_list"`
}

// aweme is one post in the feed. aweme_type distinguishes image-carousel
// posts from standard videos.
type aweme struct {
	AwemeID   string `json:"aweme_id"`
	Desc      string `json:"desc"`
	AwemeType int    `json:"aweme_type"`
	Author    struct {
		Nickname string `json:"nickname"`
		UniqueID string `json:"unique_id"`
	} `json:"author"`
	Video struct {
		PlayAddr urlList `json:"play_addr"`
		Cover    urlList `json:"cover"`
		Duration int     `json:"duration"` // milliseconds
	} `json:"video"`
	ImagePostInfo struct {
		Images []struct {
			DisplayImage urlList `json:"display_image"`
		} `json:"images"`
	} `json:"image_post_info"`
}

type urlList struct {
	URLList []string `json:"url_list"`
	Width   int      `json:"width"`
	Height  int      `json:"height"`
}

func (u urlList) first() string {
	if len(u.URLList) == 0 {
		return ""
	}
	return u.URLList[0]
}
