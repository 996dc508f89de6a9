package bluesky

// resolveHandleResponse is returned by com.atproto.identity.resolveHandle.
type resolveHandleResponse struct {
	DID string `json:"did"`
}

// threadResponse is the slice of app.bsky.feed.getPostThread we care
// about. Replies and parents are never requested (depth=0).
type threadResponse struct {
	Thread struct {
		Post struct {
			URI    string `json:"uri"`
			Author struct {
				DID         string `json:"did"`
				Handle      string `json:"handle"`
				DisplayName string `json:"displayName"`
			} `json:"author"`
			Record struct {
				Text string `json:"text"`
			} `json:"record"`
			Embed *embedView `json:"embed"`
		} `json:"post"`
	} `json:"thread"`
}

// embedView is the hydrated embed of a post. The $type discriminator
// decides which fields are populated.
type embedView struct {
	Type   string      `json:"$type"`
	Images []imageView `json:"images"`

	// app.bsky.embed.video#view
	CID         string       `json:"cid"`
	Playlist    string       `json:"playlist"`
	Thumbnail   string       `json:"thumbnail"`
	AspectRatio *aspectRatio `json:"aspectRatio"`

	// app.bsky.embed.recordWithMedia#view
	Media *embedView `json:"media"`
}

type imageView struct {
	Thumb       string       `json:"thumb"`
	Fullsize    string       `json:"fullsize"`
	Alt         string       `json:"alt"`
	AspectRatio *aspectRatio `json:"aspectRatio"`
}

type aspectRatio struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// didDocument is the subset of a PLC directory document needed to find
// the account's PDS endpoint.
type didDocument struct {
	ID      string `json:"id"`
	Service []struct {
		ID              string `json:"id"`
		Type            string `json:"type"`
		ServiceEndpoint string `json:"serviceEndpoint"`
	} `json:"service"`
}
