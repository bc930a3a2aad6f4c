package model

// VideoDetails is the catalog metadata shown before a transcription starts
type VideoDetails struct {
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnailUrl"`
	VideoID      string `json:"videoId"`
	URL          string `json:"url"`
}
