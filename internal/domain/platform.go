package domain

// Platform constants para las plataformas detectadas desde la URL
const (
	PlatformYouTube     = "youtube"
	PlatformTwitter     = "twitter"
	PlatformInstagram   = "instagram"
	PlatformTikTok      = "tiktok"
	PlatformVimeo       = "vimeo"
	PlatformDailymotion = "dailymotion"
	PlatformTwitch      = "twitch"
	PlatformReddit      = "reddit"
	PlatformSoundCloud  = "soundcloud"
	PlatformBandcamp    = "bandcamp"
	PlatformOther       = "other"
)
