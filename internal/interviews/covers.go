package interviews

import "math/rand"

// cover art served by the frontend from /covers; one is picked per interview
var coverImages = []string{
	"adobe.png",
	"amazon.png",
	"facebook.png",
	"hostinger.png",
	"pinterest.png",
	"quora.png",
	"reddit.png",
	"skype.png",
	"spotify.png",
	"telegram.png",
	"tiktok.png",
	"yahoo.png",
}

// RandomCover returns the path of a randomly chosen interview cover image.
func RandomCover() string {
	return "/covers/" + coverImages[rand.Intn(len(coverImages))]
}
