package xapi

import "math/rand"

// replyTemplates are the caption candidates for a posted reply. The chosen
// index is recorded with the reply so caption performance can be compared
// later.
var replyTemplates = []string{
	"Here's a quick visual recap of this thread 👇",
	"Summarized this post as an image for easy sharing:",
	"TL;DR, as a picture:",
	"A one-glance summary of the post above:",
}

// pickTemplate returns a random caption and its index.
func pickTemplate() (string, int) {
	i := rand.Intn(len(replyTemplates))
	return replyTemplates[i], i
}
