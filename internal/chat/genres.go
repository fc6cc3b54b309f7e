package chat

import "strings"

// genreKeywords maps message words to catalog genre labels so a request
// like "something funny" still pulls usable context.
var genreKeywords = map[string]string{
	"action":        "Action",
	"adventure":     "Adventure",
	"comedy":        "Comedy",
	"funny":         "Comedy",
	"romance":       "Romance",
	"romantic":      "Romance",
	"horror":        "Horror",
	"scary":         "Horror",
	"fantasy":       "Fantasy",
	"drama":         "Drama",
	"sports":        "Sports",
	"mecha":         "Mecha",
	"mystery":       "Mystery",
	"supernatural":  "Supernatural",
	"thriller":      "Thriller",
	"music":         "Music",
	"psychological": "Psychological",
	"isekai":        "Fantasy",
	"sci-fi":        "Sci-Fi",
	"scifi":         "Sci-Fi",
}

// detectGenre returns the first genre a message word maps to, or "".
func detectGenre(message string) string {
	for _, w := range strings.Fields(strings.ToLower(message)) {
		w = strings.Trim(w, ".,!?\"'")
		if g, ok := genreKeywords[w]; ok {
			return g
		}
	}
	if strings.Contains(strings.ToLower(message), "slice of life") {
		return "Slice of Life"
	}
	return ""
}
