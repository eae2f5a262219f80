package models

// Styles is the closed catalogue of styles a job may request. The
// catalogue is maintained here and mirrored by the mobile client.
var Styles = []string{
	"Sticker",
	"Cartoon",
	"Oil Painting",
	"Line Art",
}

// ValidStyle reports whether the given style is part of the catalogue.
func ValidStyle(style string) bool {
	for _, s := range Styles {
		if s == style {
			return true
		}
	}
	return false
}
