package classifier

import "strings"

var arabicFolding = strings.NewReplacer(
	"\u200e", "",
	"\u200f", "",
	"أ", "ا",
	"إ", "ا",
	"آ", "ا",
	"ة", "ه",
	"ى", "ي",
)

// Normalize folds Arabic letter variants, strips direction marks and
// collapses whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(arabicFolding.Replace(s)), " ")
}

type shortLabel struct {
	label    string
	keywords []string
}

// Checked in order; the first bucket with a matching keyword wins.
var shortLabels = []shortLabel{
	{label: "الخارجى", keywords: []string{"السطح", "الخارج"}},
	{label: "الاطارات", keywords: []string{"الاطارات", "اطار", "عجلات"}},
	{label: "الفرش", keywords: []string{"الفرش", "المقاعد", "الانتريه"}},
	{label: "المحرك", keywords: []string{"المحرك", "موتور"}},
	{label: "التابلو", keywords: []string{"التابلو", "الطابلوه"}},
	{label: "تولز", keywords: []string{"مستلزمات", "تولز", "ادوات"}},
}

// Shorten maps a function category onto one of the dashboard's short labels,
// falling back to the normalized input.
func Shorten(s string) string {
	n := Normalize(s)
	if n == "" {
		return ""
	}
	for _, bucket := range shortLabels {
		for _, kw := range bucket.keywords {
			if strings.Contains(n, kw) {
				return bucket.label
			}
		}
	}
	return n
}
