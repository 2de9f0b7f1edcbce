// Package region decorates proxy labels with a flag emoji guessed from the
// label text.
package region

import "regexp"

type entry struct {
	Flag    string
	Pattern *regexp.Regexp
}

// table is in priority order: the first matching entry wins.
var table = []entry{
	{"🇺🇸", regexp.MustCompile(`(?i)美|美国|美國|US|United States|USA`)},
	{"🇯🇵", regexp.MustCompile(`(?i)日|日本|JP|Japan`)},
	{"🇭🇰", regexp.MustCompile(`(?i)港|香港|HK|Hong Kong`)},
	{"🇨🇳", regexp.MustCompile(`(?i)中国|中國|CN|China`)},
	{"🇸🇬", regexp.MustCompile(`(?i)新|新加坡|狮城|SG|Singapore`)},
	{"🇹🇼", regexp.MustCompile(`(?i)台|台湾|台灣|TW|Taiwan`)},
	{"🇬🇧", regexp.MustCompile(`(?i)英|英国|UK|United Kingdom`)},
	{"🇰🇷", regexp.MustCompile(`(?i)韩|韩国|南朝鲜|KR|Korea`)},
	{"🇩🇪", regexp.MustCompile(`(?i)德|德国|DE|Germany`)},
	{"🇮🇳", regexp.MustCompile(`(?i)印|印度|IN|India`)},
	{"🇫🇷", regexp.MustCompile(`(?i)法|法国|FR|France`)},
	{"🇦🇺", regexp.MustCompile(`(?i)澳|澳洲|澳大利亚|AU|Australia`)},
	{"🇨🇦", regexp.MustCompile(`(?i)加拿大|CA|Canada`)},
	{"🇷🇺", regexp.MustCompile(`(?i)俄|俄罗斯|RU|Russia`)},
	{"🇮🇹", regexp.MustCompile(`(?i)意|意大利|IT|Italy`)},
}

// Two consecutive regional indicator symbols form a flag.
var flagPair = regexp.MustCompile(`[\x{1F1E6}-\x{1F1FF}]{2}`)

// Flags returns the supported flags in priority order.
func Flags() []string {
	out := make([]string, len(table))
	for i, e := range table {
		out[i] = e.Flag
	}
	return out
}

// HasFlag reports whether label already carries a flag emoji.
func HasFlag(label string) bool {
	return flagPair.MatchString(label)
}

// Match returns the flag of the first table entry whose pattern matches
// label, or "" when none does.
func Match(label string) string {
	for _, e := range table {
		if e.Pattern.MatchString(label) {
			return e.Flag
		}
	}
	return ""
}

// AddFlag prefixes label with a region flag. Empty labels, labels that
// already carry a flag and labels matching no region are returned as is.
func AddFlag(label string) string {
	if label == "" || HasFlag(label) {
		return label
	}
	if flag := Match(label); flag != "" {
		return flag + label
	}
	return label
}
