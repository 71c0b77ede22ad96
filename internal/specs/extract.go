package specs

import (
	"regexp"
	"strings"
)

type detector struct {
	pattern *regexp.Regexp
	label   string
}

// productTypes is checked top to bottom and the first hit wins.
var productTypes = []detector{
	{regexp.MustCompile(`\bneedles?\b|hypodermic`), "needle"},
	{regexp.MustCompile(`\bsyringes?\b`), "syringe"},
	{regexp.MustCompile(`\bgloves?\b`), "glove"},
	{regexp.MustCompile(`\bcatheters?\b`), "catheter"},
	{regexp.MustCompile(`\bgauze\b`), "gauze"},
	{regexp.MustCompile(`\bbandages?\b`), "bandage"},
	{regexp.MustCompile(`\btapes?\b`), "tape"},
	{regexp.MustCompile(`\bsponges?\b`), "sponge"},
	{regexp.MustCompile(`\bswabs?\b|\bapplicators?\b`), "swab"},
	{regexp.MustCompile(`\bdressings?\b`), "dressing"},
	{regexp.MustCompile(`\bsutures?\b`), "suture"},
	{regexp.MustCompile(`\bscalpels?\b|\bblades?\b`), "scalpel"},
	{regexp.MustCompile(`\bmasks?\b|\brespirators?\b`), "mask"},
	{regexp.MustCompile(`\bgowns?\b`), "gown"},
	{regexp.MustCompile(`\bdrapes?\b`), "drape"},
	{regexp.MustCompile(`\btourniquets?\b`), "tourniquet"},
	{regexp.MustCompile(`\blancets?\b`), "lancet"},
	{regexp.MustCompile(`\bsharps\b`), "sharps container"},
	{regexp.MustCompile(`\bspecimen\b|\burine cups?\b`), "specimen container"},
	{regexp.MustCompile(`collection tubes?|vacutainer`), "blood collection tube"},
	{regexp.MustCompile(`alcohol prep|prep pads?`), "alcohol prep"},
	{regexp.MustCompile(`\bunderpads?\b|\bchux\b`), "underpad"},
	{regexp.MustCompile(`\bbriefs?\b|\bdiapers?\b`), "brief"},
	{regexp.MustCompile(`\bwipes?\b`), "wipe"},
	{regexp.MustCompile(`\bthermometers?\b|probe covers?`), "thermometer"},
	{regexp.MustCompile(`table paper|exam paper`), "table paper"},
	{regexp.MustCompile(`\biv set\b|administration set|extension set`), "iv set"},
	{regexp.MustCompile(`cotton balls?`), "cotton ball"},
	{regexp.MustCompile(`tongue depressors?`), "tongue depressor"},
	{regexp.MustCompile(`\bcups?\b`), "cup"},
	{regexp.MustCompile(`\bbags?\b`), "bag"},
	{regexp.MustCompile(`test kit|\btests?\b`), "test kit"},
}

// materials is checked in order; the first one present in the text wins.
var materials = []string{
	"nitrile", "latex", "vinyl", "silicone", "polyester", "nylon", "stainless steel", "polypropylene",
}

var sizeAliases = map[string]string{
	"s": "small", "sm": "small", "small": "small",
	"m": "medium", "med": "medium", "medium": "medium",
	"l": "large", "lg": "large", "large": "large",
	"xl": "x-large", "x-large": "x-large", "extra large": "x-large", "extra-large": "x-large",
	"xxl": "xx-large", "xx-large": "xx-large", "2xl": "xx-large",
}

var (
	gaugePattern      = regexp.MustCompile(`(?:^|[^\d.])(\d{1,2})\s*(?:gauge|ga|g)(?:$|[^a-z0-9]|x)`)
	lengthPattern     = regexp.MustCompile(`(\d+(?:\.\d+)?(?:\s*-?\s*\d+/\d+)?|\d+/\d+)\s*(?:inches|inch|in\b|"|'')`)
	sizeWordPattern   = regexp.MustCompile(`\b(xx-large|xxl|2xl|x-large|extra[- ]large|xl|small|medium|large|sm|med|lg)\b`)
	sizeShortPattern  = regexp.MustCompile(`\bsize\s*[:\-]?\s*(s|m|l)\b`)
	sizeLetterPattern = regexp.MustCompile(`(?:^|[\s,/(])([sml])(?:$|[\s,/)])`)
	volumePattern     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(oz|ml|cc|liter|litre|gal)\b`)
	countPattern      = regexp.MustCompile(`(\d+)\s*/\s*(bx|cs|pk|bg|kt|bt|rl)\b`)
	firstIntPattern   = regexp.MustCompile(`\d+`)
	spacePattern      = regexp.MustCompile(`\s+`)
)

// FromText detects attributes in free text. Unknown or empty text yields an empty set.
func FromText(text string) Set {
	out := Set{}
	s := strings.ToLower(text)
	if strings.TrimSpace(s) == "" {
		return out
	}

	for _, d := range productTypes {
		if d.pattern.MatchString(s) {
			out.put(KeyApplication, d.label)
			break
		}
	}
	if m := gaugePattern.FindStringSubmatch(s); m != nil {
		out.put(KeyGauge, strings.TrimLeft(m[1], "0"))
	}
	if m := lengthPattern.FindStringSubmatch(s); m != nil {
		out.put(KeyLength, spacePattern.ReplaceAllString(strings.TrimSpace(m[1]), " ")+" inch")
	}
	if m := sizeShortPattern.FindStringSubmatch(s); m != nil {
		out.put(KeySize, sizeAliases[m[1]])
	} else if m := sizeWordPattern.FindStringSubmatch(s); m != nil {
		out.put(KeySize, sizeAliases[strings.ReplaceAll(m[1], " ", "-")])
	} else {
		out.put(KeySize, sizeLetter(s))
	}
	if m := volumePattern.FindStringSubmatch(s); m != nil {
		unit := m[2]
		if unit == "litre" {
			unit = "liter"
		}
		out.put(KeyVolume, m[1]+unit)
	}
	if m := countPattern.FindStringSubmatch(s); m != nil {
		out.put(KeyCount, m[1]+"/"+m[2])
	}
	for _, mat := range materials {
		if strings.Contains(s, mat) {
			out.put(KeyMaterial, mat)
			break
		}
	}
	return out
}

// sizeLetter finds a standalone s, m or l. A letter following a number is a
// unit ("10 m"), not a size.
func sizeLetter(s string) string {
	for _, loc := range sizeLetterPattern.FindAllStringSubmatchIndex(s, -1) {
		before := strings.TrimRight(s[:loc[2]], " \t")
		if before != "" && before[len(before)-1] >= '0' && before[len(before)-1] <= '9' {
			continue
		}
		return sizeAliases[s[loc[2]:loc[3]]]
	}
	return ""
}

var catalogKeys = map[string]Key{
	"application":  KeyApplication,
	"gauge":        KeyGauge,
	"length":       KeyLength,
	"size":         KeySize,
	"volume":       KeyVolume,
	"material":     KeyMaterial,
	"type":         KeyType,
	"for use with": KeyForUseWith,
}

// FromCatalog normalizes a structured attribute map such as {"Gauge": "18 Gauge"}.
// Attribute names are matched case-insensitively; unknown names are ignored.
func FromCatalog(attrs map[string]string) Set {
	out := Set{}
	for name, raw := range attrs {
		key, ok := catalogKeys[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		v := strings.ToLower(strings.TrimSpace(raw))
		if v == "" {
			continue
		}
		switch key {
		case KeyGauge:
			v = strings.TrimLeft(firstIntPattern.FindString(v), "0")
		case KeyLength:
			v = strings.TrimSpace(strings.TrimSuffix(v, "length"))
			if m := lengthPattern.FindStringSubmatch(v); m != nil {
				v = spacePattern.ReplaceAllString(strings.TrimSpace(m[1]), " ") + " inch"
			}
		case KeySize:
			if alias, ok := sizeAliases[v]; ok {
				v = alias
			}
		case KeyVolume:
			v = spacePattern.ReplaceAllString(v, "")
		}
		out.put(key, v)
	}
	return out
}
