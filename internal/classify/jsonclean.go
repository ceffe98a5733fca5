package classify

import (
	"regexp"
	"strings"
)

var (
	reSpace         = regexp.MustCompile(`\s+`)
	reObjectsJoined = regexp.MustCompile(`}\s*{`)
	reStringObject  = regexp.MustCompile(`"\s*{`)
	reTrailingObj   = regexp.MustCompile(`,\s*}`)
	reTrailingArr   = regexp.MustCompile(`,\s*]`)
	reStringComma   = regexp.MustCompile(`"\s*,\s*"`)
	reFence         = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")
)

// CleanJSON repairs the formatting slips the model commonly makes: code
// fences, objects missing separating commas, trailing and doubled commas.
func CleanJSON(content string) string {
	c := strings.TrimSpace(content)
	if m := reFence.FindStringSubmatch(c); m != nil {
		c = m[1]
	}

	c = reSpace.ReplaceAllString(c, " ")
	c = strings.ReplaceAll(c, " : ", ": ")
	c = strings.ReplaceAll(c, " , ", ", ")

	c = reObjectsJoined.ReplaceAllString(c, "}, {")
	c = reStringObject.ReplaceAllString(c, `", {`)

	c = reTrailingObj.ReplaceAllString(c, "}")
	c = reTrailingArr.ReplaceAllString(c, "]")

	for strings.Contains(c, ",,") {
		c = strings.ReplaceAll(c, ",,", ",")
	}
	return reStringComma.ReplaceAllString(c, `", "`)
}
