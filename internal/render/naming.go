package render

import (
	"encoding/json"
	"regexp"
	"strconv"
	"unicode/utf16"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ArtifactName returns the file stem for a render: the signed decimal
// StringHash of the JSON-encoded parameters. A caller "name" is part of the
// hashed parameters, so requests that differ in any option never share a file.
func ArtifactName(params map[string]string) string {
	// Map keys are marshalled in sorted order, so equal params hash equally.
	data, _ := json.Marshal(params)
	return strconv.FormatInt(int64(StringHash(string(data))), 10)
}

// DownloadName is the file name offered to HTTP clients. The caller's name is
// preferred when it is safe as a file name.
func DownloadName(params map[string]string, artifact string) string {
	if name := params["name"]; namePattern.MatchString(name) {
		return name + ".gif"
	}
	return artifact + ".gif"
}

// StringHash is the 31-multiplier hash over UTF-16 code units with 32-bit
// wrap-around (h = 31*h + c).
func StringHash(s string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(c)
	}
	return h
}

// ValidName reports whether name can be an artifact file stem.
func ValidName(name string) bool {
	_, err := strconv.ParseInt(name, 10, 32)
	return err == nil
}
