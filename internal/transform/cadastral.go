package transform

import (
	"regexp"
	"strings"

	"github.com/mishannn/torgiparser-go/internal/torgi"
)

const cadastralCode = "CadastralNumber"

// cadastralPattern matches a cadastral number surrounded by non-word characters.
// The number itself is the first group.
var cadastralPattern = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])(\d{2}:\d{2}:\d{6,7}(?::\d{1,4})?(?::\d)?(?::[А-Яа-яЁё\d]*)?)(?:[^\p{L}\p{N}_]|$)`)

// ExtractCadastralNumber returns the CadastralNumber characteristic, or the first
// number found in the description when the characteristic is missing, blank or a "-" placeholder.
func ExtractCadastralNumber(characteristics []torgi.Characteristic, description string) string {
	for _, ch := range characteristics {
		if ch.Code != cadastralCode {
			continue
		}

		value := strings.TrimSpace(torgi.RawText(ch.Value))
		if value != "" && value != "-" {
			return value
		}
		break
	}

	return FindCadastralNumber(description)
}

// FindCadastralNumber returns the first cadastral number in text or "".
func FindCadastralNumber(text string) string {
	match := cadastralPattern.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	return strings.TrimRight(match[1], ":")
}
