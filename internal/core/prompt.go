package core

import (
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/bencsbalazs/gemini-proxy/internal/core/domain"
)

// ParsePrompt validates a request body and extracts its prompt.
//
// It returns domain.ErrMalformedBody when the body is not a UTF-8 JSON object
// or the declared content type is not JSON, and domain.ErrInvalidPrompt when
// the "prompt" member is missing, not a string, or empty. A missing content
// type is accepted. When "prompt" repeats, the last occurrence is used.
func ParsePrompt(contentType string, body []byte) (domain.PromptPayload, error) {
	if contentType != "" && !isJSONMediaType(contentType) {
		return domain.PromptPayload{}, domain.ErrMalformedBody
	}
	if !utf8.Valid(body) || !gjson.ValidBytes(body) {
		return domain.PromptPayload{}, domain.ErrMalformedBody
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return domain.PromptPayload{}, domain.ErrMalformedBody
	}

	prompt := lastMember(root, "prompt")
	if prompt.Type != gjson.String || prompt.Str == "" {
		return domain.PromptPayload{}, domain.ErrInvalidPrompt
	}
	return domain.PromptPayload{Prompt: prompt.Str}, nil
}

// lastMember returns the final value stored under key in obj. gjson's Get
// stops at the first match.
func lastMember(obj gjson.Result, key string) gjson.Result {
	var value gjson.Result
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			value = v
		}
		return true
	})
	return value
}

func isJSONMediaType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
