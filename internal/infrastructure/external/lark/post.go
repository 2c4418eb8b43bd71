package lark

import (
	"encoding/json"
	"strings"

	"golang.org/x/net/html"
)

// postElement is one inline element of a Lark rich-text post
type postElement struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
	Href string `json:"href,omitempty"`
}

type postBody struct {
	Title   string          `json:"title"`
	Content [][]postElement `json:"content"`
}

// PostContent converts an HTML fragment into the JSON content of a Lark "post" message.
// Block elements start a new paragraph and anchors become link elements.
func PostContent(title, fragment string) (string, error) {
	paragraphs := htmlToParagraphs(fragment)

	content, err := json.Marshal(map[string]postBody{
		"zh_cn": {Title: title, Content: paragraphs},
		"en_us": {Title: title, Content: paragraphs},
	})
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func htmlToParagraphs(fragment string) [][]postElement {
	paragraphs := [][]postElement{}
	var current []postElement
	var href string
	inAnchor := false

	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, current)
			current = nil
		}
	}

	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			flush()
			return paragraphs
		case html.TextToken:
			text := collapseSpace(string(z.Text()))
			if text == "" {
				continue
			}
			if inAnchor && href != "" {
				current = append(current, postElement{Tag: "a", Text: text, Href: href})
			} else {
				current = append(current, postElement{Tag: "text", Text: text})
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "a":
				inAnchor = true
				href = ""
				for hasAttr {
					var key, val []byte
					key, val, hasAttr = z.TagAttr()
					if string(key) == "href" {
						href = string(val)
					}
				}
			case "p", "div", "br", "li", "tr", "h1", "h2", "h3", "table":
				flush()
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "a":
				inAnchor = false
				href = ""
			case "p", "div", "li", "tr", "h1", "h2", "h3", "table":
				flush()
			}
		}
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
