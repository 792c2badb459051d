package views

import (
	"encoding/xml"

	"github.com/google/uuid"

	"github.com/dmitrymomot/agora/internal/forum"
)

// XML document roots for list and show responses.

type TopicsXML struct {
	XMLName xml.Name      `xml:"topics"`
	Topics  []forum.Topic `xml:"topic"`
}

type TopicXML struct {
	XMLName  xml.Name       `xml:"topic"`
	Topic    forum.Topic    `xml:"details"`
	Forum    forum.Forum    `xml:"forum"`
	Category forum.Category `xml:"category"`
	Posts    []forum.Post   `xml:"posts>post"`
	Posters  []forum.User   `xml:"posters>user"`
}

type ForumsXML struct {
	XMLName    xml.Name         `xml:"forums"`
	Categories []forum.Category `xml:"categories>category"`
	Forums     []forum.Forum    `xml:"forum"`
}

type HeadersXML struct {
	XMLName xml.Name       `xml:"headers"`
	Headers []forum.Header `xml:"header"`
}

type HeaderXML struct {
	XMLName xml.Name `xml:"header"`
	forum.Header
	URL string `xml:"url"`
}

// VotesXML is the response to a vote from an XML client.
type VotesXML struct {
	XMLName xml.Name  `xml:"votes"`
	ID      uuid.UUID `xml:"header-id"`
	Votes   int       `xml:"count"`
}
