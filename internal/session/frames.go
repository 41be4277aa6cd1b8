package session

import (
	"encoding/json"

	"github.com/pscheid92/tubepulse/internal/domain"
)

const (
	frameSearch         = "search"
	frameChannelProfile = "channelProfile"
	frameProfile        = "profile"
	frameWordStats      = "wordStats"
	framePong           = "pong"

	frameVideo       = "video"
	frameQueryResult = "queryResult"
	frameSummary     = "summary"
	framePing        = "ping"
	frameError       = "error"
)

// Frame is a message sent to the client.
type Frame interface {
	FrameType() string
}

// Outbox delivers frames to the client. Send must not block; an error ends
// the session.
type Outbox interface {
	Send(f Frame) error
}

type VideoFrame struct {
	Type string      `json:"type"`
	Data domain.Item `json:"data"`
}

type QueryResultFrame struct {
	Type      string           `json:"type"`
	Query     string           `json:"query"`
	Sentiment domain.Sentiment `json:"sentiment"`
	Videos    []domain.Item    `json:"videos"`
}

type SummaryFrame struct {
	Type      string           `json:"type"`
	Sentiment domain.Sentiment `json:"sentiment"`
}

type ChannelProfileFrame struct {
	Type    string         `json:"type"`
	Channel domain.Channel `json:"channel"`
	Videos  []domain.Item  `json:"videos"`
}

type WordStatsFrame struct {
	Type      string           `json:"type"`
	Query     string           `json:"query"`
	WordStats domain.WordTable `json:"wordStats"`
}

type PingFrame struct {
	Type string `json:"type"`
}

type ErrorFrame struct {
	Type    string `json:"type"`
	Request string `json:"request"`
	Message string `json:"message"`
}

func (f VideoFrame) FrameType() string          { return f.Type }
func (f QueryResultFrame) FrameType() string    { return f.Type }
func (f SummaryFrame) FrameType() string        { return f.Type }
func (f ChannelProfileFrame) FrameType() string { return f.Type }
func (f WordStatsFrame) FrameType() string      { return f.Type }
func (f PingFrame) FrameType() string           { return f.Type }
func (f ErrorFrame) FrameType() string          { return f.Type }

func newVideoFrame(item domain.Item) VideoFrame {
	return VideoFrame{Type: frameVideo, Data: item}
}

func newQueryResultFrame(r QueryResult) QueryResultFrame {
	return QueryResultFrame{Type: frameQueryResult, Query: r.Query, Sentiment: r.Sentiment, Videos: nonNil(r.Items)}
}

func newSummaryFrame(label domain.Sentiment) SummaryFrame {
	return SummaryFrame{Type: frameSummary, Sentiment: label}
}

func newChannelProfileFrame(p domain.ChannelProfile) ChannelProfileFrame {
	return ChannelProfileFrame{Type: frameChannelProfile, Channel: p.Channel, Videos: nonNil(p.Items)}
}

func newWordStatsFrame(query string, table domain.WordTable) WordStatsFrame {
	return WordStatsFrame{Type: frameWordStats, Query: query, WordStats: table}
}

func newPingFrame() PingFrame {
	return PingFrame{Type: framePing}
}

func newErrorFrame(request, message string) ErrorFrame {
	return ErrorFrame{Type: frameError, Request: request, Message: message}
}

func nonNil(items []domain.Item) []domain.Item {
	if items == nil {
		return []domain.Item{}
	}
	return items
}

type inboundFrame struct {
	Type      string `json:"type"`
	Query     string `json:"query"`
	ChannelID string `json:"channelId"`
	ID        string `json:"id"`
}

// decodeCommand turns a client text frame into a mailbox message. Anything
// it cannot interpret becomes a rejectMsg.
func decodeCommand(raw []byte) message {
	var f inboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return rejectMsg{request: "unknown", reason: "invalid JSON"}
	}

	switch f.Type {
	case frameSearch:
		return searchMsg{query: f.Query}
	case frameChannelProfile:
		return profileMsg{channelID: f.ChannelID}
	case frameProfile:
		id := f.ID
		if id == "" {
			id = f.ChannelID
		}
		return profileMsg{channelID: id}
	case frameWordStats:
		return statsMsg{query: f.Query}
	case framePong:
		return pongMsg{}
	case "":
		return rejectMsg{request: "unknown", reason: "missing frame type"}
	default:
		return rejectMsg{request: f.Type, reason: "unknown frame type"}
	}
}
