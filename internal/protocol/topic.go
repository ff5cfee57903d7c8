package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	AppName = "dailystoic"
	Version = 1
)

type Encoding string

const (
	EncodingProto Encoding = "proto"
)

// ContentTopic identifies one kind of traffic on the shared transport.
// It renders as /{app}/{version}/{name}/{encoding}.
type ContentTopic struct {
	App      string
	Version  int
	Name     string
	Encoding Encoding
}

var (
	BroadcastTopic = ContentTopic{App: AppName, Version: Version, Name: "broadcast", Encoding: EncodingProto}
	RequestTopic   = ContentTopic{App: AppName, Version: Version, Name: "request", Encoding: EncodingProto}
)

func (t ContentTopic) String() string {
	return "/" + t.App + "/" + strconv.Itoa(t.Version) + "/" + t.Name + "/" + string(t.Encoding)
}

// ParseContentTopic parses the rendered form produced by String.
func ParseContentTopic(raw string) (ContentTopic, error) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "/") {
		return ContentTopic{}, fmt.Errorf("content topic %q: must start with '/'", raw)
	}
	parts := strings.Split(s[1:], "/")
	if len(parts) != 4 {
		return ContentTopic{}, fmt.Errorf("content topic %q: want 4 segments, got %d", raw, len(parts))
	}
	for i, p := range parts {
		if p == "" {
			return ContentTopic{}, fmt.Errorf("content topic %q: segment %d is empty", raw, i+1)
		}
	}
	v, err := strconv.Atoi(parts[1])
	if err != nil || v < 0 {
		return ContentTopic{}, fmt.Errorf("content topic %q: invalid version %q", raw, parts[1])
	}
	return ContentTopic{App: parts[0], Version: v, Name: parts[2], Encoding: Encoding(parts[3])}, nil
}
