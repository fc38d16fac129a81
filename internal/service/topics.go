package service

type TopicDefault struct {
	Topic       string
	DisplayName string
	TagID       string
}

// DefaultTopics maps the built-in topics to Gamma tag ids.
var DefaultTopics = []TopicDefault{
	{Topic: "politics", DisplayName: "Politics", TagID: "126"},
	{Topic: "crypto", DisplayName: "Crypto", TagID: "21"},
	{Topic: "economy", DisplayName: "Economy", TagID: "159"},
	{Topic: "congress", DisplayName: "Congress", TagID: "514"},
	{Topic: "breaking", DisplayName: "Breaking News", TagID: "2"},
}

// TagForTopic returns the default tag id for a built-in topic.
func TagForTopic(topic string) (string, bool) {
	for _, d := range DefaultTopics {
		if d.Topic == topic {
			return d.TagID, true
		}
	}
	return "", false
}
