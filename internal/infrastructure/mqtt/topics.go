package mqtt

import "strings"

// TopicPrefix is the base for every topic this tool publishes or consumes.
const TopicPrefix = "graylogic/knxnet"

// Topics provides builders for knxnetdump MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Frame("TUNNELLING_REQUEST")
//	// Returns: "graylogic/knxnet/frame/tunnelling_request"
type Topics struct{}

// Frame returns the topic a decoded frame of the named service is published on.
// The service name is lower-cased; an empty name maps to "unknown".
//
// Example: graylogic/knxnet/frame/connect_response
func (Topics) Frame(service string) string {
	segment := strings.ToLower(strings.TrimSpace(service))
	if segment == "" {
		segment = "unknown"
	}
	return TopicPrefix + "/frame/" + segment
}

// Raw returns the topic other components publish hex datagrams on.
//
// Example: graylogic/knxnet/raw
func (Topics) Raw() string {
	return TopicPrefix + "/raw"
}

// Status returns the retained online/offline status topic.
//
// Example: graylogic/knxnet/status
func (Topics) Status() string {
	return TopicPrefix + "/status"
}
