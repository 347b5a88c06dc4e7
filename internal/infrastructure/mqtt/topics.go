package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes per the Gray Logic MQTT specification.
//
// The bridge projects the controller namespace under a single subtree:
//
//	graylogic/omada/state/{path...}  retained leaf values (dotted path, one
//	                                 topic level per path segment)
//	graylogic/omada/set/{path...}    inbound write intents against leaves
//	graylogic/omada/ack/{request}    write-back acknowledgements
//	graylogic/health/omada           bridge health reports
//	graylogic/system/status          online/offline status (LWT)
const (
	// TopicPrefix is the base for all Gray Logic topics.
	TopicPrefix = "graylogic"

	// TopicPrefixOmada is the base for the Omada bridge subtree.
	TopicPrefixOmada = "graylogic/omada"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"
)

// Topics provides builders for Omada bridge MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
// Namespace paths are dotted (e.g. "site1.ssids.SS1.hidden"); on the wire
// each dot becomes a topic level:
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.StateLeaf("site1.ssids.SS1.hidden")
//	// Returns: "graylogic/omada/state/site1/ssids/SS1/hidden"
type Topics struct{}

// StateLeaf returns the retained state topic for a namespace leaf.
//
// Example: graylogic/omada/state/site1/clients/AA-BB-CC/ip
func (Topics) StateLeaf(path string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefixOmada, pathToLevels(path))
}

// SetLeaf returns the write-intent topic for a namespace leaf.
//
// Example: graylogic/omada/set/site1/ssids/SS1/hidden
func (Topics) SetLeaf(path string) string {
	return fmt.Sprintf("%s/set/%s", TopicPrefixOmada, pathToLevels(path))
}

// WriteAck returns the topic for a write-back acknowledgement.
//
// Example: graylogic/omada/ack/req-4f9a2c1e
func (Topics) WriteAck(requestID string) string {
	return fmt.Sprintf("%s/ack/%s", TopicPrefixOmada, requestID)
}

// BridgeHealth returns the topic for bridge health status.
//
// Example: graylogic/health/omada
func (Topics) BridgeHealth() string {
	return fmt.Sprintf("%s/health/omada", TopicPrefix)
}

// SystemStatus returns the system status topic used for LWT and
// online/offline announcements.
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllSetLeaves returns a pattern matching every write intent under the
// Omada subtree.
//
// Pattern: graylogic/omada/set/#
func (Topics) AllSetLeaves() string {
	return fmt.Sprintf("%s/set/#", TopicPrefixOmada)
}

// SetTopicToPath extracts the dotted namespace path from a set topic.
// Returns an empty string if the topic is not under the set prefix.
//
// Example: "graylogic/omada/set/site1/ssids/SS1/hidden" -> "site1.ssids.SS1.hidden"
func (Topics) SetTopicToPath(topic string) string {
	prefix := TopicPrefixOmada + "/set/"
	if !strings.HasPrefix(topic, prefix) {
		return ""
	}
	return strings.ReplaceAll(strings.TrimPrefix(topic, prefix), "/", ".")
}

// pathToLevels converts a dotted namespace path to MQTT topic levels.
func pathToLevels(path string) string {
	return strings.ReplaceAll(path, ".", "/")
}
