package notifications

import (
	"encoding/json"
	"strconv"
)

// GroupChannel is the channel every connected client listens on.
const GroupChannel = "notifications"

const userChannelPrefix = "notifications:user:"

// Event keys understood by the web client.
const (
	KeyNotification   = "notification"
	KeySocialUpdate   = "social_update"
	KeyAdditionalNews = "additional_news"
	KeyMessage        = "message"
	KeyPresence       = "presence"
	KeyUnreadCounts   = "unread_counts"
)

// Event is the JSON frame pushed to clients.
type Event struct {
	Key          string `json:"key"`
	ActorName    string `json:"actor_name"`
	ActionObject string `json:"action_object,omitempty"`
	IDValue      string `json:"id_value,omitempty"`
	Payload      any    `json:"payload,omitempty"`
}

// Encode renders the event as a JSON string.
func (e Event) Encode() (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

// parseUserChannel extracts the user id from a user channel name.
func parseUserChannel(channel string) (uint, bool) {
	if len(channel) <= len(userChannelPrefix) || channel[:len(userChannelPrefix)] != userChannelPrefix {
		return 0, false
	}
	id, err := strconv.ParseUint(channel[len(userChannelPrefix):], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}
