package stomp

import "strconv"

const (
	// PresenceTopic carries {userId, online} events for every user.
	PresenceTopic = "/topic/presence"
	// ChatSendDestination accepts {matchId, content} and echoes the stored
	// message on the room's chat topic.
	ChatSendDestination = "/app/chat.send"

	ChatTopicPrefix         = "/topic/chat."
	NotificationTopicPrefix = "/topic/notifications/"
)

// ChatTopic is the destination carrying messages of one room.
func ChatTopic(matchID int64) string {
	return ChatTopicPrefix + strconv.FormatInt(matchID, 10)
}

// NotificationTopic is the per-user notification destination.
func NotificationTopic(userID int64) string {
	return NotificationTopicPrefix + strconv.FormatInt(userID, 10)
}
