package server

import (
	"time"

	"github.com/tmchat/tmchat/internal/types"
)

// ClientMessage is one inbound envelope. Every message type shares a single
// flat structure tagged by Type; fields not used by a given type stay zero.
type ClientMessage struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	IsHashed bool   `json:"is_hashed,omitempty"`
	Content  string `json:"content,omitempty"`
	Target   string `json:"target,omitempty"`
	RoomId   string `json:"room_id,omitempty"`
	RoomName string `json:"room_name,omitempty"`
	Word     string `json:"word,omitempty"`
	Filename string `json:"filename,omitempty"`
	Size     int    `json:"size,omitempty"`

	// raw is the original payload, kept so set_preference can merge
	// arbitrary keys that have no struct field.
	raw []byte
}

type UserListMessage struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
	Owner string   `json:"owner,omitempty"`
}

func NewUserList(users []string, owner string) *UserListMessage {
	if users == nil {
		users = []string{}
	}
	return &UserListMessage{Type: "user_list", Users: users, Owner: owner}
}

type RoomInfoMessage struct {
	Type        string            `json:"type"`
	CurrentRoom string            `json:"current_room"`
	RoomName    string            `json:"room_name"`
	Rooms       map[string]string `json:"rooms"`
}

func NewRoomInfo(currentRoom, roomName string, rooms map[string]string) *RoomInfoMessage {
	return &RoomInfoMessage{Type: "room_info", CurrentRoom: currentRoom, RoomName: roomName, Rooms: rooms}
}

type ApiVersionMessage struct {
	Type    string `json:"type"`
	Version string `json:"version"`
}

func NewApiVersion() *ApiVersionMessage {
	return &ApiVersionMessage{Type: "api_version", Version: apiVersion}
}

type ChatMessage struct {
	Type      string    `json:"type"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Room      string    `json:"room"`
	IsOwner   bool      `json:"is_owner"`
}

func NewChatMessage(username, content, room string, isOwner bool) *ChatMessage {
	return &ChatMessage{
		Type:      "message",
		Username:  username,
		Content:   content,
		Timestamp: Now(),
		Room:      room,
		IsOwner:   isOwner,
	}
}

type PrivateMessage struct {
	Type      string    `json:"type"`
	From      string    `json:"from"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Room      string    `json:"room,omitempty"`
}

func NewPrivateMessage(from, content, room string) *PrivateMessage {
	return &PrivateMessage{Type: "private_message", From: from, Content: content, Timestamp: Now(), Room: room}
}

type PrivateMessageSent struct {
	Type      string    `json:"type"`
	To        string    `json:"to"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPrivateMessageSent(to, content string) *PrivateMessageSent {
	return &PrivateMessageSent{Type: "private_message_sent", To: to, Content: content, Timestamp: Now()}
}

type SystemMessage struct {
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSystemMessage(content string) *SystemMessage {
	return &SystemMessage{Type: "system_message", Content: content, Timestamp: Now()}
}

type OwnerVerifiedMessage struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func NewOwnerVerified(success bool, message string) *OwnerVerifiedMessage {
	return &OwnerVerifiedMessage{Type: "owner_verified", Success: success, Message: message}
}

// OwnerChangedMessage carries a null owner when the slot is cleared.
type OwnerChangedMessage struct {
	Type  string  `json:"type"`
	Owner *string `json:"owner"`
}

func NewOwnerChanged(owner string) *OwnerChangedMessage {
	msg := &OwnerChangedMessage{Type: "owner_changed"}
	if owner != "" {
		msg.Owner = &owner
	}
	return msg
}

type BannedWordMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewBannedWord(message string) *BannedWordMessage {
	return &BannedWordMessage{Type: "banned_word", Message: message}
}

type BannedWordUpdatedMessage struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func NewBannedWordUpdated(success bool, message string) *BannedWordUpdatedMessage {
	return &BannedWordUpdatedMessage{Type: "banned_word_updated", Success: success, Message: message}
}

type BannedWordsListMessage struct {
	Type  string   `json:"type"`
	Words []string `json:"words"`
}

func NewBannedWordsList(words []string) *BannedWordsListMessage {
	if words == nil {
		words = []string{}
	}
	return &BannedWordsListMessage{Type: "banned_words_list", Words: words}
}

type MutedUsersListMessage struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

func NewMutedUsersList(users []string) *MutedUsersListMessage {
	if users == nil {
		users = []string{}
	}
	return &MutedUsersListMessage{Type: "muted_users_list", Users: users}
}

type KickedUsersListMessage struct {
	Type  string             `json:"type"`
	Users []types.KickRecord `json:"users"`
}

func NewKickedUsersList(users []types.KickRecord) *KickedUsersListMessage {
	if users == nil {
		users = []types.KickRecord{}
	}
	return &KickedUsersListMessage{Type: "kicked_users_list", Users: users}
}

type OwnerBroadcastMessage struct {
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func NewOwnerBroadcast(content string) *OwnerBroadcastMessage {
	return &OwnerBroadcastMessage{Type: "owner_broadcast", Content: content, Timestamp: Now()}
}

type KickedMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewKicked(message string) *KickedMessage {
	return &KickedMessage{Type: "kicked", Message: message}
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) *ErrorMessage {
	return &ErrorMessage{Type: "error", Message: message}
}

type FileSharedMessage struct {
	Type      string    `json:"type"`
	Username  string    `json:"username"`
	Filename  string    `json:"filename"`
	Size      int       `json:"size"`
	Timestamp time.Time `json:"timestamp"`
	Room      string    `json:"room"`
}

func NewFileShared(username, filename string, size int, room string) *FileSharedMessage {
	return &FileSharedMessage{
		Type:      "file_shared",
		Username:  username,
		Filename:  filename,
		Size:      size,
		Timestamp: Now(),
		Room:      room,
	}
}

type FileProgressMessage struct {
	Type     string `json:"type"`
	Progress int    `json:"progress"`
}

func NewFileProgress(progress int) *FileProgressMessage {
	return &FileProgressMessage{Type: "file_progress", Progress: progress}
}

type FileErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewFileError(message string) *FileErrorMessage {
	return &FileErrorMessage{Type: "file_error", Message: message}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
